package ledger

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TierHandler 在同一事务末尾重算等级并写回合作伙伴。
// 行锁在提交前不会释放，下一笔同一合作伙伴的归因一定看到新等级。
type TierHandler struct {
	NextHandler
}

func (h *TierHandler) Handle(attrCtx *AttributionContext) error {
	ctx, span := attrCtx.Tracer.Start(attrCtx.Ctx, "ledger.RecomputeTier")
	defer span.End()

	partner := attrCtx.Partner
	attrCtx.Promoted = partner.RecomputeTier(attrCtx.Schedule) && partner.Tier != attrCtx.PreviousTier
	partner.UpdatedAt = attrCtx.Now
	if err := attrCtx.Tx.Partners().Save(ctx, partner); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save partner failed")
		return err
	}
	span.SetAttributes(
		attribute.String("partner.tier", string(partner.Tier)),
		attribute.Bool("partner.promoted", attrCtx.Promoted),
	)
	return h.executeNext(attrCtx)
}
