package ledger

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/service/commission/domain"
)

// PartnerLockHandler 对合作伙伴行加写锁，同一合作伙伴的归因由此串行执行，
// 后续步骤读到的等级与累计销售额在事务结束前不会被其他事务修改。
type PartnerLockHandler struct {
	NextHandler
}

func (h *PartnerLockHandler) Handle(attrCtx *AttributionContext) error {
	ctx, span := attrCtx.Tracer.Start(attrCtx.Ctx, "ledger.LockPartner")
	defer span.End()

	partner, err := attrCtx.Tx.Partners().FindByIDForUpdate(ctx, attrCtx.PartnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load partner failed")
		return err
	}
	if !partner.Active {
		span.SetStatus(codes.Error, "partner inactive")
		return domain.ErrPartnerInactive
	}
	span.SetAttributes(attribute.String("partner.tier", string(partner.Tier)))

	attrCtx.Partner = partner
	attrCtx.PreviousTier = partner.Tier
	return h.executeNext(attrCtx)
}
