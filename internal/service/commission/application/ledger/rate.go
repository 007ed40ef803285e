package ledger

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/service/commission/domain"
)

// RateResolutionHandler 使用事务内读到的当前等级解析费率
type RateResolutionHandler struct {
	NextHandler
}

func (h *RateResolutionHandler) Handle(attrCtx *AttributionContext) error {
	ctx, span := attrCtx.Tracer.Start(attrCtx.Ctx, "ledger.ResolveRate")
	defer span.End()

	partner := attrCtx.Partner
	res, err := attrCtx.Resolver.Resolve(ctx, attrCtx.Tx.Rules(), domain.RateQuery{
		PartnerID:  partner.ID,
		Tier:       partner.Tier,
		Override:   partner.RateOverride,
		ProductID:  attrCtx.Order.ProductID,
		CategoryID: attrCtx.Order.CategoryID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate resolution failed")
		return err
	}
	span.SetAttributes(
		attribute.String("rate.source", string(res.Source)),
		attribute.Int64("rate.bps", res.Rate.BasisPoints()),
	)
	attrCtx.Resolution = res
	return h.executeNext(attrCtx)
}
