package ledger

import (
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/service/commission/domain"
)

// RecordHandler 写入 PENDING 归因并累加合作伙伴的销售额、佣金与待付金额
type RecordHandler struct {
	NextHandler
}

func (h *RecordHandler) Handle(attrCtx *AttributionContext) error {
	ctx, span := attrCtx.Tracer.Start(attrCtx.Ctx, "ledger.Record")
	defer span.End()

	a := domain.NewPendingAttribution(attrCtx.NewID(), attrCtx.Partner, attrCtx.Order, attrCtx.Resolution, attrCtx.Now)
	if err := attrCtx.Tx.Attributions().Create(ctx, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert attribution failed")
		return err
	}
	// 溢出时返回错误，整个事务回滚
	if err := attrCtx.Partner.RecordSale(a.OrderTotal, a.Commission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "partner aggregates overflow")
		return err
	}
	attrCtx.Attribution = a
	return h.executeNext(attrCtx)
}
