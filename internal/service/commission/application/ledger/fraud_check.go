package ledger

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/service/commission/domain/port"
)

// FraudCheckHandler 命中欺诈规则时写入一条 REJECTED 记录并终止链路：
// 佣金与费率为 0，不更新合作伙伴累计值，也不重算等级。
type FraudCheckHandler struct {
	NextHandler
}

func (h *FraudCheckHandler) Handle(attrCtx *AttributionContext) error {
	ctx, span := attrCtx.Tracer.Start(attrCtx.Ctx, "ledger.FraudCheck")
	defer span.End()

	partner := attrCtx.Partner
	order := attrCtx.Order
	verdict, err := attrCtx.Fraud.Screen(ctx, port.FraudFacts{
		PartnerID:        partner.ID,
		PartnerIdentity:  partner.Identity,
		CustomerIdentity: order.CustomerIdentity,
		OrderTotal:       order.OrderTotal,
		ProductID:        order.ProductID,
		CategoryID:       order.CategoryID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fraud screen failed")
		return err
	}
	attrCtx.Verdict = verdict
	if !verdict.Rejected {
		return h.executeNext(attrCtx)
	}

	span.SetAttributes(attribute.String("fraud.rule", verdict.Rule))
	logger.Ctx(ctx).Warn().
		Str("partner_id", partner.ID).
		Str("order_id", order.OrderID).
		Str("rule", verdict.Rule).
		Msg("Attribution rejected by fraud screen")

	rejected := domain.NewFraudRejectedAttribution(attrCtx.NewID(), partner, order, verdict.Rule, attrCtx.Now)
	if err := attrCtx.Tx.Attributions().Create(ctx, rejected); err != nil {
		span.RecordError(err)
		return err
	}
	attrCtx.Attribution = rejected
	return nil
}
