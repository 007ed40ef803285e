package ledger

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/service/commission/domain/port"
)

// AttributionContext 在归因责任链中传递。
// 整条链运行在同一个数据库事务里，所有读写必须经由 Tx。
type AttributionContext struct {
	Ctx    context.Context
	Tx     domain.Repositories
	Tracer trace.Tracer

	Schedule *domain.TierSchedule
	Resolver *domain.RateResolver
	Fraud    port.FraudScreen
	NewID    func() string
	Now      time.Time

	PartnerID string
	Order     domain.OrderFacts

	// 以下字段由链上各步骤依次填充
	Partner      *domain.Partner
	Verdict      port.FraudVerdict
	Resolution   domain.Resolution
	Attribution  *domain.Attribution
	PreviousTier domain.Tier
	Promoted     bool
}

// Rejected 报告本次归因是否被欺诈检测拒绝
func (c *AttributionContext) Rejected() bool {
	return c.Verdict.Rejected
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(attrCtx *AttributionContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(attrCtx *AttributionContext) error {
	if h.next != nil {
		return h.next.Handle(attrCtx)
	}
	return nil
}

// BuildChain 锁定合作伙伴 -> 幂等检查 -> 欺诈检测 -> 费率解析 -> 记账 -> 等级重算
func BuildChain() Handler {
	chain := new(PartnerLockHandler)
	chain.
		SetNext(new(IdempotencyHandler)).
		SetNext(new(FraudCheckHandler)).
		SetNext(new(RateResolutionHandler)).
		SetNext(new(RecordHandler)).
		SetNext(new(TierHandler))
	return chain
}
