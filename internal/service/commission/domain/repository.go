package domain

import (
	"context"
	"time"
)

// PartnerRepository 合作伙伴仓储
type PartnerRepository interface {
	FindByID(ctx context.Context, id string) (*Partner, error)
	// FindByIDForUpdate 在当前事务内对合作伙伴行加写锁，同一合作伙伴的变更由此串行化
	FindByIDForUpdate(ctx context.Context, id string) (*Partner, error)
	Create(ctx context.Context, p *Partner) error
	Save(ctx context.Context, p *Partner) error
}

// RuleRepository 佣金规则仓储
type RuleRepository interface {
	FindByID(ctx context.Context, id string) (*CommissionRule, error)
	// FindActive 返回命中任一作用域的启用规则，调用方负责按优先级挑选
	FindActive(ctx context.Context, scopes []Scope) ([]*CommissionRule, error)
	List(ctx context.Context) ([]*CommissionRule, error)
	Create(ctx context.Context, r *CommissionRule) error
	Save(ctx context.Context, r *CommissionRule) error
}

// AttributionRepository 归因账本仓储
type AttributionRepository interface {
	// Create 依赖 order_id 唯一约束，重复时返回 ErrAlreadyAttributed
	Create(ctx context.Context, a *Attribution) error
	FindByID(ctx context.Context, id string) (*Attribution, error)
	FindByIDForUpdate(ctx context.Context, id string) (*Attribution, error)
	FindByOrderID(ctx context.Context, orderID string) (*Attribution, error)
	ListByPartner(ctx context.Context, partnerID string, status *AttributionStatus) ([]*Attribution, error)
	// ListClaimable 锁定合作伙伴所有 APPROVED 且未入批次的归因
	ListClaimable(ctx context.Context, partnerID string) ([]*Attribution, error)
	// Claim 把归因写入批次，返回实际认领的行数
	Claim(ctx context.Context, ids []string, payoutID string) (int64, error)
	MarkPaid(ctx context.Context, payoutID string, paidAt time.Time) (int64, error)
	Release(ctx context.Context, payoutID string) (int64, error)
	SaveReview(ctx context.Context, a *Attribution) error
}

// PayoutRepository 付款批次仓储
type PayoutRepository interface {
	Create(ctx context.Context, p *Payout) error
	FindByID(ctx context.Context, id string) (*Payout, error)
	FindByIDForUpdate(ctx context.Context, id string) (*Payout, error)
	ListByPartner(ctx context.Context, partnerID string) ([]*Payout, error)
	Save(ctx context.Context, p *Payout) error
}

// Repositories 是一组共享同一数据库会话的仓储
type Repositories interface {
	Partners() PartnerRepository
	Rules() RuleRepository
	Attributions() AttributionRepository
	Payouts() PayoutRepository
}

// UnitOfWork 显式的事务边界。
// Transaction 以 READ COMMITTED 隔离级别开启事务，fn 返回错误则回滚，否则提交。
type UnitOfWork interface {
	Repositories
	Transaction(ctx context.Context, fn func(tx Repositories) error) error
}
