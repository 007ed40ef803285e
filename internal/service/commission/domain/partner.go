package domain

import (
	"fmt"
	"strings"
	"time"

	"nexus-commission/internal/pkg/money"
)

// Partner 是推荐订单并赚取佣金的合作伙伴。
// 聚合字段只由归因账本和付款批次修改，合作伙伴只会被停用，不会被删除。
type Partner struct {
	ID       string
	Identity string // 邮箱，用于自我推荐检测
	Name     string

	TotalSales      money.Money // 只增不减
	TotalCommission money.Money
	PendingPayout   money.Money

	Tier           Tier
	RateOverride   *money.Percent
	EquityEligible bool
	Active         bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPartner 创建一个处于最低等级的合作伙伴
func NewPartner(id, identity, name string, schedule *TierSchedule, now time.Time) (*Partner, error) {
	if strings.TrimSpace(id) == "" || NormalizeIdentity(identity) == "" {
		return nil, fmt.Errorf("%w: partner id and identity are required", ErrInvalidInput)
	}
	lowest := schedule.Lowest()
	return &Partner{
		ID:             id,
		Identity:       strings.TrimSpace(identity),
		Name:           name,
		Tier:           lowest,
		EquityEligible: lowest == schedule.Top(),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NormalizeIdentity 统一大小写与首尾空白后再比较身份
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// NormalizeOrderID 去掉首尾空白。账本、去重标记与消费者都以它的结果作为订单号
func NormalizeOrderID(orderID string) string {
	return strings.TrimSpace(orderID)
}

// IsSelfReferral 报告客户是否就是合作伙伴本人
func (p *Partner) IsSelfReferral(customerIdentity string) bool {
	return NormalizeIdentity(customerIdentity) == NormalizeIdentity(p.Identity)
}

// RecordSale 累加一笔已计佣订单。任一聚合溢出时不做修改并返回 ErrInvalidInput。
func (p *Partner) RecordSale(orderTotal, commission money.Money) error {
	sales, err := p.TotalSales.CheckedAdd(orderTotal)
	if err != nil {
		return fmt.Errorf("%w: total sales: %w", ErrInvalidInput, err)
	}
	total, err := p.TotalCommission.CheckedAdd(commission)
	if err != nil {
		return fmt.Errorf("%w: total commission: %w", ErrInvalidInput, err)
	}
	pending, err := p.PendingPayout.CheckedAdd(commission)
	if err != nil {
		return fmt.Errorf("%w: pending payout: %w", ErrInvalidInput, err)
	}
	p.TotalSales, p.TotalCommission, p.PendingPayout = sales, total, pending
	return nil
}

// ReverseCommission 撤销一笔人工审核拒绝的佣金。销售额保持不变，等级因此不会回退。
func (p *Partner) ReverseCommission(commission money.Money) {
	p.TotalCommission = p.TotalCommission.Sub(commission)
	p.PendingPayout = p.PendingPayout.Sub(commission)
}

// SettlePayout 按付款批次冻结的金额扣减待付
func (p *Partner) SettlePayout(amount money.Money) {
	p.PendingPayout = p.PendingPayout.Sub(amount)
}

// RecomputeTier 依据累计销售额重算等级，只升不降。幂等。
func (p *Partner) RecomputeTier(schedule *TierSchedule) bool {
	computed := schedule.TierFor(p.TotalSales)
	changed := false
	if schedule.Rank(computed) > schedule.Rank(p.Tier) {
		p.Tier = computed
		changed = true
	}
	eligible := p.Tier == schedule.Top()
	if eligible != p.EquityEligible {
		p.EquityEligible = eligible
		changed = true
	}
	return changed
}

// SetRateOverride 设置或清除（nil）个人费率
func (p *Partner) SetRateOverride(rate *money.Percent) error {
	if rate != nil && !rate.Valid() {
		return ErrRateOutOfRange
	}
	p.RateOverride = rate
	return nil
}

func (p *Partner) Deactivate() { p.Active = false }
