package domain

import (
	"fmt"
	"strings"
	"time"

	"nexus-commission/internal/pkg/money"
)

// ScopeKind 是规则作用域在存储中的标签
type ScopeKind string

const (
	ScopeGlobal   ScopeKind = "GLOBAL"
	ScopeTier     ScopeKind = "TIER"
	ScopeCategory ScopeKind = "CATEGORY"
	ScopeProduct  ScopeKind = "PRODUCT"
	ScopePartner  ScopeKind = "PARTNER"
)

// Scope 是规则作用域的封闭变体，只能是下面五种之一
type Scope interface {
	Kind() ScopeKind
	Value() string
	isScope()
}

type GlobalScope struct{}

type TierScope struct{ Tier Tier }

type CategoryScope struct{ CategoryID string }

type ProductScope struct{ ProductID string }

type PartnerScope struct{ PartnerID string }

func (GlobalScope) Kind() ScopeKind   { return ScopeGlobal }
func (TierScope) Kind() ScopeKind     { return ScopeTier }
func (CategoryScope) Kind() ScopeKind { return ScopeCategory }
func (ProductScope) Kind() ScopeKind  { return ScopeProduct }
func (PartnerScope) Kind() ScopeKind  { return ScopePartner }

func (GlobalScope) Value() string     { return "" }
func (s TierScope) Value() string     { return string(s.Tier) }
func (s CategoryScope) Value() string { return s.CategoryID }
func (s ProductScope) Value() string  { return s.ProductID }
func (s PartnerScope) Value() string  { return s.PartnerID }

func (GlobalScope) isScope()   {}
func (TierScope) isScope()     {}
func (CategoryScope) isScope() {}
func (ProductScope) isScope()  {}
func (PartnerScope) isScope()  {}

// ScopeFrom 从存储标签还原作用域
func ScopeFrom(kind ScopeKind, value string) (Scope, error) {
	value = strings.TrimSpace(value)
	if kind != ScopeGlobal && value == "" {
		return nil, fmt.Errorf("%w: %s scope requires a value", ErrInvalidScope, kind)
	}
	switch kind {
	case ScopeGlobal:
		return GlobalScope{}, nil
	case ScopeTier:
		return TierScope{Tier: Tier(strings.ToUpper(value))}, nil
	case ScopeCategory:
		return CategoryScope{CategoryID: value}, nil
	case ScopeProduct:
		return ProductScope{ProductID: value}, nil
	case ScopePartner:
		return PartnerScope{PartnerID: value}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, kind)
	}
}

// CommissionRule 在某一作用域上指定佣金费率。由管理员维护，引擎从不修改。
type CommissionRule struct {
	ID        string
	Scope     Scope
	Rate      money.Percent
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCommissionRule 写入前校验费率区间
func NewCommissionRule(id string, scope Scope, rate money.Percent, active bool, now time.Time) (*CommissionRule, error) {
	if scope == nil {
		return nil, ErrInvalidScope
	}
	if !rate.Valid() {
		return nil, ErrRateOutOfRange
	}
	return &CommissionRule{
		ID:        id,
		Scope:     scope,
		Rate:      rate,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Change 修改费率和启用状态
func (r *CommissionRule) Change(rate money.Percent, active bool, now time.Time) error {
	if !rate.Valid() {
		return ErrRateOutOfRange
	}
	r.Rate = rate
	r.Active = active
	r.UpdatedAt = now
	return nil
}
