package domain

import (
	"context"

	"nexus-commission/internal/pkg/money"
)

// RateSource 标记费率来自哪一级
type RateSource string

const (
	RateSourceOverride    RateSource = "OVERRIDE"
	RateSourcePartnerRule RateSource = "PARTNER_RULE"
	RateSourceProductRule RateSource = "PRODUCT_RULE"
	RateSourceCategory    RateSource = "CATEGORY_RULE"
	RateSourceTierRule    RateSource = "TIER_RULE"
	RateSourceGlobalRule  RateSource = "GLOBAL_RULE"
	RateSourceTierDefault RateSource = "TIER_DEFAULT"
	RateSourceNone        RateSource = "NONE"
)

// RateQuery 是一次费率解析的输入
type RateQuery struct {
	PartnerID  string
	Tier       Tier
	Override   *money.Percent
	ProductID  string
	CategoryID string
}

type Resolution struct {
	Rate   money.Percent
	Source RateSource
	RuleID string
}

// RateResolver 按固定优先级选出唯一费率：
// 个人覆盖 > 合作伙伴规则 > 商品规则 > 类目规则 > 等级规则 > 全局规则 > 等级默认费率。
type RateResolver struct {
	schedule *TierSchedule
}

func NewRateResolver(schedule *TierSchedule) *RateResolver {
	return &RateResolver{schedule: schedule}
}

// Resolve 总能得到一个费率，只有存储读取失败时才返回错误
func (r *RateResolver) Resolve(ctx context.Context, rules RuleRepository, q RateQuery) (Resolution, error) {
	if q.Override != nil {
		return Resolution{Rate: *q.Override, Source: RateSourceOverride}, nil
	}

	candidates := candidateScopes(q)
	matched, err := rules.FindActive(ctx, candidates)
	if err != nil {
		return Resolution{}, err
	}

	for _, scope := range candidates {
		if rule := pickRule(matched, scope); rule != nil {
			return Resolution{Rate: rule.Rate, Source: sourceOf(scope), RuleID: rule.ID}, nil
		}
	}
	return Resolution{Rate: r.schedule.DefaultRate(q.Tier), Source: RateSourceTierDefault}, nil
}

// candidateScopes 按优先级从高到低列出本次查询涉及的作用域
func candidateScopes(q RateQuery) []Scope {
	scopes := make([]Scope, 0, 5)
	scopes = append(scopes, PartnerScope{PartnerID: q.PartnerID})
	if q.ProductID != "" {
		scopes = append(scopes, ProductScope{ProductID: q.ProductID})
	}
	if q.CategoryID != "" {
		scopes = append(scopes, CategoryScope{CategoryID: q.CategoryID})
	}
	scopes = append(scopes, TierScope{Tier: q.Tier}, GlobalScope{})
	return scopes
}

// pickRule 同一作用域有多条启用规则时取最近更新的一条
func pickRule(rules []*CommissionRule, scope Scope) *CommissionRule {
	var best *CommissionRule
	for _, r := range rules {
		if !r.Active || r.Scope.Kind() != scope.Kind() || r.Scope.Value() != scope.Value() {
			continue
		}
		if best == nil || r.UpdatedAt.After(best.UpdatedAt) || (r.UpdatedAt.Equal(best.UpdatedAt) && r.ID > best.ID) {
			best = r
		}
	}
	return best
}

func sourceOf(scope Scope) RateSource {
	switch scope.(type) {
	case PartnerScope:
		return RateSourcePartnerRule
	case ProductScope:
		return RateSourceProductRule
	case CategoryScope:
		return RateSourceCategory
	case TierScope:
		return RateSourceTierRule
	case GlobalScope:
		return RateSourceGlobalRule
	}
	return RateSourceNone
}
