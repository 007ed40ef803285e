package infrastructure

import (
	"database/sql"
	"time"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

func toDomainPartner(m *PartnerModel) *domain.Partner {
	p := &domain.Partner{
		ID:              m.ID,
		Identity:        m.Identity,
		Name:            m.Name,
		TotalSales:      money.FromCents(m.TotalSalesCents),
		TotalCommission: money.FromCents(m.TotalCommissionCents),
		PendingPayout:   money.FromCents(m.PendingPayoutCents),
		Tier:            domain.Tier(m.Tier),
		EquityEligible:  m.EquityEligible,
		Active:          m.Active,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.RateOverrideBps.Valid {
		rate := money.Percent(m.RateOverrideBps.Int64)
		p.RateOverride = &rate
	}
	return p
}

func toPartnerModel(p *domain.Partner) *PartnerModel {
	m := &PartnerModel{
		ID:                   p.ID,
		Identity:             p.Identity,
		Name:                 p.Name,
		TotalSalesCents:      p.TotalSales.Cents(),
		TotalCommissionCents: p.TotalCommission.Cents(),
		PendingPayoutCents:   p.PendingPayout.Cents(),
		Tier:                 string(p.Tier),
		EquityEligible:       p.EquityEligible,
		Active:               p.Active,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if p.RateOverride != nil {
		m.RateOverrideBps = sql.NullInt64{Int64: p.RateOverride.BasisPoints(), Valid: true}
	}
	return m
}

func toDomainRule(m *CommissionRuleModel) (*domain.CommissionRule, error) {
	scope, err := domain.ScopeFrom(domain.ScopeKind(m.ScopeKind), m.ScopeValue)
	if err != nil {
		return nil, err
	}
	return &domain.CommissionRule{
		ID:        m.ID,
		Scope:     scope,
		Rate:      money.Percent(m.RateBps),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func toRuleModel(r *domain.CommissionRule) *CommissionRuleModel {
	return &CommissionRuleModel{
		ID:         r.ID,
		ScopeKind:  string(r.Scope.Kind()),
		ScopeValue: r.Scope.Value(),
		RateBps:    r.Rate.BasisPoints(),
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toDomainAttribution(m *PartnerAttributionModel) *domain.Attribution {
	a := &domain.Attribution{
		ID:               m.ID,
		PartnerID:        m.PartnerID,
		OrderID:          m.OrderID,
		OrderTotal:       money.FromCents(m.OrderTotalCents),
		Rate:             money.Percent(m.RateBps),
		Commission:       money.FromCents(m.CommissionCents),
		Status:           domain.AttributionStatus(m.Status),
		CustomerIdentity: m.CustomerIdentity,
		ProductID:        m.ProductID,
		CategoryID:       m.CategoryID,
		Tier:             domain.Tier(m.Tier),
		RateSource:       domain.RateSource(m.RateSource),
		RejectReason:     m.RejectReason,
		CreatedAt:        m.CreatedAt,
		ReviewedAt:       fromNullTime(m.ReviewedAt),
		PaidAt:           fromNullTime(m.PaidAt),
	}
	if m.PayoutID.Valid {
		id := m.PayoutID.String
		a.PayoutID = &id
	}
	return a
}

func toAttributionModel(a *domain.Attribution) *PartnerAttributionModel {
	m := &PartnerAttributionModel{
		ID:               a.ID,
		PartnerID:        a.PartnerID,
		OrderID:          a.OrderID,
		OrderTotalCents:  a.OrderTotal.Cents(),
		RateBps:          a.Rate.BasisPoints(),
		CommissionCents:  a.Commission.Cents(),
		Status:           string(a.Status),
		CustomerIdentity: a.CustomerIdentity,
		ProductID:        a.ProductID,
		CategoryID:       a.CategoryID,
		Tier:             string(a.Tier),
		RateSource:       string(a.RateSource),
		RejectReason:     a.RejectReason,
		CreatedAt:        a.CreatedAt,
		ReviewedAt:       toNullTime(a.ReviewedAt),
		PaidAt:           toNullTime(a.PaidAt),
	}
	if a.PayoutID != nil {
		m.PayoutID = sql.NullString{String: *a.PayoutID, Valid: true}
	}
	return m
}

func toDomainPayout(m *PartnerPayoutModel) *domain.Payout {
	return &domain.Payout{
		ID:               m.ID,
		PartnerID:        m.PartnerID,
		Amount:           money.FromCents(m.AmountCents),
		AttributionCount: m.AttributionCount,
		Status:           domain.PayoutStatus(m.Status),
		Reference:        m.Reference,
		ProcessedAt:      fromNullTime(m.ProcessedAt),
		ReleasedAt:       fromNullTime(m.ReleasedAt),
		CreatedAt:        m.CreatedAt,
	}
}

func toPayoutModel(p *domain.Payout) *PartnerPayoutModel {
	return &PartnerPayoutModel{
		ID:               p.ID,
		PartnerID:        p.PartnerID,
		AmountCents:      p.Amount.Cents(),
		AttributionCount: p.AttributionCount,
		Status:           string(p.Status),
		Reference:        p.Reference,
		ProcessedAt:      toNullTime(p.ProcessedAt),
		ReleasedAt:       toNullTime(p.ReleasedAt),
		CreatedAt:        p.CreatedAt,
	}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
