package application

import (
	"fmt"
	"strings"
	"time"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

// AttributeRequest 是一条订单事件，HTTP 与 Kafka 入口共用
type AttributeRequest struct {
	PartnerID        string      `json:"partner_id"`
	OrderID          string      `json:"order_id"`
	OrderTotal       money.Money `json:"order_total"`
	CustomerIdentity string      `json:"customer_identity"`
	ProductID        string      `json:"product_id,omitempty"`
	CategoryID       string      `json:"category_id,omitempty"`
}

// Validate 在任何写入之前检查必填字段
func (r *AttributeRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.PartnerID) == "" {
		missing = append(missing, "partner_id")
	}
	if domain.NormalizeOrderID(r.OrderID) == "" {
		missing = append(missing, "order_id")
	}
	if domain.NormalizeIdentity(r.CustomerIdentity) == "" {
		missing = append(missing, "customer_identity")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if r.OrderTotal <= 0 {
		return fmt.Errorf("%w: order_total must be positive", domain.ErrInvalidInput)
	}
	if r.OrderTotal > money.MaxAmount {
		return fmt.Errorf("%w: order_total exceeds %s", domain.ErrInvalidInput, money.MaxAmount)
	}
	return nil
}

func (r *AttributeRequest) facts() domain.OrderFacts {
	return domain.OrderFacts{
		OrderID:          domain.NormalizeOrderID(r.OrderID),
		OrderTotal:       r.OrderTotal,
		CustomerIdentity: strings.TrimSpace(r.CustomerIdentity),
		ProductID:        strings.TrimSpace(r.ProductID),
		CategoryID:       strings.TrimSpace(r.CategoryID),
	}
}

type AttributeResponse struct {
	AttributionID string        `json:"attribution_id"`
	OrderID       string        `json:"order_id"`
	Status        string        `json:"status"`
	Commission    money.Money   `json:"commission"`
	Rate          money.Percent `json:"rate"`
	RateSource    string        `json:"rate_source"`
	Tier          string        `json:"tier"`
	Promoted      bool          `json:"promoted"`
	Rejected      bool          `json:"rejected"`
	RejectReason  string        `json:"reject_reason,omitempty"`
}

type PartnerDTO struct {
	ID              string         `json:"id"`
	Identity        string         `json:"identity"`
	Name            string         `json:"name"`
	TotalSales      money.Money    `json:"total_sales"`
	TotalCommission money.Money    `json:"total_commission"`
	PendingPayout   money.Money    `json:"pending_payout"`
	Tier            string         `json:"tier"`
	RateOverride    *money.Percent `json:"rate_override"`
	EquityEligible  bool           `json:"equity_eligible"`
	Active          bool           `json:"active"`
}

func toPartnerDTO(p *domain.Partner) *PartnerDTO {
	return &PartnerDTO{
		ID:              p.ID,
		Identity:        p.Identity,
		Name:            p.Name,
		TotalSales:      p.TotalSales,
		TotalCommission: p.TotalCommission,
		PendingPayout:   p.PendingPayout,
		Tier:            string(p.Tier),
		RateOverride:    p.RateOverride,
		EquityEligible:  p.EquityEligible,
		Active:          p.Active,
	}
}

type AttributionDTO struct {
	ID               string        `json:"id"`
	PartnerID        string        `json:"partner_id"`
	OrderID          string        `json:"order_id"`
	OrderTotal       money.Money   `json:"order_total"`
	Rate             money.Percent `json:"rate"`
	Commission       money.Money   `json:"commission"`
	Status           string        `json:"status"`
	CustomerIdentity string        `json:"customer_identity"`
	RateSource       string        `json:"rate_source"`
	RejectReason     string        `json:"reject_reason,omitempty"`
	PayoutID         *string       `json:"payout_id"`
	CreatedAt        time.Time     `json:"created_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
}

func toAttributionDTO(a *domain.Attribution) *AttributionDTO {
	return &AttributionDTO{
		ID:               a.ID,
		PartnerID:        a.PartnerID,
		OrderID:          a.OrderID,
		OrderTotal:       a.OrderTotal,
		Rate:             a.Rate,
		Commission:       a.Commission,
		Status:           string(a.Status),
		CustomerIdentity: a.CustomerIdentity,
		RateSource:       string(a.RateSource),
		RejectReason:     a.RejectReason,
		PayoutID:         a.PayoutID,
		CreatedAt:        a.CreatedAt,
		PaidAt:           a.PaidAt,
	}
}

type PayoutDTO struct {
	ID               string      `json:"id"`
	PartnerID        string      `json:"partner_id"`
	Amount           money.Money `json:"amount"`
	AttributionCount int         `json:"attribution_count"`
	Status           string      `json:"status"`
	Reference        string      `json:"reference,omitempty"`
	ProcessedAt      *time.Time  `json:"processed_at,omitempty"`
	ReleasedAt       *time.Time  `json:"released_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

func toPayoutDTO(p *domain.Payout) *PayoutDTO {
	return &PayoutDTO{
		ID:               p.ID,
		PartnerID:        p.PartnerID,
		Amount:           p.Amount,
		AttributionCount: p.AttributionCount,
		Status:           string(p.Status),
		Reference:        p.Reference,
		ProcessedAt:      p.ProcessedAt,
		ReleasedAt:       p.ReleasedAt,
		CreatedAt:        p.CreatedAt,
	}
}

// CreatePayoutResponse NothingToPay 为 true 时 Payout 为空，这不是错误
type CreatePayoutResponse struct {
	NothingToPay bool       `json:"nothing_to_pay"`
	Payout       *PayoutDTO `json:"payout,omitempty"`
}

type SettlePayoutRequest struct {
	Outcome   string `json:"outcome"`
	Reference string `json:"reference"`
}

type ReviewRequest struct {
	Reason string `json:"reason"`
}

type RegisterPartnerRequest struct {
	ID       string `json:"id"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// OverrideRequest Rate 为 null 表示清除个人费率
type OverrideRequest struct {
	Rate *money.Percent `json:"rate"`
}

type RuleRequest struct {
	ScopeKind  string        `json:"scope_kind"`
	ScopeValue string        `json:"scope_value"`
	Rate       money.Percent `json:"rate"`
	Active     *bool         `json:"active,omitempty"`
}

type RuleDTO struct {
	ID         string        `json:"id"`
	ScopeKind  string        `json:"scope_kind"`
	ScopeValue string        `json:"scope_value"`
	Rate       money.Percent `json:"rate"`
	Active     bool          `json:"active"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func toRuleDTO(r *domain.CommissionRule) *RuleDTO {
	return &RuleDTO{
		ID:         r.ID,
		ScopeKind:  string(r.Scope.Kind()),
		ScopeValue: r.Scope.Value(),
		Rate:       r.Rate,
		Active:     r.Active,
		UpdatedAt:  r.UpdatedAt,
	}
}
