package domain

import (
	"fmt"
	"time"

	"nexus-commission/internal/pkg/money"
)

type AttributionStatus string

const (
	AttributionPending  AttributionStatus = "PENDING"
	AttributionApproved AttributionStatus = "APPROVED"
	AttributionRejected AttributionStatus = "REJECTED"
	AttributionPaid     AttributionStatus = "PAID"
)

// ParseAttributionStatus 用于查询参数
func ParseAttributionStatus(s string) (AttributionStatus, error) {
	switch st := AttributionStatus(s); st {
	case AttributionPending, AttributionApproved, AttributionRejected, AttributionPaid:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown attribution status %q", ErrInvalidInput, s)
}

// Attribution 把一笔订单绑定到一个合作伙伴与一笔佣金。
// 每个订单号永远只有一条记录，费率在创建时冻结。
type Attribution struct {
	ID               string
	PartnerID        string
	OrderID          string
	OrderTotal       money.Money
	Rate             money.Percent
	Commission       money.Money
	Status           AttributionStatus
	CustomerIdentity string
	ProductID        string
	CategoryID       string
	Tier             Tier
	RateSource       RateSource
	RejectReason     string
	PayoutID         *string

	CreatedAt  time.Time
	ReviewedAt *time.Time
	PaidAt     *time.Time
}

// NewPendingAttribution 按已解析的费率计算佣金
func NewPendingAttribution(id string, partner *Partner, order OrderFacts, res Resolution, now time.Time) *Attribution {
	return &Attribution{
		ID:               id,
		PartnerID:        partner.ID,
		OrderID:          order.OrderID,
		OrderTotal:       order.OrderTotal,
		Rate:             res.Rate,
		Commission:       order.OrderTotal.Apply(res.Rate),
		Status:           AttributionPending,
		CustomerIdentity: order.CustomerIdentity,
		ProductID:        order.ProductID,
		CategoryID:       order.CategoryID,
		Tier:             partner.Tier,
		RateSource:       res.Source,
		CreatedAt:        now,
	}
}

// NewFraudRejectedAttribution 记录一笔被欺诈检测拒绝的订单，佣金和费率都为 0
func NewFraudRejectedAttribution(id string, partner *Partner, order OrderFacts, reason string, now time.Time) *Attribution {
	return &Attribution{
		ID:               id,
		PartnerID:        partner.ID,
		OrderID:          order.OrderID,
		OrderTotal:       order.OrderTotal,
		Status:           AttributionRejected,
		CustomerIdentity: order.CustomerIdentity,
		ProductID:        order.ProductID,
		CategoryID:       order.CategoryID,
		Tier:             partner.Tier,
		RateSource:       RateSourceNone,
		RejectReason:     reason,
		CreatedAt:        now,
	}
}

// Approve PENDING -> APPROVED
func (a *Attribution) Approve(now time.Time) error {
	if a.Status != AttributionPending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Status, AttributionApproved)
	}
	a.Status = AttributionApproved
	a.ReviewedAt = &now
	return nil
}

// Reject PENDING -> REJECTED（人工审核）
func (a *Attribution) Reject(reason string, now time.Time) error {
	if a.Status != AttributionPending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Status, AttributionRejected)
	}
	a.Status = AttributionRejected
	a.RejectReason = reason
	a.ReviewedAt = &now
	return nil
}

// OrderFacts 是订单事件中与计佣相关的字段
type OrderFacts struct {
	OrderID          string
	OrderTotal       money.Money
	CustomerIdentity string
	ProductID        string
	CategoryID       string
}
