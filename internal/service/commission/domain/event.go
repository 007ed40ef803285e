package domain

import (
	"time"

	"nexus-commission/internal/pkg/money"
)

type EventType string

const (
	EventAttributed          EventType = "commission.attributed"
	EventAttributionRejected EventType = "commission.attribution_rejected"
	EventAttributionApproved EventType = "commission.attribution_approved"
	EventTierPromoted        EventType = "commission.tier_promoted"
	EventPayoutCreated       EventType = "commission.payout_created"
	EventPayoutSettled       EventType = "commission.payout_settled"
	EventPayoutReleased      EventType = "commission.payout_released"
)

// CommissionEvent 在事务提交后发布给下游（通知、CRM、运营看板）
type CommissionEvent struct {
	EventID       string        `json:"event_id"`
	Type          EventType     `json:"type"`
	PartnerID     string        `json:"partner_id"`
	OrderID       string        `json:"order_id,omitempty"`
	AttributionID string        `json:"attribution_id,omitempty"`
	PayoutID      string        `json:"payout_id,omitempty"`
	Amount        money.Money   `json:"amount"`
	Rate          money.Percent `json:"rate"`
	Tier          Tier          `json:"tier,omitempty"`
	Status        string        `json:"status,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// ContactRecord 是同步给外部 CRM 的联系人记录
type ContactRecord struct {
	Email     string `json:"email"`
	PartnerID string `json:"partner_id"`
	OrderID   string `json:"order_id"`
	Source    string `json:"source"`
}
