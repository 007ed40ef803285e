package domain

import (
	"fmt"
	"time"

	"nexus-commission/internal/pkg/money"
)

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutCompleted PayoutStatus = "COMPLETED"
	PayoutFailed    PayoutStatus = "FAILED"
)

// ParseSettlementOutcome 只接受 COMPLETED 和 FAILED
func ParseSettlementOutcome(s string) (PayoutStatus, error) {
	switch st := PayoutStatus(s); st {
	case PayoutCompleted, PayoutFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: settlement outcome must be COMPLETED or FAILED, got %q", ErrInvalidInput, s)
}

// Payout 是一个合作伙伴的付款批次。金额在创建时冻结。
type Payout struct {
	ID               string
	PartnerID        string
	Amount           money.Money
	AttributionCount int
	Status           PayoutStatus
	Reference        string
	ProcessedAt      *time.Time
	ReleasedAt       *time.Time
	CreatedAt        time.Time
}

func NewPayout(id, partnerID string, claimed []*Attribution, now time.Time) *Payout {
	amounts := make([]money.Money, 0, len(claimed))
	for _, a := range claimed {
		amounts = append(amounts, a.Commission)
	}
	return &Payout{
		ID:               id,
		PartnerID:        partnerID,
		Amount:           money.Sum(amounts...),
		AttributionCount: len(claimed),
		Status:           PayoutPending,
		CreatedAt:        now,
	}
}

// Settle 单向迁移到 COMPLETED 或 FAILED，重复结算返回错误
func (p *Payout) Settle(outcome PayoutStatus, reference string, now time.Time) error {
	if outcome != PayoutCompleted && outcome != PayoutFailed {
		return fmt.Errorf("%w: outcome %q", ErrInvalidInput, outcome)
	}
	if p.Status != PayoutPending {
		return fmt.Errorf("%w: payout %s is %s", ErrPayoutNotPending, p.ID, p.Status)
	}
	p.Status = outcome
	if outcome == PayoutCompleted {
		p.ProcessedAt = &now
		p.Reference = reference
	}
	return nil
}

// Release 释放失败批次占用的归因，使其可以重新打包。只能执行一次。
func (p *Payout) Release(now time.Time) error {
	if p.Status != PayoutFailed || p.ReleasedAt != nil {
		return fmt.Errorf("%w: payout %s is %s", ErrPayoutNotReleasable, p.ID, p.Status)
	}
	p.ReleasedAt = &now
	return nil
}
