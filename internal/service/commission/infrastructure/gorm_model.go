package infrastructure

import (
	"database/sql"
	"time"
)

// PartnerModel 对应 partner 表，金额以分存储
type PartnerModel struct {
	ID                   string `gorm:"primaryKey;size:64"`
	Identity             string `gorm:"size:255;index"`
	Name                 string `gorm:"size:255"`
	TotalSalesCents      int64  `gorm:"not null"`
	TotalCommissionCents int64  `gorm:"not null"`
	PendingPayoutCents   int64  `gorm:"not null"`
	Tier                 string `gorm:"size:32;not null"`
	RateOverrideBps      sql.NullInt64
	EquityEligible       bool `gorm:"not null"`
	Active               bool `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (PartnerModel) TableName() string {
	return "partner"
}

// CommissionRuleModel 对应 commission_rule 表。
// 作用域以 scope_kind + scope_value 两列存储，GLOBAL 的 scope_value 为空串。
type CommissionRuleModel struct {
	ID         string `gorm:"primaryKey;size:64"`
	ScopeKind  string `gorm:"size:16;not null;index:idx_rule_scope,priority:1"`
	ScopeValue string `gorm:"size:128;not null;index:idx_rule_scope,priority:2"`
	RateBps    int64  `gorm:"not null"`
	Active     bool   `gorm:"not null;index:idx_rule_scope,priority:3"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CommissionRuleModel) TableName() string {
	return "commission_rule"
}

// PartnerAttributionModel 对应 partner_attribution 表，order_id 唯一约束是幂等性的最终保证
type PartnerAttributionModel struct {
	ID               string         `gorm:"primaryKey;size:64"`
	PartnerID        string         `gorm:"size:64;not null;index:idx_attr_partner_status,priority:1"`
	OrderID          string         `gorm:"size:128;not null;uniqueIndex:uk_attr_order"`
	OrderTotalCents  int64          `gorm:"not null"`
	RateBps          int64          `gorm:"not null"`
	CommissionCents  int64          `gorm:"not null"`
	Status           string         `gorm:"size:16;not null;index:idx_attr_partner_status,priority:2"`
	CustomerIdentity string         `gorm:"size:255"`
	ProductID        string         `gorm:"size:128"`
	CategoryID       string         `gorm:"size:128"`
	Tier             string         `gorm:"size:32"`
	RateSource       string         `gorm:"size:32"`
	RejectReason     string         `gorm:"size:255"`
	PayoutID         sql.NullString `gorm:"size:64;index"`
	CreatedAt        time.Time
	ReviewedAt       sql.NullTime
	PaidAt           sql.NullTime
}

func (PartnerAttributionModel) TableName() string {
	return "partner_attribution"
}

// PartnerPayoutModel 对应 partner_payout 表
type PartnerPayoutModel struct {
	ID               string `gorm:"primaryKey;size:64"`
	PartnerID        string `gorm:"size:64;not null;index"`
	AmountCents      int64  `gorm:"not null"`
	AttributionCount int    `gorm:"not null"`
	Status           string `gorm:"size:16;not null"`
	Reference        string `gorm:"size:255"`
	ProcessedAt      sql.NullTime
	ReleasedAt       sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (PartnerPayoutModel) TableName() string {
	return "partner_payout"
}

// AllModels 供迁移使用
func AllModels() []interface{} {
	return []interface{}{
		&PartnerModel{},
		&CommissionRuleModel{},
		&PartnerAttributionModel{},
		&PartnerPayoutModel{},
	}
}
