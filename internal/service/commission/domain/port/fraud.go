package port

import (
	"context"

	"nexus-commission/internal/pkg/money"
)

// FraudFacts 是欺诈检测规则可以引用的全部事实
type FraudFacts struct {
	PartnerID        string
	PartnerIdentity  string
	CustomerIdentity string
	OrderTotal       money.Money
	ProductID        string
	CategoryID       string
}

// FraudVerdict 欺诈检测结论。Rejected 为 true 时 Rule 给出命中的规则名。
type FraudVerdict struct {
	Rejected bool
	Rule     string
}

// FraudScreen 是欺诈检测的出站端口。
// 实现必须是纯计算，会在归因事务内调用。
type FraudScreen interface {
	Screen(ctx context.Context, facts FraudFacts) (FraudVerdict, error)
}
