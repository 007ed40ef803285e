package infrastructure

import (
	"fmt"
	"strings"

	"nexus-commission/internal/pkg/bootstrap"
	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

// BuildTierSchedule 把配置中的等级表解析为领域对象，空配置使用默认等级表
func BuildTierSchedule(tiers []bootstrap.TierConfig) (*domain.TierSchedule, error) {
	if len(tiers) == 0 {
		return domain.DefaultTierSchedule(), nil
	}
	levels := make([]domain.TierLevel, 0, len(tiers))
	for _, t := range tiers {
		minSales, err := money.ParseMoney(t.MinSales)
		if err != nil {
			return nil, fmt.Errorf("%w: tier %s min_sales: %v", domain.ErrInvalidTierSchedule, t.Tier, err)
		}
		rate, err := money.ParsePercent(t.DefaultRate)
		if err != nil {
			return nil, fmt.Errorf("%w: tier %s default_rate: %v", domain.ErrInvalidTierSchedule, t.Tier, err)
		}
		levels = append(levels, domain.TierLevel{
			Tier:        domain.Tier(strings.ToUpper(strings.TrimSpace(t.Tier))),
			MinSales:    minSales,
			DefaultRate: rate,
		})
	}
	return domain.NewTierSchedule(levels)
}
