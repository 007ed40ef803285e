package domain

import (
	"fmt"

	"nexus-commission/internal/pkg/money"
)

// Tier 是合作伙伴等级
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// TierLevel 描述一个等级的门槛与默认费率
type TierLevel struct {
	Tier        Tier
	MinSales    money.Money
	DefaultRate money.Percent
}

// TierSchedule 是按门槛升序排列的等级表，作为配置注入，不在代码中写死。
type TierSchedule struct {
	levels []TierLevel
	rank   map[Tier]int
}

// NewTierSchedule 校验并构造等级表：
// 门槛从 0 开始严格递增，默认费率在 [0,100] 内且随等级不递减。
func NewTierSchedule(levels []TierLevel) (*TierSchedule, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierSchedule)
	}
	if levels[0].MinSales != 0 {
		return nil, fmt.Errorf("%w: lowest tier must start at 0", ErrInvalidTierSchedule)
	}
	rank := make(map[Tier]int, len(levels))
	for i, l := range levels {
		if l.Tier == "" {
			return nil, fmt.Errorf("%w: tier %d has no name", ErrInvalidTierSchedule, i)
		}
		if _, dup := rank[l.Tier]; dup {
			return nil, fmt.Errorf("%w: duplicate tier %s", ErrInvalidTierSchedule, l.Tier)
		}
		if !l.DefaultRate.Valid() {
			return nil, fmt.Errorf("%w: tier %s rate %s", ErrInvalidTierSchedule, l.Tier, l.DefaultRate)
		}
		if i > 0 {
			prev := levels[i-1]
			if l.MinSales <= prev.MinSales {
				return nil, fmt.Errorf("%w: thresholds must be strictly ascending at %s", ErrInvalidTierSchedule, l.Tier)
			}
			if l.DefaultRate < prev.DefaultRate {
				return nil, fmt.Errorf("%w: default rates must not decrease at %s", ErrInvalidTierSchedule, l.Tier)
			}
		}
		rank[l.Tier] = i
	}
	copied := make([]TierLevel, len(levels))
	copy(copied, levels)
	return &TierSchedule{levels: copied, rank: rank}, nil
}

// DefaultTierSchedule 5% / 8% / 10% / 15%
func DefaultTierSchedule() *TierSchedule {
	s, err := NewTierSchedule([]TierLevel{
		{Tier: TierBronze, MinSales: money.MustParse("0"), DefaultRate: money.FromPercent(5)},
		{Tier: TierSilver, MinSales: money.MustParse("10000"), DefaultRate: money.FromPercent(8)},
		{Tier: TierGold, MinSales: money.MustParse("50000"), DefaultRate: money.FromPercent(10)},
		{Tier: TierPlatinum, MinSales: money.MustParse("200000"), DefaultRate: money.FromPercent(15)},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// TierFor 自高向低匹配，返回第一个门槛 <= totalSales 的等级
func (s *TierSchedule) TierFor(totalSales money.Money) Tier {
	for i := len(s.levels) - 1; i >= 0; i-- {
		if s.levels[i].MinSales <= totalSales {
			return s.levels[i].Tier
		}
	}
	return s.levels[0].Tier
}

// DefaultRate 返回等级的兜底费率，未知等级按最低等级处理
func (s *TierSchedule) DefaultRate(t Tier) money.Percent {
	if i, ok := s.rank[t]; ok {
		return s.levels[i].DefaultRate
	}
	return s.levels[0].DefaultRate
}

// Rank 返回等级序号，未知等级为 -1
func (s *TierSchedule) Rank(t Tier) int {
	if i, ok := s.rank[t]; ok {
		return i
	}
	return -1
}

func (s *TierSchedule) Has(t Tier) bool {
	_, ok := s.rank[t]
	return ok
}

func (s *TierSchedule) Lowest() Tier { return s.levels[0].Tier }

func (s *TierSchedule) Top() Tier { return s.levels[len(s.levels)-1].Tier }

func (s *TierSchedule) Levels() []TierLevel {
	out := make([]TierLevel, len(s.levels))
	copy(out, s.levels)
	return out
}
