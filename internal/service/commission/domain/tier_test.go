package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-commission/internal/pkg/money"
)

func TestDefaultTierScheduleThresholds(t *testing.T) {
	s := DefaultTierSchedule()

	cases := []struct {
		sales string
		want  Tier
	}{
		{"0", TierBronze},
		{"9999.99", TierBronze},
		{"10000", TierSilver},
		{"49999.99", TierSilver},
		{"50000", TierGold},
		{"200000", TierPlatinum},
		{"1000000", TierPlatinum},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, s.TierFor(money.MustParse(tc.sales)), tc.sales)
	}
	assert.Equal(t, money.FromPercent(5), s.DefaultRate(TierBronze))
	assert.Equal(t, money.FromPercent(15), s.DefaultRate(TierPlatinum))
	assert.Equal(t, money.FromPercent(5), s.DefaultRate(Tier("UNKNOWN")))
}

func TestNewTierScheduleValidation(t *testing.T) {
	cases := map[string][]TierLevel{
		"empty":          nil,
		"non-zero start": {{Tier: "A", MinSales: 100, DefaultRate: 100}},
		"not ascending": {
			{Tier: "A", MinSales: 0, DefaultRate: 100},
			{Tier: "B", MinSales: 0, DefaultRate: 200},
		},
		"rate decreases": {
			{Tier: "A", MinSales: 0, DefaultRate: 500},
			{Tier: "B", MinSales: 100, DefaultRate: 400},
		},
		"rate above 100": {{Tier: "A", MinSales: 0, DefaultRate: money.FromPercent(101)}},
		"duplicate": {
			{Tier: "A", MinSales: 0, DefaultRate: 100},
			{Tier: "A", MinSales: 100, DefaultRate: 100},
		},
	}
	for name, levels := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTierSchedule(levels)
			assert.ErrorIs(t, err, ErrInvalidTierSchedule)
		})
	}
}

func TestAlternateScheduleIsInjectable(t *testing.T) {
	s, err := NewTierSchedule([]TierLevel{
		{Tier: "T0", MinSales: 0, DefaultRate: money.FromPercent(1)},
		{Tier: "T1", MinSales: money.MustParse("100"), DefaultRate: money.FromPercent(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, Tier("T1"), s.TierFor(money.MustParse("100")))
	assert.Equal(t, Tier("T1"), s.Top())
	assert.Equal(t, Tier("T0"), s.Lowest())
}

func TestPartnerTierIsMonotonic(t *testing.T) {
	s := DefaultTierSchedule()
	p, err := NewPartner("p1", "p@x.com", "P", s, testNow)
	require.NoError(t, err)
	assert.Equal(t, TierBronze, p.Tier)

	require.NoError(t, p.RecordSale(money.MustParse("10000"), money.MustParse("500")))
	assert.True(t, p.RecomputeTier(s))
	assert.Equal(t, TierSilver, p.Tier)

	// 重复计算幂等
	assert.False(t, p.RecomputeTier(s))

	// 即使销售额被外部改小，等级也不会回退
	p.TotalSales = money.MustParse("10")
	assert.False(t, p.RecomputeTier(s))
	assert.Equal(t, TierSilver, p.Tier)
}

func TestEquityEligibleOnlyAtTopTier(t *testing.T) {
	s := DefaultTierSchedule()
	p, err := NewPartner("p1", "p@x.com", "P", s, testNow)
	require.NoError(t, err)
	assert.False(t, p.EquityEligible)

	require.NoError(t, p.RecordSale(money.MustParse("50000"), 0))
	p.RecomputeTier(s)
	assert.Equal(t, TierGold, p.Tier)
	assert.False(t, p.EquityEligible)

	require.NoError(t, p.RecordSale(money.MustParse("150000"), 0))
	p.RecomputeTier(s)
	assert.Equal(t, TierPlatinum, p.Tier)
	assert.True(t, p.EquityEligible)
}

func TestRecordSaleRejectsOverflow(t *testing.T) {
	s := DefaultTierSchedule()
	p, err := NewPartner("p1", "p@x.com", "P", s, testNow)
	require.NoError(t, err)
	p.TotalSales = money.Money(math.MaxInt64 - 100)
	p.TotalCommission = money.MustParse("5.00")

	err = p.RecordSale(money.MustParse("2.00"), money.MustParse("0.10"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, money.ErrOutOfRange)
	assert.Equal(t, money.Money(math.MaxInt64-100), p.TotalSales)
	assert.Equal(t, money.MustParse("5.00"), p.TotalCommission)
	assert.Equal(t, money.Money(0), p.PendingPayout)
}
