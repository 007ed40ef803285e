package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-commission/internal/pkg/bootstrap"
	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

func TestBuildTierScheduleFromDefaults(t *testing.T) {
	schedule, err := BuildTierSchedule(bootstrap.DefaultConfig().Tiers)
	require.NoError(t, err)

	assert.Equal(t, domain.TierBronze, schedule.Lowest())
	assert.Equal(t, domain.TierPlatinum, schedule.Top())
	assert.Equal(t, domain.TierSilver, schedule.TierFor(money.MustParse("10000.00")))
	assert.Equal(t, money.FromPercent(10), schedule.DefaultRate(domain.TierGold))
}

func TestBuildTierScheduleFractionalRate(t *testing.T) {
	schedule, err := BuildTierSchedule([]bootstrap.TierConfig{
		{Tier: "starter", MinSales: "0", DefaultRate: "7.5"},
		{Tier: "pro", MinSales: "2500.50", DefaultRate: "12"},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Percent(750), schedule.DefaultRate("STARTER"))
	assert.Equal(t, domain.Tier("PRO"), schedule.TierFor(money.MustParse("2500.50")))
}

func TestBuildTierScheduleInvalid(t *testing.T) {
	tests := []struct {
		name  string
		tiers []bootstrap.TierConfig
	}{
		{"bad amount", []bootstrap.TierConfig{{Tier: "A", MinSales: "abc", DefaultRate: "5"}}},
		{"bad rate", []bootstrap.TierConfig{{Tier: "A", MinSales: "0", DefaultRate: "5.555"}}},
		{"not starting at zero", []bootstrap.TierConfig{{Tier: "A", MinSales: "10", DefaultRate: "5"}}},
		{"descending", []bootstrap.TierConfig{
			{Tier: "A", MinSales: "0", DefaultRate: "5"},
			{Tier: "B", MinSales: "0", DefaultRate: "8"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTierSchedule(tt.tiers)
			assert.ErrorIs(t, err, domain.ErrInvalidTierSchedule)
		})
	}
}

func TestBuildTierScheduleEmpty(t *testing.T) {
	schedule, err := BuildTierSchedule(nil)
	require.NoError(t, err)
	assert.Len(t, schedule.Levels(), 4)
}
