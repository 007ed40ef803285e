package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

func TestCreateRuleValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  RuleRequest
		want error
	}{
		{"rate above 100", RuleRequest{ScopeKind: "GLOBAL", Rate: money.FromPercent(101)}, domain.ErrRateOutOfRange},
		{"negative rate", RuleRequest{ScopeKind: "GLOBAL", Rate: money.Percent(-1)}, domain.ErrRateOutOfRange},
		{"unknown kind", RuleRequest{ScopeKind: "REGION", ScopeValue: "eu", Rate: money.FromPercent(5)}, domain.ErrInvalidScope},
		{"missing value", RuleRequest{ScopeKind: "PRODUCT", Rate: money.FromPercent(5)}, domain.ErrInvalidScope},
		{"unknown tier", RuleRequest{ScopeKind: "TIER", ScopeValue: "DIAMOND", Rate: money.FromPercent(5)}, domain.ErrInvalidScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(ctx, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	rules, err := svc.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateRule(ctx, &RuleRequest{ScopeKind: "category", ScopeValue: "books", Rate: money.Percent(750)})
	require.NoError(t, err)
	assert.Equal(t, "CATEGORY", created.ScopeKind)
	assert.True(t, created.Active)

	updated, err := svc.UpdateRule(ctx, created.ID, &RuleRequest{Rate: money.FromPercent(9)})
	require.NoError(t, err)
	assert.Equal(t, money.FromPercent(9), updated.Rate)
	assert.True(t, updated.Active)

	_, err = svc.UpdateRule(ctx, created.ID, &RuleRequest{Rate: money.FromPercent(150)})
	assert.ErrorIs(t, err, domain.ErrRateOutOfRange)

	deactivated, err := svc.DeactivateRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.Equal(t, money.FromPercent(9), deactivated.Rate)

	_, err = svc.DeactivateRule(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)

	rules, err := svc.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.False(t, rules[0].Active)
}

func TestPartnerQueries(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetPartner(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrPartnerNotFound)
	_, err = svc.RegisterPartner(ctx, &RegisterPartnerRequest{ID: "p-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	registerPartner(t, svc, "p-1", "p@x.com")
	_, err = svc.ListAttributions(ctx, "p-1", "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.SetPartnerOverride(ctx, "p-1", percentPtr(120))
	assert.ErrorIs(t, err, domain.ErrRateOutOfRange)

	p, err := svc.SetPartnerOverride(ctx, "p-1", percentPtr(12))
	require.NoError(t, err)
	require.NotNil(t, p.RateOverride)
	assert.Equal(t, money.FromPercent(12), *p.RateOverride)
	assert.Equal(t, money.FromPercent(12), *mustPartner(t, svc, "p-1").RateOverride)
}
