package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain/port"
)

func TestCelFraudScreenSelfReferral(t *testing.T) {
	screen, err := NewCelFraudScreen(nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		partner  string
		customer string
		rejected bool
	}{
		{"same identity", "p@x.com", "p@x.com", true},
		{"case and whitespace", "P@X.com", "  p@x.COM ", true},
		{"different customer", "p@x.com", "c@x.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := screen.Screen(context.Background(), port.FraudFacts{
				PartnerIdentity:  tt.partner,
				CustomerIdentity: tt.customer,
				OrderTotal:       money.MustParse("10000.00"),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.rejected, verdict.Rejected)
			if tt.rejected {
				assert.Equal(t, SelfReferralRule, verdict.Rule)
			}
		})
	}
}

func TestCelFraudScreenConfiguredRule(t *testing.T) {
	screen, err := NewCelFraudScreen([]FraudRule{
		{Name: "giant_order", Expression: "order_total_cents > 10000000"},
		{Name: "blocked_category", Expression: `category_id == "gift-cards"`},
	})
	require.NoError(t, err)

	verdict, err := screen.Screen(context.Background(), port.FraudFacts{
		PartnerIdentity:  "p@x.com",
		CustomerIdentity: "c@x.com",
		OrderTotal:       money.MustParse("100000.01"),
	})
	require.NoError(t, err)
	assert.True(t, verdict.Rejected)
	assert.Equal(t, "giant_order", verdict.Rule)

	verdict, err = screen.Screen(context.Background(), port.FraudFacts{
		PartnerIdentity:  "p@x.com",
		CustomerIdentity: "c@x.com",
		OrderTotal:       money.MustParse("20.00"),
		CategoryID:       "gift-cards",
	})
	require.NoError(t, err)
	assert.Equal(t, "blocked_category", verdict.Rule)

	verdict, err = screen.Screen(context.Background(), port.FraudFacts{
		PartnerIdentity:  "p@x.com",
		CustomerIdentity: "c@x.com",
		OrderTotal:       money.MustParse("20.00"),
		CategoryID:       "books",
	})
	require.NoError(t, err)
	assert.False(t, verdict.Rejected)
}

func TestCelFraudScreenRejectsBadExpression(t *testing.T) {
	_, err := NewCelFraudScreen([]FraudRule{{Name: "broken", Expression: "order_total_cents >"}})
	assert.Error(t, err)

	_, err = NewCelFraudScreen([]FraudRule{{Name: "unknown_var", Expression: "coupon == 1"}})
	assert.Error(t, err)
}
