package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

func TestAttributeRecordsPendingCommission(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(t, WithPublisher(pub))
	registerPartner(t, svc, "p-1", "p@x.com")

	resp := attributeOrder(t, svc, "p-1", "o-1", "200.00")
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, money.MustParse("10.00"), resp.Commission)
	assert.Equal(t, money.FromPercent(5), resp.Rate)
	assert.Equal(t, string(domain.RateSourceTierDefault), resp.RateSource)
	assert.Equal(t, "BRONZE", resp.Tier)
	assert.False(t, resp.Rejected)

	p := mustPartner(t, svc, "p-1")
	assert.Equal(t, money.MustParse("200.00"), p.TotalSales)
	assert.Equal(t, money.MustParse("10.00"), p.TotalCommission)
	assert.Equal(t, money.MustParse("10.00"), p.PendingPayout)
	assert.Equal(t, []domain.EventType{domain.EventAttributed}, pub.types())
}

func TestAttributeIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	registerPartner(t, svc, "p-1", "p@x.com")
	attributeOrder(t, svc, "p-1", "o-1", "100.00")

	_, err := svc.Attribute(context.Background(), &AttributeRequest{
		PartnerID:        "p-1",
		OrderID:          "o-1",
		OrderTotal:       money.MustParse("100.00"),
		CustomerIdentity: "other@shop.com",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyAttributed)

	list, err := svc.ListAttributions(context.Background(), "p-1", "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	p := mustPartner(t, svc, "p-1")
	assert.Equal(t, money.MustParse("100.00"), p.TotalSales)
	assert.Equal(t, money.MustParse("5.00"), p.PendingPayout)
}

func TestAttributeSelfReferralIsRejected(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(t, WithPublisher(pub))
	registerPartner(t, svc, "p-1", "p@x.com")

	resp, err := svc.Attribute(context.Background(), &AttributeRequest{
		PartnerID:        "p-1",
		OrderID:          "o-fraud",
		OrderTotal:       money.MustParse("10000.00"),
		CustomerIdentity: " P@x.com ",
	})
	require.NoError(t, err)
	assert.True(t, resp.Rejected)
	assert.Equal(t, "REJECTED", resp.Status)
	assert.Equal(t, money.Money(0), resp.Commission)
	assert.Equal(t, money.Percent(0), resp.Rate)
	assert.Equal(t, "self_referral", resp.RejectReason)

	p := mustPartner(t, svc, "p-1")
	assert.Equal(t, money.Money(0), p.TotalSales)
	assert.Equal(t, money.Money(0), p.TotalCommission)
	assert.Equal(t, money.Money(0), p.PendingPayout)
	assert.Equal(t, "BRONZE", p.Tier)
	assert.Equal(t, []domain.EventType{domain.EventAttributionRejected}, pub.types())

	// 拒绝记录同样占用订单号
	_, err = svc.Attribute(context.Background(), &AttributeRequest{
		PartnerID:        "p-1",
		OrderID:          "o-fraud",
		OrderTotal:       money.MustParse("10000.00"),
		CustomerIdentity: "c@x.com",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyAttributed)
}

func TestAttributeRoundsToCents(t *testing.T) {
	svc := newTestService(t)
	registerPartner(t, svc, "p-1", "p@x.com")
	_, err := svc.SetPartnerOverride(context.Background(), "p-1", percentPtr(7))
	require.NoError(t, err)

	first := attributeOrder(t, svc, "p-1", "o-1", "333.33")
	second := attributeOrder(t, svc, "p-1", "o-2", "333.33")
	assert.Equal(t, money.MustParse("23.33"), first.Commission)
	assert.Equal(t, first.Commission, second.Commission)
	assert.Equal(t, string(domain.RateSourceOverride), first.RateSource)
}

func TestAttributeOverrideBeatsEveryRule(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerPartner(t, svc, "p-1", "p@x.com")
	for _, req := range []*RuleRequest{
		{ScopeKind: "PARTNER", ScopeValue: "p-1", Rate: money.FromPercent(18)},
		{ScopeKind: "PRODUCT", ScopeValue: "sku-1", Rate: money.FromPercent(12)},
		{ScopeKind: "CATEGORY", ScopeValue: "books", Rate: money.FromPercent(9)},
		{ScopeKind: "TIER", ScopeValue: "bronze", Rate: money.FromPercent(6)},
	} {
		_, err := svc.CreateRule(ctx, req)
		require.NoError(t, err)
	}
	_, err := svc.SetPartnerOverride(ctx, "p-1", percentPtr(20))
	require.NoError(t, err)

	resp, err := svc.Attribute(ctx, &AttributeRequest{
		PartnerID:        "p-1",
		OrderID:          "o-1",
		OrderTotal:       money.MustParse("100.00"),
		CustomerIdentity: "c@x.com",
		ProductID:        "sku-1",
		CategoryID:       "books",
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromPercent(20), resp.Rate)
	assert.Equal(t, money.MustParse("20.00"), resp.Commission)
}

func TestAttributeFallbackChain(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerPartner(t, svc, "p-1", "p@x.com")

	ruleIDs := make([]string, 0, 5)
	for _, req := range []*RuleRequest{
		{ScopeKind: "PARTNER", ScopeValue: "p-1", Rate: money.FromPercent(18)},
		{ScopeKind: "PRODUCT", ScopeValue: "sku-1", Rate: money.FromPercent(12)},
		{ScopeKind: "CATEGORY", ScopeValue: "books", Rate: money.FromPercent(9)},
		{ScopeKind: "TIER", ScopeValue: "BRONZE", Rate: money.FromPercent(6)},
		{ScopeKind: "GLOBAL", Rate: money.FromPercent(3)},
	} {
		rule, err := svc.CreateRule(ctx, req)
		require.NoError(t, err)
		ruleIDs = append(ruleIDs, rule.ID)
	}
	_, err := svc.SetPartnerOverride(ctx, "p-1", percentPtr(20))
	require.NoError(t, err)

	order := 0
	resolve := func() *AttributeResponse {
		order++
		resp, err := svc.Attribute(ctx, &AttributeRequest{
			PartnerID:        "p-1",
			OrderID:          "o-" + string(rune('a'+order)),
			OrderTotal:       money.MustParse("100.00"),
			CustomerIdentity: "c@x.com",
			ProductID:        "sku-1",
			CategoryID:       "books",
		})
		require.NoError(t, err)
		return resp
	}

	got := resolve()
	assert.Equal(t, string(domain.RateSourceOverride), got.RateSource)
	assert.Equal(t, money.FromPercent(20), got.Rate)

	_, err = svc.SetPartnerOverride(ctx, "p-1", nil)
	require.NoError(t, err)

	expected := []struct {
		source domain.RateSource
		rate   int64
	}{
		{domain.RateSourcePartnerRule, 18},
		{domain.RateSourceProductRule, 12},
		{domain.RateSourceCategory, 9},
		{domain.RateSourceTierRule, 6},
		{domain.RateSourceGlobalRule, 3},
	}
	for i, want := range expected {
		got = resolve()
		assert.Equal(t, string(want.source), got.RateSource)
		assert.Equal(t, money.FromPercent(want.rate), got.Rate)
		_, err := svc.DeactivateRule(ctx, ruleIDs[i])
		require.NoError(t, err)
	}

	got = resolve()
	assert.Equal(t, string(domain.RateSourceTierDefault), got.RateSource)
	assert.Equal(t, money.FromPercent(5), got.Rate)
}

func TestAttributePromotesTierMonotonically(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(t, WithPublisher(pub))
	ctx := context.Background()
	registerPartner(t, svc, "p-1", "p@x.com")

	first := attributeOrder(t, svc, "p-1", "o-1", "9999.99")
	assert.False(t, first.Promoted)

	// 达到门槛的这一笔仍按旧等级计佣
	second := attributeOrder(t, svc, "p-1", "o-2", "0.01")
	assert.True(t, second.Promoted)
	assert.Equal(t, "SILVER", second.Tier)
	assert.Equal(t, money.FromPercent(5), second.Rate)

	third := attributeOrder(t, svc, "p-1", "o-3", "100.00")
	assert.Equal(t, money.FromPercent(8), third.Rate)

	_, err := svc.RejectAttribution(ctx, third.AttributionID, &ReviewRequest{Reason: "returned"})
	require.NoError(t, err)
	_, err = svc.RejectAttribution(ctx, first.AttributionID, &ReviewRequest{Reason: "returned"})
	require.NoError(t, err)

	p, err := svc.RecomputeTier(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "SILVER", p.Tier)
	assert.Equal(t, money.MustParse("10100.00"), p.TotalSales)
	assert.False(t, p.EquityEligible)
	assert.Contains(t, pub.types(), domain.EventTierPromoted)
}

func TestAttributeTopTierIsEquityEligible(t *testing.T) {
	svc := newTestService(t)
	registerPartner(t, svc, "p-1", "p@x.com")

	resp := attributeOrder(t, svc, "p-1", "o-1", "250000.00")
	assert.True(t, resp.Promoted)
	assert.Equal(t, "PLATINUM", resp.Tier)
	assert.True(t, mustPartner(t, svc, "p-1").EquityEligible)
}

func TestAttributeValidation(t *testing.T) {
	svc := newTestService(t)
	registerPartner(t, svc, "p-1", "p@x.com")

	tests := []struct {
		name string
		req  AttributeRequest
		want error
	}{
		{"missing order", AttributeRequest{PartnerID: "p-1", OrderTotal: 100, CustomerIdentity: "c@x.com"}, domain.ErrInvalidInput},
		{"zero total", AttributeRequest{PartnerID: "p-1", OrderID: "o-1", CustomerIdentity: "c@x.com"}, domain.ErrInvalidInput},
		{"unknown partner", AttributeRequest{PartnerID: "nobody", OrderID: "o-1", OrderTotal: 100, CustomerIdentity: "c@x.com"}, domain.ErrPartnerNotFound},
		{"total above ceiling", AttributeRequest{PartnerID: "p-1", OrderID: "o-1", OrderTotal: money.MaxAmount + 1, CustomerIdentity: "c@x.com"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Attribute(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAttributeLargestOrderKeepsAggregatesPositive(t *testing.T) {
	svc := newTestService(t)
	registerPartner(t, svc, "p-1", "p@x.com")

	resp := attributeOrder(t, svc, "p-1", "o-1", "1000000000000")
	assert.Equal(t, "50000000000.00", resp.Commission.String())

	p := mustPartner(t, svc, "p-1")
	assert.Equal(t, money.MaxAmount, p.TotalSales)
	assert.Equal(t, resp.Commission, p.TotalCommission)
	assert.Equal(t, resp.Commission, p.PendingPayout)
}

func TestAttributeInactivePartner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerPartner(t, svc, "p-1", "p@x.com")
	_, err := svc.DeactivatePartner(ctx, "p-1")
	require.NoError(t, err)

	_, err = svc.Attribute(ctx, &AttributeRequest{
		PartnerID:        "p-1",
		OrderID:          "o-1",
		OrderTotal:       money.MustParse("50.00"),
		CustomerIdentity: "c@x.com",
	})
	assert.ErrorIs(t, err, domain.ErrPartnerInactive)

	list, err := svc.ListAttributions(ctx, "p-1", "")
	require.NoError(t, err)
	assert.Empty(t, list)

	// 重新注册即重新启用
	registerPartner(t, svc, "p-1", "p@x.com")
	attributeOrder(t, svc, "p-1", "o-1", "50.00")
}

type stubMarker struct {
	marked []string
}

func (m *stubMarker) MarkAttributed(_ context.Context, orderID string) error {
	m.marked = append(m.marked, orderID)
	return nil
}

func (m *stubMarker) IsAttributed(_ context.Context, orderID string) (bool, error) {
	for _, id := range m.marked {
		if id == orderID {
			return true, nil
		}
	}
	return false, nil
}

func TestAttributeMarksOrder(t *testing.T) {
	marker := &stubMarker{}
	svc := newTestService(t, WithAttributionMarker(marker))
	registerPartner(t, svc, "p-1", "p@x.com")

	attributeOrder(t, svc, "p-1", "o-1", "10.00")
	ok, err := marker.IsAttributed(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAttributeMarksTrimmedOrderID(t *testing.T) {
	marker := &stubMarker{}
	svc := newTestService(t, WithAttributionMarker(marker))
	ctx := context.Background()
	registerPartner(t, svc, "p-1", "p@x.com")

	req := &AttributeRequest{PartnerID: "p-1", OrderID: "  o-7 ", OrderTotal: money.MustParse("10.00"), CustomerIdentity: "c@x.com"}
	resp, err := svc.Attribute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "o-7", resp.OrderID)

	// 重复投递走冲突分支，同样以去空白后的订单号打标记
	_, err = svc.Attribute(ctx, &AttributeRequest{PartnerID: "p-1", OrderID: "o-7\t", OrderTotal: money.MustParse("10.00"), CustomerIdentity: "c@x.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyAttributed)

	assert.Equal(t, []string{"o-7", "o-7"}, marker.marked)
}

type chanContactSink chan domain.ContactRecord

func (c chanContactSink) SyncContact(_ context.Context, contact domain.ContactRecord) error {
	c <- contact
	return nil
}

func TestAttributeSyncsContact(t *testing.T) {
	sink := make(chanContactSink, 1)
	svc := newTestService(t, WithContactSink(sink))
	registerPartner(t, svc, "p-1", "p@x.com")

	attributeOrder(t, svc, "p-1", "o-1", "10.00")
	contact := <-sink
	assert.Equal(t, "customer-o-1@shop.com", contact.Email)
	assert.Equal(t, "p-1", contact.PartnerID)
}
