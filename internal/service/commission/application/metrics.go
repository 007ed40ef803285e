package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attributionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commission",
		Name:      "attributions_total",
		Help:      "Order attributions by outcome.",
	}, []string{"outcome"})

	commissionCentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commission",
		Name:      "commission_cents_total",
		Help:      "Commission recorded on PENDING attributions, in cents.",
	})

	rateResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commission",
		Name:      "rate_resolutions_total",
		Help:      "Resolved commission rates by the level that produced them.",
	}, []string{"source"})

	payoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commission",
		Name:      "payouts_total",
		Help:      "Payout batch operations by action.",
	}, []string{"action"})

	tierPromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "commission",
		Name:      "tier_promotions_total",
		Help:      "Partner tier promotions by target tier.",
	}, []string{"tier"})
)
