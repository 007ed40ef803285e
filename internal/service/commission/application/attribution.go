package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/application/ledger"
	"nexus-commission/internal/service/commission/domain"
)

const contactSyncTimeout = 5 * time.Second

// Attribute 把一笔订单归因到合作伙伴。
// 同一订单号第二次调用返回 domain.ErrAlreadyAttributed；自我推荐被记录为 REJECTED 并正常返回。
func (s *CommissionService) Attribute(ctx context.Context, req *AttributeRequest) (*AttributeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.Attribute")
	defer span.End()

	span.SetAttributes(
		attribute.String("partner.id", req.PartnerID),
		attribute.String("order.id", req.OrderID),
	)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid attribution request")
		attributionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	unlock, err := s.lockPartner(ctx, req.PartnerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire partner lock failed")
		return nil, errors.Wrapf(err, "lock partner %s", req.PartnerID)
	}
	defer unlock()

	attrCtx := &ledger.AttributionContext{
		Tracer:    s.tracer,
		Schedule:  s.schedule,
		Resolver:  s.resolver,
		Fraud:     s.fraud,
		NewID:     s.newID,
		Now:       s.now(),
		PartnerID: req.PartnerID,
		Order:     req.facts(),
	}
	err = s.store.Transaction(ctx, func(tx domain.Repositories) error {
		attrCtx.Ctx = ctx
		attrCtx.Tx = tx
		return s.chain.Handle(attrCtx)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyAttributed) {
			logger.Ctx(ctx).Warn().Str("order_id", attrCtx.Order.OrderID).Msg("Order already attributed, ignoring redelivery")
			attributionsTotal.WithLabelValues("duplicate").Inc()
			s.markAttributed(ctx, attrCtx.Order.OrderID)
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "attribution transaction failed")
		attributionsTotal.WithLabelValues("error").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Str("partner_id", req.PartnerID).Msg("Attribution failed")
		return nil, err
	}

	s.afterAttribution(ctx, attrCtx)
	return toAttributeResponse(attrCtx), nil
}

// afterAttribution 事务提交后的副作用：去重标记、事件、CRM 同步、指标
func (s *CommissionService) afterAttribution(ctx context.Context, attrCtx *ledger.AttributionContext) {
	a := attrCtx.Attribution
	partner := attrCtx.Partner
	s.markAttributed(ctx, a.OrderID)

	if attrCtx.Rejected() {
		attributionsTotal.WithLabelValues("rejected").Inc()
		s.publish(ctx, domain.CommissionEvent{
			Type:          domain.EventAttributionRejected,
			PartnerID:     partner.ID,
			OrderID:       a.OrderID,
			AttributionID: a.ID,
			Tier:          partner.Tier,
			Status:        string(a.Status),
			OccurredAt:    attrCtx.Now,
		})
		return
	}

	attributionsTotal.WithLabelValues("attributed").Inc()
	commissionCentsTotal.Add(float64(a.Commission.Cents()))
	rateResolutionsTotal.WithLabelValues(string(attrCtx.Resolution.Source)).Inc()
	logger.Ctx(ctx).Info().
		Str("partner_id", partner.ID).
		Str("order_id", a.OrderID).
		Str("commission", a.Commission.String()).
		Str("rate", a.Rate.String()).
		Str("rate_source", string(a.RateSource)).
		Msg("✅ Order attributed")

	events := []domain.CommissionEvent{{
		Type:          domain.EventAttributed,
		PartnerID:     partner.ID,
		OrderID:       a.OrderID,
		AttributionID: a.ID,
		Amount:        a.Commission,
		Rate:          a.Rate,
		Tier:          a.Tier,
		Status:        string(a.Status),
		OccurredAt:    attrCtx.Now,
	}}
	if attrCtx.Promoted {
		tierPromotionsTotal.WithLabelValues(string(partner.Tier)).Inc()
		logger.Ctx(ctx).Info().Str("partner_id", partner.ID).
			Str("from", string(attrCtx.PreviousTier)).Str("to", string(partner.Tier)).
			Msg("Partner promoted")
		events = append(events, domain.CommissionEvent{
			Type:       domain.EventTierPromoted,
			PartnerID:  partner.ID,
			Tier:       partner.Tier,
			Status:     string(attrCtx.PreviousTier),
			OccurredAt: attrCtx.Now,
		})
	}
	s.publish(ctx, events...)
	s.syncContact(ctx, domain.ContactRecord{
		Email:     a.CustomerIdentity,
		PartnerID: partner.ID,
		OrderID:   a.OrderID,
		Source:    "partner_referral",
	})
}

func (s *CommissionService) markAttributed(ctx context.Context, orderID string) {
	if s.marker == nil {
		return
	}
	if err := s.marker.MarkAttributed(ctx, orderID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("Failed to record attributed order marker")
	}
}

// syncContact 即发即忘，不阻塞调用方，也不受调用方取消影响
func (s *CommissionService) syncContact(ctx context.Context, contact domain.ContactRecord) {
	if s.contacts == nil {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), contactSyncTimeout)
	go func() {
		defer cancel()
		if err := s.contacts.SyncContact(bg, contact); err != nil {
			logger.Ctx(bg).Warn().Err(err).Str("order_id", contact.OrderID).Msg("CRM contact sync failed")
		}
	}()
}

func toAttributeResponse(attrCtx *ledger.AttributionContext) *AttributeResponse {
	a := attrCtx.Attribution
	return &AttributeResponse{
		AttributionID: a.ID,
		OrderID:       a.OrderID,
		Status:        string(a.Status),
		Commission:    a.Commission,
		Rate:          a.Rate,
		RateSource:    string(a.RateSource),
		Tier:          string(attrCtx.Partner.Tier),
		Promoted:      attrCtx.Promoted,
		Rejected:      attrCtx.Rejected(),
		RejectReason:  a.RejectReason,
	}
}
