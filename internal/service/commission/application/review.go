package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/domain"
)

// ApproveAttribution 人工审核通过，PENDING -> APPROVED
func (s *CommissionService) ApproveAttribution(ctx context.Context, attributionID string) (*AttributionDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.ApproveAttribution")
	defer span.End()
	span.SetAttributes(attribute.String("attribution.id", attributionID))

	now := s.now()
	var approved *domain.Attribution
	err := s.store.Transaction(ctx, func(tx domain.Repositories) error {
		a, err := tx.Attributions().FindByIDForUpdate(ctx, attributionID)
		if err != nil {
			return err
		}
		if err := a.Approve(now); err != nil {
			return err
		}
		if err := tx.Attributions().SaveReview(ctx, a); err != nil {
			return err
		}
		approved = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "approve attribution failed")
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("attribution_id", approved.ID).Str("order_id", approved.OrderID).Msg("Attribution approved")
	s.publish(ctx, domain.CommissionEvent{
		Type:          domain.EventAttributionApproved,
		PartnerID:     approved.PartnerID,
		OrderID:       approved.OrderID,
		AttributionID: approved.ID,
		Amount:        approved.Commission,
		Rate:          approved.Rate,
		Status:        string(approved.Status),
		OccurredAt:    now,
	})
	return toAttributionDTO(approved), nil
}

// RejectAttribution 人工审核拒绝，PENDING -> REJECTED。
// 佣金从累计佣金与待付中扣回，累计销售额不变。
func (s *CommissionService) RejectAttribution(ctx context.Context, attributionID string, req *ReviewRequest) (*AttributionDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.RejectAttribution")
	defer span.End()
	span.SetAttributes(attribute.String("attribution.id", attributionID))

	now := s.now()
	var rejected *domain.Attribution
	err := s.store.Transaction(ctx, func(tx domain.Repositories) error {
		peek, err := tx.Attributions().FindByID(ctx, attributionID)
		if err != nil {
			return err
		}
		partner, err := tx.Partners().FindByIDForUpdate(ctx, peek.PartnerID)
		if err != nil {
			return err
		}
		a, err := tx.Attributions().FindByIDForUpdate(ctx, attributionID)
		if err != nil {
			return err
		}
		if err := a.Reject(req.Reason, now); err != nil {
			return err
		}
		if err := tx.Attributions().SaveReview(ctx, a); err != nil {
			return err
		}
		partner.ReverseCommission(a.Commission)
		partner.UpdatedAt = now
		if err := tx.Partners().Save(ctx, partner); err != nil {
			return err
		}
		rejected = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reject attribution failed")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("attribution_id", rejected.ID).
		Str("order_id", rejected.OrderID).
		Str("reason", rejected.RejectReason).
		Msg("Attribution rejected in review")
	s.publish(ctx, domain.CommissionEvent{
		Type:          domain.EventAttributionRejected,
		PartnerID:     rejected.PartnerID,
		OrderID:       rejected.OrderID,
		AttributionID: rejected.ID,
		Amount:        rejected.Commission,
		Status:        string(rejected.Status),
		OccurredAt:    now,
	})
	return toAttributionDTO(rejected), nil
}
