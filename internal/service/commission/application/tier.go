package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/domain"
)

// RecomputeTier 依据当前累计销售额重算等级。幂等，只升不降。
func (s *CommissionService) RecomputeTier(ctx context.Context, partnerID string) (*PartnerDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.RecomputeTier")
	defer span.End()
	span.SetAttributes(attribute.String("partner.id", partnerID))

	now := s.now()
	var (
		partner  *domain.Partner
		previous domain.Tier
		changed  bool
	)
	err := s.store.Transaction(ctx, func(tx domain.Repositories) error {
		p, err := tx.Partners().FindByIDForUpdate(ctx, partnerID)
		if err != nil {
			return err
		}
		previous = p.Tier
		partner = p
		if changed = p.RecomputeTier(s.schedule); !changed {
			return nil
		}
		p.UpdatedAt = now
		return tx.Partners().Save(ctx, p)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute tier failed")
		return nil, err
	}

	if partner.Tier != previous {
		tierPromotionsTotal.WithLabelValues(string(partner.Tier)).Inc()
		logger.Ctx(ctx).Info().Str("partner_id", partnerID).
			Str("from", string(previous)).Str("to", string(partner.Tier)).
			Msg("Partner promoted")
		s.publish(ctx, domain.CommissionEvent{
			Type:       domain.EventTierPromoted,
			PartnerID:  partnerID,
			Tier:       partner.Tier,
			Status:     string(previous),
			OccurredAt: now,
		})
	}
	span.SetAttributes(attribute.Bool("partner.changed", changed))
	return toPartnerDTO(partner), nil
}
