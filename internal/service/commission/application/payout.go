package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/domain"
)

// CreatePayout 把合作伙伴所有 APPROVED 且未入批次的归因打包成一个付款批次。
// 没有可付款项时返回 NothingToPay，不报错。
func (s *CommissionService) CreatePayout(ctx context.Context, partnerID string) (*CreatePayoutResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreatePayout")
	defer span.End()
	span.SetAttributes(attribute.String("partner.id", partnerID))

	unlock, err := s.lockPartner(ctx, partnerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer unlock()

	now := s.now()
	var payout *domain.Payout
	err = s.store.Transaction(ctx, func(tx domain.Repositories) error {
		// 先锁合作伙伴，与归因事务保持相同的加锁顺序
		if _, err := tx.Partners().FindByIDForUpdate(ctx, partnerID); err != nil {
			return err
		}
		claimable, err := tx.Attributions().ListClaimable(ctx, partnerID)
		if err != nil {
			return err
		}
		if len(claimable) == 0 {
			return nil
		}

		p := domain.NewPayout(s.newID(), partnerID, claimable, now)
		if err := tx.Payouts().Create(ctx, p); err != nil {
			return err
		}
		ids := make([]string, 0, len(claimable))
		for _, a := range claimable {
			ids = append(ids, a.ID)
		}
		claimed, err := tx.Attributions().Claim(ctx, ids, p.ID)
		if err != nil {
			return err
		}
		if claimed != int64(len(ids)) {
			return fmt.Errorf("%w: claimed %d of %d attributions", domain.ErrClaimConflict, claimed, len(ids))
		}
		payout = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payout failed")
		logger.Ctx(ctx).Error().Err(err).Str("partner_id", partnerID).Msg("Create payout failed")
		return nil, err
	}

	if payout == nil {
		logger.Ctx(ctx).Info().Str("partner_id", partnerID).Msg("Nothing to pay")
		payoutsTotal.WithLabelValues("nothing_to_pay").Inc()
		return &CreatePayoutResponse{NothingToPay: true}, nil
	}

	payoutsTotal.WithLabelValues("created").Inc()
	logger.Ctx(ctx).Info().
		Str("partner_id", partnerID).
		Str("payout_id", payout.ID).
		Str("amount", payout.Amount.String()).
		Int("attributions", payout.AttributionCount).
		Msg("✅ Payout created")
	s.publish(ctx, domain.CommissionEvent{
		Type:       domain.EventPayoutCreated,
		PartnerID:  partnerID,
		PayoutID:   payout.ID,
		Amount:     payout.Amount,
		Status:     string(payout.Status),
		OccurredAt: now,
	})
	return &CreatePayoutResponse{Payout: toPayoutDTO(payout)}, nil
}

// SettlePayout 由操作员记录付款结果。
// COMPLETED 把批次内的归因标记为 PAID 并按批次金额扣减待付；FAILED 只改批次状态。
func (s *CommissionService) SettlePayout(ctx context.Context, payoutID string, req *SettlePayoutRequest) (*PayoutDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.SettlePayout")
	defer span.End()
	span.SetAttributes(attribute.String("payout.id", payoutID))

	outcome, err := domain.ParseSettlementOutcome(req.Outcome)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := s.now()
	var settled *domain.Payout
	err = s.store.Transaction(ctx, func(tx domain.Repositories) error {
		payout, partner, err := s.lockPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if err := payout.Settle(outcome, req.Reference, now); err != nil {
			return err
		}

		if outcome == domain.PayoutCompleted {
			paid, err := tx.Attributions().MarkPaid(ctx, payout.ID, now)
			if err != nil {
				return err
			}
			if paid != int64(payout.AttributionCount) {
				return fmt.Errorf("%w: payout %s covers %d attributions, %d marked paid",
					domain.ErrClaimConflict, payout.ID, payout.AttributionCount, paid)
			}
			partner.SettlePayout(payout.Amount)
			partner.UpdatedAt = now
			if err := tx.Partners().Save(ctx, partner); err != nil {
				return err
			}
		}
		if err := tx.Payouts().Save(ctx, payout); err != nil {
			return err
		}
		settled = payout
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle payout failed")
		logger.Ctx(ctx).Error().Err(err).Str("payout_id", payoutID).Msg("Settle payout failed")
		return nil, err
	}

	payoutsTotal.WithLabelValues(string(settled.Status)).Inc()
	logger.Ctx(ctx).Info().
		Str("payout_id", settled.ID).
		Str("partner_id", settled.PartnerID).
		Str("status", string(settled.Status)).
		Msg("Payout settled")
	s.publish(ctx, domain.CommissionEvent{
		Type:       domain.EventPayoutSettled,
		PartnerID:  settled.PartnerID,
		PayoutID:   settled.ID,
		Amount:     settled.Amount,
		Status:     string(settled.Status),
		OccurredAt: now,
	})
	return toPayoutDTO(settled), nil
}

// ReleasePayout 释放 FAILED 批次里的归因，它们保持 APPROVED，下一次 CreatePayout 会重新打包
func (s *CommissionService) ReleasePayout(ctx context.Context, payoutID string) (*PayoutDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.ReleasePayout")
	defer span.End()
	span.SetAttributes(attribute.String("payout.id", payoutID))

	now := s.now()
	var released *domain.Payout
	var count int64
	err := s.store.Transaction(ctx, func(tx domain.Repositories) error {
		payout, _, err := s.lockPayout(ctx, tx, payoutID)
		if err != nil {
			return err
		}
		if err := payout.Release(now); err != nil {
			return err
		}
		count, err = tx.Attributions().Release(ctx, payout.ID)
		if err != nil {
			return err
		}
		if err := tx.Payouts().Save(ctx, payout); err != nil {
			return err
		}
		released = payout
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release payout failed")
		logger.Ctx(ctx).Error().Err(err).Str("payout_id", payoutID).Msg("Release payout failed")
		return nil, err
	}

	payoutsTotal.WithLabelValues("released").Inc()
	logger.Ctx(ctx).Info().Str("payout_id", released.ID).Int64("attributions", count).Msg("Failed payout released")
	s.publish(ctx, domain.CommissionEvent{
		Type:       domain.EventPayoutReleased,
		PartnerID:  released.PartnerID,
		PayoutID:   released.ID,
		Amount:     released.Amount,
		Status:     string(released.Status),
		OccurredAt: now,
	})
	return toPayoutDTO(released), nil
}

// lockPayout 按 合作伙伴 -> 批次 的顺序加锁
func (s *CommissionService) lockPayout(ctx context.Context, tx domain.Repositories, payoutID string) (*domain.Payout, *domain.Partner, error) {
	peek, err := tx.Payouts().FindByID(ctx, payoutID)
	if err != nil {
		return nil, nil, err
	}
	partner, err := tx.Partners().FindByIDForUpdate(ctx, peek.PartnerID)
	if err != nil {
		return nil, nil, err
	}
	payout, err := tx.Payouts().FindByIDForUpdate(ctx, payoutID)
	if err != nil {
		return nil, nil, err
	}
	return payout, partner, nil
}

func (s *CommissionService) GetPayout(ctx context.Context, payoutID string) (*PayoutDTO, error) {
	payout, err := s.store.Payouts().FindByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	return toPayoutDTO(payout), nil
}

func (s *CommissionService) ListPayouts(ctx context.Context, partnerID string) ([]*PayoutDTO, error) {
	if _, err := s.store.Partners().FindByID(ctx, partnerID); err != nil {
		return nil, err
	}
	payouts, err := s.store.Payouts().ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	out := make([]*PayoutDTO, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, toPayoutDTO(p))
	}
	return out, nil
}
