package application

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
)

// RegisterPartner 幂等注册。已存在的合作伙伴会被重新启用，累计值保持不变。
func (s *CommissionService) RegisterPartner(ctx context.Context, req *RegisterPartnerRequest) (*PartnerDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.RegisterPartner")
	defer span.End()
	span.SetAttributes(attribute.String("partner.id", req.ID))

	now := s.now()
	fresh, err := domain.NewPartner(strings.TrimSpace(req.ID), req.Identity, req.Name, s.schedule, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var saved *domain.Partner
	err = s.store.Transaction(ctx, func(tx domain.Repositories) error {
		existing, err := tx.Partners().FindByIDForUpdate(ctx, fresh.ID)
		if errors.Is(err, domain.ErrPartnerNotFound) {
			saved = fresh
			return tx.Partners().Create(ctx, fresh)
		}
		if err != nil {
			return err
		}
		existing.Identity = fresh.Identity
		if fresh.Name != "" {
			existing.Name = fresh.Name
		}
		existing.Active = true
		existing.UpdatedAt = now
		saved = existing
		return tx.Partners().Save(ctx, existing)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register partner failed")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("partner_id", saved.ID).Str("tier", string(saved.Tier)).Msg("Partner registered")
	return toPartnerDTO(saved), nil
}

// DeactivatePartner 停用后不再接受新的归因，已有账目照常审核与付款
func (s *CommissionService) DeactivatePartner(ctx context.Context, partnerID string) (*PartnerDTO, error) {
	return s.updatePartner(ctx, "service.DeactivatePartner", partnerID, func(p *domain.Partner) error {
		p.Deactivate()
		return nil
	})
}

// SetPartnerOverride 设置个人费率，rate 为 nil 时清除
func (s *CommissionService) SetPartnerOverride(ctx context.Context, partnerID string, rate *money.Percent) (*PartnerDTO, error) {
	return s.updatePartner(ctx, "service.SetPartnerOverride", partnerID, func(p *domain.Partner) error {
		return p.SetRateOverride(rate)
	})
}

func (s *CommissionService) updatePartner(ctx context.Context, op, partnerID string, mutate func(p *domain.Partner) error) (*PartnerDTO, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("partner.id", partnerID))

	var updated *domain.Partner
	err := s.store.Transaction(ctx, func(tx domain.Repositories) error {
		p, err := tx.Partners().FindByIDForUpdate(ctx, partnerID)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		updated = p
		return tx.Partners().Save(ctx, p)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update partner failed")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("partner_id", partnerID).Str("op", op).Msg("Partner updated")
	return toPartnerDTO(updated), nil
}

func (s *CommissionService) GetPartner(ctx context.Context, partnerID string) (*PartnerDTO, error) {
	p, err := s.store.Partners().FindByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return toPartnerDTO(p), nil
}

// ListAttributions status 为空时返回全部
func (s *CommissionService) ListAttributions(ctx context.Context, partnerID, status string) ([]*AttributionDTO, error) {
	var filter *domain.AttributionStatus
	if status != "" {
		st, err := domain.ParseAttributionStatus(strings.ToUpper(status))
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	if _, err := s.store.Partners().FindByID(ctx, partnerID); err != nil {
		return nil, err
	}
	list, err := s.store.Attributions().ListByPartner(ctx, partnerID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*AttributionDTO, 0, len(list))
	for _, a := range list {
		out = append(out, toAttributionDTO(a))
	}
	return out, nil
}
