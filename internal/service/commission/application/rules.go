package application

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/domain"
)

// CreateRule 新建佣金规则，active 缺省为 true
func (s *CommissionService) CreateRule(ctx context.Context, req *RuleRequest) (*RuleDTO, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateRule")
	defer span.End()

	scope, err := s.parseScope(req.ScopeKind, req.ScopeValue)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule, err := domain.NewCommissionRule(s.newID(), scope, req.Rate, active, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.store.Rules().Create(ctx, rule); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create rule failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("rule.id", rule.ID))
	logger.Ctx(ctx).Info().
		Str("rule_id", rule.ID).
		Str("scope_kind", string(scope.Kind())).
		Str("scope_value", scope.Value()).
		Str("rate", rule.Rate.String()).
		Msg("Commission rule created")
	return toRuleDTO(rule), nil
}

// UpdateRule 修改费率与启用状态，作用域创建后不可变
func (s *CommissionService) UpdateRule(ctx context.Context, ruleID string, req *RuleRequest) (*RuleDTO, error) {
	return s.changeRule(ctx, "service.UpdateRule", ruleID, func(r *domain.CommissionRule) error {
		active := r.Active
		if req.Active != nil {
			active = *req.Active
		}
		return r.Change(req.Rate, active, s.now())
	})
}

// DeactivateRule 规则只停用不删除，历史归因仍能追溯
func (s *CommissionService) DeactivateRule(ctx context.Context, ruleID string) (*RuleDTO, error) {
	return s.changeRule(ctx, "service.DeactivateRule", ruleID, func(r *domain.CommissionRule) error {
		return r.Change(r.Rate, false, s.now())
	})
}

func (s *CommissionService) changeRule(ctx context.Context, op, ruleID string, mutate func(r *domain.CommissionRule) error) (*RuleDTO, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("rule.id", ruleID))

	var changed *domain.CommissionRule
	err := s.store.Transaction(ctx, func(tx domain.Repositories) error {
		r, err := tx.Rules().FindByID(ctx, ruleID)
		if err != nil {
			return err
		}
		if err := mutate(r); err != nil {
			return err
		}
		changed = r
		return tx.Rules().Save(ctx, r)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "change rule failed")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("rule_id", ruleID).Str("rate", changed.Rate.String()).Bool("active", changed.Active).Msg("Commission rule changed")
	return toRuleDTO(changed), nil
}

func (s *CommissionService) ListRules(ctx context.Context) ([]*RuleDTO, error) {
	rules, err := s.store.Rules().List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*RuleDTO, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleDTO(r))
	}
	return out, nil
}

// parseScope 等级作用域必须是等级表中存在的等级
func (s *CommissionService) parseScope(kind, value string) (domain.Scope, error) {
	scope, err := domain.ScopeFrom(domain.ScopeKind(strings.ToUpper(strings.TrimSpace(kind))), value)
	if err != nil {
		return nil, err
	}
	if ts, ok := scope.(domain.TierScope); ok && !s.schedule.Has(ts.Tier) {
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidScope, ts.Tier)
	}
	return scope, nil
}
