package adapter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/service/commission/domain/port"
)

// SelfReferralRule 是内置规则名，客户身份与合作伙伴身份相同即拒绝
const SelfReferralRule = "self_referral"

const selfReferralExpr = `partner_identity != "" && partner_identity == customer_identity`

// FraudRule 是一条可配置的 CEL 欺诈规则，表达式求值为 true 即拒绝
type FraudRule struct {
	Name       string
	Expression string
}

type compiledRule struct {
	name    string
	program cel.Program
}

// CelFraudScreen 是 port.FraudScreen 的 CEL 实现，纯计算，无 I/O。
// 可用变量：partner_identity, customer_identity, order_total_cents, product_id, category_id。
type CelFraudScreen struct {
	rules []compiledRule
}

// NewCelFraudScreen 编译内置规则与配置规则，任何一条编译失败都返回错误
func NewCelFraudScreen(extra []FraudRule) (*CelFraudScreen, error) {
	env, err := cel.NewEnv(
		cel.Variable("partner_identity", cel.StringType),
		cel.Variable("customer_identity", cel.StringType),
		cel.Variable("order_total_cents", cel.IntType),
		cel.Variable("product_id", cel.StringType),
		cel.Variable("category_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}

	all := append([]FraudRule{{Name: SelfReferralRule, Expression: selfReferralExpr}}, extra...)
	screen := &CelFraudScreen{rules: make([]compiledRule, 0, len(all))}
	for _, r := range all {
		ast, iss := env.Compile(r.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile fraud rule %q: %w", r.Name, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build fraud rule %q: %w", r.Name, err)
		}
		screen.rules = append(screen.rules, compiledRule{name: r.Name, program: prg})
	}
	return screen, nil
}

// Screen 按顺序求值，第一条命中的规则决定拒绝原因
func (s *CelFraudScreen) Screen(_ context.Context, facts port.FraudFacts) (port.FraudVerdict, error) {
	vars := map[string]interface{}{
		"partner_identity":  domain.NormalizeIdentity(facts.PartnerIdentity),
		"customer_identity": domain.NormalizeIdentity(facts.CustomerIdentity),
		"order_total_cents": facts.OrderTotal.Cents(),
		"product_id":        facts.ProductID,
		"category_id":       facts.CategoryID,
	}
	for _, r := range s.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			return port.FraudVerdict{}, fmt.Errorf("evaluate fraud rule %q: %w", r.name, err)
		}
		hit, ok := out.Value().(bool)
		if !ok {
			return port.FraudVerdict{}, fmt.Errorf("fraud rule %q returned %T, want bool", r.name, out.Value())
		}
		if hit {
			return port.FraudVerdict{Rejected: true, Rule: r.name}, nil
		}
	}
	return port.FraudVerdict{}, nil
}
