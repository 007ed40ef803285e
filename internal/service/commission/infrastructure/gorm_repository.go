package infrastructure

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-commission/internal/service/commission/domain"
)

const mysqlDuplicateEntry = 1062

// GormStore 是 domain.UnitOfWork 的 GORM 实现
type GormStore struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
}

type StoreOption func(*GormStore)

// WithIsolation 覆盖默认的 READ COMMITTED 隔离级别
func WithIsolation(level sql.IsolationLevel) StoreOption {
	return func(s *GormStore) { s.isolation = level }
}

func NewGormStore(db *gorm.DB, opts ...StoreOption) *GormStore {
	s := &GormStore{db: db, isolation: sql.LevelReadCommitted}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transaction 在单个事务中执行 fn，fn 内只能使用传入的 tx 仓储
func (s *GormStore) Transaction(ctx context.Context, fn func(tx domain.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormRepositories{db: tx})
	}, &sql.TxOptions{Isolation: s.isolation})
}

func (s *GormStore) Partners() domain.PartnerRepository { return gormRepositories{db: s.db}.Partners() }
func (s *GormStore) Rules() domain.RuleRepository { return gormRepositories{db: s.db}.Rules() }
func (s *GormStore) Attributions() domain.AttributionRepository { return gormRepositories{db: s.db}.Attributions() }
func (s *GormStore) Payouts() domain.PayoutRepository { return gormRepositories{db: s.db}.Payouts() }

// Migrate 创建或更新四张表
func (s *GormStore) Migrate(ctx context.Context) error {
	return errors.Wrap(s.db.WithContext(ctx).AutoMigrate(AllModels()...), "auto migrate")
}

// Ping 用于健康检查
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormRepositories struct {
	db *gorm.DB
}

func (r gormRepositories) Partners() domain.PartnerRepository {
	return &GormPartnerRepository{db: r.db}
}

func (r gormRepositories) Rules() domain.RuleRepository {
	return &GormRuleRepository{db: r.db}
}

func (r gormRepositories) Attributions() domain.AttributionRepository {
	return &GormAttributionRepository{db: r.db}
}

func (r gormRepositories) Payouts() domain.PayoutRepository {
	return &GormPayoutRepository{db: r.db}
}

// isDuplicateKey 兼容开启 TranslateError 与未开启两种情况
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GormPartnerRepository 合作伙伴仓储
type GormPartnerRepository struct {
	db *gorm.DB
}

func (r *GormPartnerRepository) FindByID(ctx context.Context, id string) (*domain.Partner, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *GormPartnerRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Partner, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormPartnerRepository) find(db *gorm.DB, id string) (*domain.Partner, error) {
	var model PartnerModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPartnerNotFound
		}
		return nil, errors.Wrapf(err, "find partner %s", id)
	}
	return toDomainPartner(&model), nil
}

func (r *GormPartnerRepository) Create(ctx context.Context, p *domain.Partner) error {
	return errors.Wrapf(r.db.WithContext(ctx).Create(toPartnerModel(p)).Error, "create partner %s", p.ID)
}

// Save 写回所有可变字段
func (r *GormPartnerRepository) Save(ctx context.Context, p *domain.Partner) error {
	m := toPartnerModel(p)
	updateData := map[string]interface{}{
		"identity":               m.Identity,
		"name":                   m.Name,
		"total_sales_cents":      m.TotalSalesCents,
		"total_commission_cents": m.TotalCommissionCents,
		"pending_payout_cents":   m.PendingPayoutCents,
		"tier":                   m.Tier,
		"rate_override_bps":      m.RateOverrideBps,
		"equity_eligible":        m.EquityEligible,
		"active":                 m.Active,
		"updated_at":             m.UpdatedAt,
	}
	err := r.db.WithContext(ctx).Model(&PartnerModel{}).Where("id = ?", p.ID).Updates(updateData).Error
	return errors.Wrapf(err, "save partner %s", p.ID)
}

// GormRuleRepository 佣金规则仓储
type GormRuleRepository struct {
	db *gorm.DB
}

func (r *GormRuleRepository) FindByID(ctx context.Context, id string) (*domain.CommissionRule, error) {
	var model CommissionRuleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, errors.Wrapf(err, "find rule %s", id)
	}
	return toDomainRule(&model)
}

// FindActive 用一次查询取出所有候选作用域上的启用规则
func (r *GormRuleRepository) FindActive(ctx context.Context, scopes []domain.Scope) ([]*domain.CommissionRule, error) {
	if len(scopes) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(scopes))
	args := make([]interface{}, 0, len(scopes)*2+1)
	args = append(args, true)
	for _, s := range scopes {
		conds = append(conds, "(scope_kind = ? AND scope_value = ?)")
		args = append(args, string(s.Kind()), s.Value())
	}

	var models []CommissionRuleModel
	err := r.db.WithContext(ctx).
		Where("active = ? AND ("+strings.Join(conds, " OR ")+")", args...).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find active rules")
	}
	return toDomainRules(models)
}

func (r *GormRuleRepository) List(ctx context.Context) ([]*domain.CommissionRule, error) {
	var models []CommissionRuleModel
	if err := r.db.WithContext(ctx).Order("scope_kind, scope_value, created_at").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list rules")
	}
	return toDomainRules(models)
}

func (r *GormRuleRepository) Create(ctx context.Context, rule *domain.CommissionRule) error {
	return errors.Wrapf(r.db.WithContext(ctx).Create(toRuleModel(rule)).Error, "create rule %s", rule.ID)
}

func (r *GormRuleRepository) Save(ctx context.Context, rule *domain.CommissionRule) error {
	err := r.db.WithContext(ctx).Model(&CommissionRuleModel{}).Where("id = ?", rule.ID).Updates(map[string]interface{}{
		"rate_bps":   rule.Rate.BasisPoints(),
		"active":     rule.Active,
		"updated_at": rule.UpdatedAt,
	}).Error
	return errors.Wrapf(err, "save rule %s", rule.ID)
}

func toDomainRules(models []CommissionRuleModel) ([]*domain.CommissionRule, error) {
	out := make([]*domain.CommissionRule, 0, len(models))
	for i := range models {
		rule, err := toDomainRule(&models[i])
		if err != nil {
			return nil, errors.Wrapf(err, "decode rule %s", models[i].ID)
		}
		out = append(out, rule)
	}
	return out, nil
}
