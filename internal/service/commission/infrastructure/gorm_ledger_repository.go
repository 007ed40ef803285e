package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"nexus-commission/internal/service/commission/domain"
)

// GormAttributionRepository 归因账本仓储
type GormAttributionRepository struct {
	db *gorm.DB
}

func (r *GormAttributionRepository) Create(ctx context.Context, a *domain.Attribution) error {
	if err := r.db.WithContext(ctx).Create(toAttributionModel(a)).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.ErrAlreadyAttributed
		}
		return errors.Wrapf(err, "create attribution for order %s", a.OrderID)
	}
	return nil
}

func (r *GormAttributionRepository) FindByID(ctx context.Context, id string) (*domain.Attribution, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *GormAttributionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Attribution, error) {
	return r.first(forUpdate(r.db.WithContext(ctx)).Where("id = ?", id))
}

func (r *GormAttributionRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Attribution, error) {
	return r.first(r.db.WithContext(ctx).Where("order_id = ?", orderID))
}

func (r *GormAttributionRepository) first(db *gorm.DB) (*domain.Attribution, error) {
	var model PartnerAttributionModel
	if err := db.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttributionNotFound
		}
		return nil, errors.Wrap(err, "find attribution")
	}
	return toDomainAttribution(&model), nil
}

func (r *GormAttributionRepository) ListByPartner(ctx context.Context, partnerID string, status *domain.AttributionStatus) ([]*domain.Attribution, error) {
	q := r.db.WithContext(ctx).Where("partner_id = ?", partnerID)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	var models []PartnerAttributionModel
	if err := q.Order("created_at, id").Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "list attributions of partner %s", partnerID)
	}
	return toDomainAttributions(models), nil
}

// ListClaimable 必须在事务内调用，选中的行会被加锁直到事务结束
func (r *GormAttributionRepository) ListClaimable(ctx context.Context, partnerID string) ([]*domain.Attribution, error) {
	var models []PartnerAttributionModel
	err := forUpdate(r.db.WithContext(ctx)).
		Where("partner_id = ? AND status = ? AND payout_id IS NULL", partnerID, string(domain.AttributionApproved)).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list claimable attributions of partner %s", partnerID)
	}
	return toDomainAttributions(models), nil
}

// Claim 只认领仍未入批次的行，返回值小于 len(ids) 说明发生了并发认领
func (r *GormAttributionRepository) Claim(ctx context.Context, ids []string, payoutID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&PartnerAttributionModel{}).
		Where("id IN ? AND status = ? AND payout_id IS NULL", ids, string(domain.AttributionApproved)).
		Update("payout_id", payoutID)
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "claim attributions into payout %s", payoutID)
	}
	return res.RowsAffected, nil
}

func (r *GormAttributionRepository) MarkPaid(ctx context.Context, payoutID string, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&PartnerAttributionModel{}).
		Where("payout_id = ? AND status = ?", payoutID, string(domain.AttributionApproved)).
		Updates(map[string]interface{}{
			"status":  string(domain.AttributionPaid),
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "mark attributions of payout %s paid", payoutID)
	}
	return res.RowsAffected, nil
}

// Release 清空失败批次的 payout_id，归因保持 APPROVED
func (r *GormAttributionRepository) Release(ctx context.Context, payoutID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&PartnerAttributionModel{}).
		Where("payout_id = ? AND status = ?", payoutID, string(domain.AttributionApproved)).
		Update("payout_id", gorm.Expr("NULL"))
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "release attributions of payout %s", payoutID)
	}
	return res.RowsAffected, nil
}

// SaveReview 只写回审核相关字段，金额与费率一经创建不再改变
func (r *GormAttributionRepository) SaveReview(ctx context.Context, a *domain.Attribution) error {
	m := toAttributionModel(a)
	err := r.db.WithContext(ctx).Model(&PartnerAttributionModel{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"status":        m.Status,
		"reject_reason": m.RejectReason,
		"reviewed_at":   m.ReviewedAt,
	}).Error
	return errors.Wrapf(err, "save review of attribution %s", a.ID)
}

func toDomainAttributions(models []PartnerAttributionModel) []*domain.Attribution {
	out := make([]*domain.Attribution, 0, len(models))
	for i := range models {
		out = append(out, toDomainAttribution(&models[i]))
	}
	return out
}

// GormPayoutRepository 付款批次仓储
type GormPayoutRepository struct {
	db *gorm.DB
}

func (r *GormPayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	m := toPayoutModel(p)
	m.UpdatedAt = p.CreatedAt
	return errors.Wrapf(r.db.WithContext(ctx).Create(m).Error, "create payout %s", p.ID)
}

func (r *GormPayoutRepository) FindByID(ctx context.Context, id string) (*domain.Payout, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *GormPayoutRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Payout, error) {
	return r.first(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormPayoutRepository) first(db *gorm.DB, id string) (*domain.Payout, error) {
	var model PartnerPayoutModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, errors.Wrapf(err, "find payout %s", id)
	}
	return toDomainPayout(&model), nil
}

func (r *GormPayoutRepository) ListByPartner(ctx context.Context, partnerID string) ([]*domain.Payout, error) {
	var models []PartnerPayoutModel
	if err := r.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "list payouts of partner %s", partnerID)
	}
	out := make([]*domain.Payout, 0, len(models))
	for i := range models {
		out = append(out, toDomainPayout(&models[i]))
	}
	return out, nil
}

// Save 写回状态迁移相关字段，金额冻结不变
func (r *GormPayoutRepository) Save(ctx context.Context, p *domain.Payout) error {
	m := toPayoutModel(p)
	err := r.db.WithContext(ctx).Model(&PartnerPayoutModel{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"status":       m.Status,
		"reference":    m.Reference,
		"processed_at": m.ProcessedAt,
		"released_at":  m.ReleasedAt,
		"updated_at":   time.Now(),
	}).Error
	return errors.Wrapf(err, "save payout %s", p.ID)
}
