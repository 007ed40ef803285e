package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/application/ledger"
	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/service/commission/domain/port"
)

// CommissionService 编排佣金引擎的所有用例。
// 每个变更型用例都是一个显式事务，外部 I/O（分布式锁除外）只发生在事务提交之后。
type CommissionService struct {
	store    domain.UnitOfWork
	schedule *domain.TierSchedule
	resolver *domain.RateResolver
	fraud    port.FraudScreen
	tracer   trace.Tracer
	chain    ledger.Handler

	locker     port.PartnerLocker
	publishers []port.EventPublisher
	contacts   port.ContactSink
	marker     port.AttributionMarker

	newID func() string
	now   func() time.Time
}

type Option func(*CommissionService)

// WithPartnerLocker 在数据库行锁之外再加一层跨实例的合作伙伴锁
func WithPartnerLocker(locker port.PartnerLocker) Option {
	return func(s *CommissionService) { s.locker = locker }
}

// WithPublisher 追加一个事件发布目标
func WithPublisher(p port.EventPublisher) Option {
	return func(s *CommissionService) { s.publishers = append(s.publishers, p) }
}

func WithContactSink(sink port.ContactSink) Option {
	return func(s *CommissionService) { s.contacts = sink }
}

func WithAttributionMarker(marker port.AttributionMarker) Option {
	return func(s *CommissionService) { s.marker = marker }
}

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(s *CommissionService) { s.now = now }
}

// WithIDGenerator 替换 id 生成器，测试使用
func WithIDGenerator(newID func() string) Option {
	return func(s *CommissionService) { s.newID = newID }
}

func NewCommissionService(store domain.UnitOfWork, schedule *domain.TierSchedule, fraud port.FraudScreen, tracer trace.Tracer, opts ...Option) *CommissionService {
	s := &CommissionService{
		store:    store,
		schedule: schedule,
		resolver: domain.NewRateResolver(schedule),
		fraud:    fraud,
		tracer:   tracer,
		chain:    ledger.BuildChain(),
		newID:    func() string { return uuid.New().String() },
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule 返回注入的等级表
func (s *CommissionService) Schedule() *domain.TierSchedule {
	return s.schedule
}

func (s *CommissionService) lockPartner(ctx context.Context, partnerID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Lock(ctx, partnerID)
}

// publish 在事务提交之后调用，发布失败只记录日志
func (s *CommissionService) publish(ctx context.Context, events ...domain.CommissionEvent) {
	for _, event := range events {
		if event.EventID == "" {
			event.EventID = s.newID()
		}
		for _, p := range s.publishers {
			if err := p.Publish(ctx, event); err != nil {
				logger.Ctx(ctx).Error().Err(err).
					Str("event_type", string(event.Type)).
					Str("partner_id", event.PartnerID).
					Msg("Failed to publish commission event")
			}
		}
	}
}
