package application

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/service/commission/infrastructure"
	"nexus-commission/internal/service/commission/infrastructure/adapter"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.CommissionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.CommissionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// newTestService 每个测试一个独立的内存 SQLite 库，单连接
func newTestService(t *testing.T, opts ...Option) *CommissionService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return buildTestService(t, openTestStore(t, dsn, 1), opts...)
}

// newConcurrentTestService 使用文件库与多个连接。
// BEGIN IMMEDIATE 让写事务在数据库层排队，效果等同于 MySQL 上对合作伙伴行加锁。
func newConcurrentTestService(t *testing.T, wrap func(domain.UnitOfWork) domain.UnitOfWork, opts ...Option) *CommissionService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate", path)
	var store domain.UnitOfWork = openTestStore(t, dsn, 8)
	if wrap != nil {
		store = wrap(store)
	}
	return buildTestService(t, store, opts...)
}

func openTestStore(t *testing.T, dsn string, maxConns int) *infrastructure.GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { sqlDB.Close() })

	store := infrastructure.NewGormStore(db, infrastructure.WithIsolation(sql.LevelDefault))
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func buildTestService(t *testing.T, store domain.UnitOfWork, opts ...Option) *CommissionService {
	t.Helper()
	fraud, err := adapter.NewCelFraudScreen(nil)
	require.NoError(t, err)

	var seq int64
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%05d", atomic.AddInt64(&seq, 1)) }),
	}
	return NewCommissionService(store, domain.DefaultTierSchedule(), fraud,
		noop.NewTracerProvider().Tracer("test"), append(base, opts...)...)
}

func registerPartner(t *testing.T, svc *CommissionService, id, identity string) {
	t.Helper()
	_, err := svc.RegisterPartner(context.Background(), &RegisterPartnerRequest{ID: id, Identity: identity, Name: id})
	require.NoError(t, err)
}

func attributeOrder(t *testing.T, svc *CommissionService, partnerID, orderID, total string) *AttributeResponse {
	t.Helper()
	resp, err := svc.Attribute(context.Background(), &AttributeRequest{
		PartnerID:        partnerID,
		OrderID:          orderID,
		OrderTotal:       money.MustParse(total),
		CustomerIdentity: "customer-" + orderID + "@shop.com",
	})
	require.NoError(t, err)
	return resp
}

func mustPartner(t *testing.T, svc *CommissionService, id string) *PartnerDTO {
	t.Helper()
	p, err := svc.GetPartner(context.Background(), id)
	require.NoError(t, err)
	return p
}

func percentPtr(pct int64) *money.Percent {
	p := money.FromPercent(pct)
	return &p
}
