package main

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"nexus-commission/internal/pkg/bootstrap"
	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/application"
	"nexus-commission/internal/service/commission/infrastructure"
	"nexus-commission/internal/service/commission/infrastructure/adapter"
)

// env 是一次命令执行所需的依赖，CLI 只直连数据库，不发布事件
type env struct {
	cfg     *bootstrap.Config
	db      *gorm.DB
	store   *infrastructure.GormStore
	service *application.CommissionService
}

func loadConfig() (*bootstrap.Config, error) {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(serviceName, cfg.App.LogLevel)
	return cfg, nil
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := infrastructure.OpenMySQL(cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	schedule, err := infrastructure.BuildTierSchedule(cfg.Tiers)
	if err != nil {
		return nil, err
	}
	rules := make([]adapter.FraudRule, 0, len(cfg.Fraud.Rules))
	for _, r := range cfg.Fraud.Rules {
		rules = append(rules, adapter.FraudRule{Name: r.Name, Expression: r.Expression})
	}
	fraud, err := adapter.NewCelFraudScreen(rules)
	if err != nil {
		return nil, err
	}
	store := infrastructure.NewGormStore(db)
	service := application.NewCommissionService(store, schedule, fraud, otel.Tracer(serviceName))
	return &env{cfg: cfg, db: db, store: store, service: service}, nil
}

func (e *env) Close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withEnv 打开依赖并在命令结束后关闭
func withEnv(fn func(ctx context.Context, e *env) error) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(context.Background(), e)
}
