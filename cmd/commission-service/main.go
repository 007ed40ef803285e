// cmd/commission-service/main.go
package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"nexus-commission/internal/pkg/bootstrap"
	"nexus-commission/internal/pkg/httpclient"
	"nexus-commission/internal/pkg/mq"
	"nexus-commission/internal/pkg/redis"
	"nexus-commission/internal/service/commission/application"
	"nexus-commission/internal/service/commission/domain/port"
	"nexus-commission/internal/service/commission/infrastructure"
	"nexus-commission/internal/service/commission/infrastructure/adapter"
	"nexus-commission/internal/service/commission/interfaces"
	"nexus-commission/internal/zookeeper"
)

const serviceName = "commission-service"

var tracer = otel.Tracer(serviceName)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.Init(serviceName)
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("🛑 auth.jwt_secret (JWT_SECRET) must be set")
	}

	// 1. 存储与等级表
	db, err := infrastructure.OpenMySQL(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	store := infrastructure.NewGormStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	schedule, err := infrastructure.BuildTierSchedule(cfg.Tiers)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tier schedule")
	}
	fraud, err := adapter.NewCelFraudScreen(fraudRules(cfg.Fraud.Rules))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid fraud rules")
	}

	var (
		opts       []application.Option
		runners    []bootstrap.Runner
		onShutdown []func(ctx context.Context) error
	)

	hub := interfaces.NewPushHub()
	opts = append(opts, application.WithPublisher(hub))
	runners = append(runners, hub)

	// 2. 可选组件：未配置时对应能力降级为本地实现
	if len(cfg.Zookeeper.Servers) > 0 {
		zkConn, err := zookeeper.Connect(cfg.Zookeeper.Servers, cfg.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		opts = append(opts, application.WithPartnerLocker(adapter.NewZkPartnerLocker(zkConn, cfg.Zookeeper.LockTimeout)))
		onShutdown = append(onShutdown, func(context.Context) error { zkConn.Close(); return nil })
	}

	var marker *adapter.RedisAttributionMarker
	if len(cfg.Redis.Addrs) > 0 {
		redisClient, err := redis.NewClient(context.Background(), cfg.Redis.Addrs, cfg.Redis.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis client")
		}
		marker = adapter.NewRedisAttributionMarker(redisClient, cfg.Redis.DedupTTL)
		opts = append(opts, application.WithAttributionMarker(marker))
		onShutdown = append(onShutdown, func(context.Context) error { return redisClient.Close() })
	}

	if cfg.CRM.WebhookURL != "" {
		client := httpclient.NewClient(tracer)
		client.HTTPClient.Timeout = cfg.CRM.Timeout
		opts = append(opts, application.WithContactSink(adapter.NewCRMContactSink(client, cfg.CRM.WebhookURL)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := adapter.NewKafkaEventPublisher(mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EventTopic))
		opts = append(opts, application.WithPublisher(publisher))
		onShutdown = append(onShutdown, func(context.Context) error { return publisher.Close() })
	}

	service := application.NewCommissionService(store, schedule, fraud, tracer, opts...)

	// 3. 订单事件消费者与死信消费者
	if len(cfg.Kafka.Brokers) > 0 {
		orderReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.ConsumerGroup)
		dltWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetter)
		dltReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.DeadLetter, cfg.Kafka.ConsumerGroup+"-dlt")

		var consumerMarker port.AttributionMarker
		if marker != nil {
			consumerMarker = marker
		}
		runners = append(runners,
			interfaces.NewOrderEventConsumer(orderReader, dltWriter, service, consumerMarker, cfg.Kafka.ProcessTimeout),
			interfaces.NewDLTConsumer(dltReader),
		)
		// reader 由各自的消费者在退出时关闭
		onShutdown = append(onShutdown, func(context.Context) error { return dltWriter.Close() })
	}

	onShutdown = append(onShutdown, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	auth := interfaces.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	handler := interfaces.NewCommissionHandler(service, auth, hub, store, tracer)

	bootstrap.ExitOnError(bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Router)
		},
		Runners:    runners,
		OnShutdown: onShutdown,
	}))
}

func fraudRules(rules []bootstrap.FraudRule) []adapter.FraudRule {
	out := make([]adapter.FraudRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, adapter.FraudRule{Name: r.Name, Expression: r.Expression})
	}
	return out
}
