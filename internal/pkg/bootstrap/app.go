// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/pkg/nacos"
	"nexus-commission/internal/pkg/tracing"
)

type AppCtx struct {
	Router chi.Router
	Nacos  *nacos.Client
	Config *Config
}

// Runner 是随服务一起启停的后台任务（例如 Kafka 消费者），ctx 取消时应返回
type Runner interface {
	Run(ctx context.Context) error
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	Runners          []Runner
	// OnShutdown 在 HTTP 服务关闭后按注册顺序执行，用于关闭 writer、连接池等
	OnShutdown []func(ctx context.Context) error
}

// Init 加载配置并初始化日志，必须在 StartService 之前调用
func Init(serviceName string) *Config {
	cfg, err := LoadConfig(getEnv("COMMISSION_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel)

	// 配置中心存在时，以远端配置为准
	if cfg.Nacos.ServerAddrs != "" && cfg.Nacos.DataID != "" {
		content, err := nacos.FetchConfig(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group, cfg.Nacos.DataID)
		if err != nil {
			log.Fatal().Err(err).Str("data_id", cfg.Nacos.DataID).Msg("failed to fetch remote config")
		}
		if err := cfg.MergeYAML(content); err != nil {
			log.Fatal().Err(err).Msg("invalid remote config")
		}
		applyEnv(cfg)
		logger.Init(serviceName, cfg.App.LogLevel)
	}
	SetCurrentConfig(cfg)
	return cfg
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。阻塞直到收到退出信号或任一组件失败。
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "initialize tracer provider")
	}

	// 2. 服务注册（可选）
	var namingClient *nacos.Client
	var ip string
	if cfg.Nacos.ServerAddrs != "" {
		namingClient, err = nacos.NewNacosClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			return errors.Wrap(err, "initialize nacos client")
		}
		if ip, err = getOutboundIP(); err != nil {
			return errors.Wrap(err, "get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	// 3. HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Router: router, Nacos: namingClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})
	for _, r := range info.Runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}

	// 4. 优雅关停：收到信号或任一组件退出后执行，按启动的逆序清理
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("Shutting down service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		for _, fn := range info.OnShutdown {
			if err := fn(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error during shutdown hook")
			}
		}
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Str("service", info.ServiceName).Msg("Service gracefully shut down.")
	return err
}

// getOutboundIP 通过一次 UDP "连接" 得到本机对外网卡地址，不会真正发包
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// ExitOnError 供 main 使用
func ExitOnError(err error) {
	if err != nil {
		log.Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
}
