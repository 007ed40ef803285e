// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 zerolog，所有服务在 main 中调用一次
func Init(serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回与 ctx 绑定的 logger。
// 优先使用中间件注入的 logger，否则基于全局 logger 并补上 trace_id。
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := zlog.Logger
	if traceID := TraceID(ctx); traceID != "" {
		l = l.With().Str("trace_id", traceID).Logger()
	}
	return &l
}

// TraceID 从 ctx 中的 span 提取 trace id，没有时返回空串
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Middleware 为每个请求注入带 trace_id 的 logger
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := zlog.With().Str("method", r.Method).Str("path", r.URL.Path)
		if traceID := TraceID(ctx); traceID != "" {
			l = l.Str("trace_id", traceID)
		}
		logger := l.Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
	})
}
