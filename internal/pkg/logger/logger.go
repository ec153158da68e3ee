// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// base 是进程级的根 logger，Init 之前使用一个输出到 stderr 的默认实例
var base = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init 设置服务名与日志级别，level 无法识别时回退为 info
func Init(serviceName, level string) {
	InitWithWriter(serviceName, level, os.Stdout)
}

// InitWithWriter 与 Init 相同，但允许指定输出目标（测试中写入 buffer）
func InitWithWriter(serviceName, level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回带有当前 span 的 trace_id / span_id 的 logger。
// 如果 ctx 里已经放入了 logger（WithContext），优先使用它。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base
	if ctx == nil {
		return &l
	}
	if fromCtx := zerolog.Ctx(ctx); fromCtx != nil && fromCtx.GetLevel() != zerolog.Disabled {
		l = *fromCtx
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}

// WithContext 把根 logger 放进 ctx，后续 zerolog.Ctx(ctx) 也能拿到它
func WithContext(ctx context.Context) context.Context {
	return base.WithContext(ctx)
}

// Base 返回根 logger 的副本，供不持有 ctx 的组件使用
func Base() *zerolog.Logger {
	l := base
	return &l
}
