// Package observability provides the production implementations of the
// service's logging, metrics, tracing and audit hooks.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gardenkeep/internal/core"
)

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// NewZap builds a zap logger. JSON uses the production preset, console the
// development one.
func NewZap(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(orDefault(cfg.Level, "info"))))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	var zc zap.Config
	switch strings.ToLower(orDefault(cfg.Format, "json")) {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// ZapLogger adapts a zap SugaredLogger to core.Logger.
type ZapLogger struct {
	s *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger wraps l. A nil logger yields a no-op adapter.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{s: l.Sugar()}
}

// Debug, Info, Warn and Error log msg with alternating key/value args.
func (z *ZapLogger) Debug(msg string, args ...any) { z.s.Debugw(msg, args...) }
func (z *ZapLogger) Info(msg string, args ...any)  { z.s.Infow(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...any)  { z.s.Warnw(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...any) { z.s.Errorw(msg, args...) }
