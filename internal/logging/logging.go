// Package logging builds the zap logger used across the project.
package logging

import (
	"fmt"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger at the given level. format is "json" (production
// encoder) or "console" (development encoder).
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// ErrorFields expands err into zap fields. oops errors contribute their code
// and context.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			fields = append(fields, zap.Any("code", code))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields = append(fields, zap.Any("context", ctx))
		}
	}
	return fields
}

// Error logs err at error level with its oops code and context.
func Error(l *zap.Logger, msg string, err error, fields ...zap.Field) {
	l.Error(msg, append(ErrorFields(err), fields...)...)
}

// Warn logs err at warn level with its oops code and context.
func Warn(l *zap.Logger, msg string, err error, fields ...zap.Field) {
	l.Warn(msg, append(ErrorFields(err), fields...)...)
}
