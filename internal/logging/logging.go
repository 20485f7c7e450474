// Package logging threads a zap.SugaredLogger through context.Context,
// the same shape the teacher gets from knative.dev/pkg/logging without
// pulling in that package's injection machinery.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// NewLogger builds a SugaredLogger whose encoding is selected by
// format: "json" for production log aggregation, anything else for a
// human-readable console encoder.
func NewLogger(level, format string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	zapLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zapLevel

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// WithLogger returns a context carrying logger, retrievable via FromContext.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op
// logger if none was attached — callers never need a nil check.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return zap.NewNop().Sugar()
}
