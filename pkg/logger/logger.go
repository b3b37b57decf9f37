// Package logger carries run-scoped slog attributes through a context.
package logger

import (
	"context"
	"log/slog"
)

type attrsKey struct{}

// Component returns base tagged with a component name; nil base falls back to slog.Default.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", name)
}

// WithAttrs stores key/value pairs on ctx, appended to any already present.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	existing, _ := ctx.Value(attrsKey{}).([]any)
	merged := make([]any, 0, len(existing)+len(args))
	merged = append(merged, existing...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// WithRunID tags every logger derived from ctx with the batch run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return WithAttrs(ctx, "run_id", runID)
}

// From returns base enriched with the attributes stored on ctx.
func From(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	args, _ := ctx.Value(attrsKey{}).([]any)
	if len(args) == 0 {
		return base
	}
	return base.With(args...)
}
