package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// AliasKey is the context key for the client-facing thread alias.
	AliasKey contextKey = "alias"

	// InternalIDKey is the context key for the upstream thread id.
	InternalIDKey contextKey = "internal_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithAlias adds the thread alias to the context.
func WithAlias(ctx context.Context, alias string) context.Context {
	return context.WithValue(ctx, AliasKey, alias)
}

// GetAlias retrieves the thread alias from the context.
func GetAlias(ctx context.Context) string {
	if v, ok := ctx.Value(AliasKey).(string); ok {
		return v
	}
	return ""
}

// WithInternalID adds the resolved upstream thread id to the context.
func WithInternalID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, InternalIDKey, id)
}

// GetInternalID retrieves the upstream thread id from the context.
func GetInternalID(ctx context.Context) string {
	if v, ok := ctx.Value(InternalIDKey).(string); ok {
		return v
	}
	return ""
}

// contextFields returns the request-scoped fields present in ctx as
// key-value pairs.
func contextFields(ctx context.Context) []any {
	var fields []any
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, "request_id", v)
	}
	if v := GetAlias(ctx); v != "" {
		fields = append(fields, "alias", v)
	}
	if v := GetInternalID(ctx); v != "" {
		fields = append(fields, "internal_id", v)
	}
	return fields
}

// FromContext returns base (or slog.Default when nil) enriched with the
// request-scoped fields carried by ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
