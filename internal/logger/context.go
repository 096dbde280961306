package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	requestIDKey
)

func WithTenant(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// TenantExtractor logs the tenant stored by WithTenant.
func TenantExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(tenantKey).(int64)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.Int64("tenant_id", id), true
}

// RequestIDExtractor logs the id stored by WithRequestID.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	if !ok || id == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}
