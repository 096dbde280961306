package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailinglist/internal/logger"
)

func TestDecoratorAddsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewLogHandlerDecorator(slog.NewJSONHandler(&buf, nil),
		logger.TenantExtractor, logger.RequestIDExtractor, nil)
	log := slog.New(h)

	ctx := logger.WithRequestID(logger.WithTenant(context.Background(), 12), "req-1")
	log.InfoContext(ctx, "queued")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "queued", rec["msg"])
	assert.Equal(t, float64(12), rec["tenant_id"])
	assert.Equal(t, "req-1", rec["request_id"])
}

func TestDecoratorSkipsMissingValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(logger.NewLogHandlerDecorator(slog.NewJSONHandler(&buf, nil), logger.TenantExtractor))
	log.With("list", "news").Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "tenant_id")
	assert.Equal(t, "news", rec["list"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("loud"))
}
