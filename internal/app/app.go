// Package app wires configuration into the list gateway shared by the
// server and worker binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/mailinglist/internal/config"
	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/list/resendlist"
	"github.com/unclebandit/mailinglist/internal/logger"
)

func NewLogger(cfg config.Config) *slog.Logger {
	return logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.LogLevel),
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.Environment,
	}, logger.TenantExtractor, logger.RequestIDExtractor)
}

// NewProvider returns the Resend provider when an API key is configured and
// an in-memory list otherwise.
func NewProvider(cfg config.Config, log *slog.Logger) list.Provider {
	if cfg.ResendAPIKey == "" {
		log.Warn("RESEND_API_KEY not set, using in-memory mailing list")
		return list.NewMemoryProvider()
	}
	return resendlist.New(resendlist.Config{
		APIKey:         cfg.ResendAPIKey,
		AudienceID:     cfg.ResendAudienceID,
		From:           cfg.ResendFrom,
		ReplyTo:        cfg.ResendReplyTo,
		WelcomeSubject: cfg.WelcomeSubject,
		WelcomeHTML:    cfg.WelcomeHTML,
		WelcomeText:    cfg.WelcomeText,
	})
}

// NewAvailabilityCache shares provider health through Redis when REDIS_URL
// is set and falls back to a per-process cache. The returned func closes
// any connection that was opened.
func NewAvailabilityCache(ctx context.Context, cfg config.Config, log *slog.Logger) (list.AvailabilityCache, func(), error) {
	if cfg.RedisURL == "" {
		return list.NewMemoryAvailability(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("availability cache backed by redis", slog.String("addr", opts.Addr))
	return list.NewRedisAvailability(client, log), func() { client.Close() }, nil
}

// NewGateway assembles the fallback gateway for the configured tenant.
func NewGateway(ctx context.Context, cfg config.Config, queue list.QueueStore, notifier list.Notifier, log *slog.Logger) (*list.FallbackGateway, func(), error) {
	cache, closeCache, err := NewAvailabilityCache(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	opts := []list.Option{
		list.WithLogger(log),
		list.WithAvailabilityCache(cache),
	}
	if notifier != nil {
		opts = append(opts, list.WithNotifier(notifier))
	}

	gw := list.NewFallbackGateway(NewProvider(cfg, log), queue, list.Config{
		Shortname:       cfg.ListShortname,
		TenantID:        cfg.TenantID,
		AvailabilityTTL: cfg.AvailabilityTTL,
	}, opts...)
	return gw, closeCache, nil
}
