package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/mailinglist/internal/app"
	"github.com/unclebandit/mailinglist/internal/config"
	"github.com/unclebandit/mailinglist/internal/db"
	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/logger"
	"github.com/unclebandit/mailinglist/internal/queue"
	"github.com/unclebandit/mailinglist/internal/repository"
	"github.com/unclebandit/mailinglist/internal/service"
)

func main() {
	cfg := config.Load(logger.NewNope())
	log := app.NewLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to DB
	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	queueRepo := &repository.ListQueueRepository{DB: conn}
	gw, closeCache, err := app.NewGateway(ctx, cfg, queueRepo, nil, log)
	if err != nil {
		return err
	}
	defer closeCache()
	drainer := service.NewQueueDrainer(queueRepo, gw, cfg.FieldMap, cfg.DrainBatch, log)

	// Catch up on anything queued while no worker was running.
	n, err := drainer.Drain(ctx, cfg.TenantID)
	switch {
	case errors.Is(err, list.ErrProviderUnavailable):
		log.Info("provider unavailable, startup drain deferred to schedule")
	case err != nil:
		log.Warn("startup drain failed", slog.String("error", err.Error()))
	default:
		log.Info("startup drain finished", slog.Int("entries", n))
	}

	// Connect to RabbitMQ
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required")
	}
	q, err := queue.DialAMQP(cfg.AMQPURL, log)
	if err != nil {
		return err
	}
	defer q.Close()

	if err := queue.StartQueueDrainSubscriber(q, cfg.QueueName, drainer, log); err != nil {
		return err
	}

	// Wake-ups published while the provider was down are only retried a
	// few times; the schedule drains whatever they left behind.
	scheduler := cron.New()
	if _, err := drainer.ScheduleDrain(ctx, scheduler, cfg.DrainSchedule, cfg.TenantID); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	log.Info("worker running, waiting for notifications",
		slog.String("queue", cfg.QueueName),
		slog.String("drain_schedule", cfg.DrainSchedule),
	)
	select {
	case <-ctx.Done():
		return nil
	case err := <-q.Done():
		return err
	}
}
