package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/mailinglist/internal/app"
	"github.com/unclebandit/mailinglist/internal/campaign"
	"github.com/unclebandit/mailinglist/internal/config"
	"github.com/unclebandit/mailinglist/internal/controller"
	"github.com/unclebandit/mailinglist/internal/db"
	"github.com/unclebandit/mailinglist/internal/handler"
	"github.com/unclebandit/mailinglist/internal/logger"
	"github.com/unclebandit/mailinglist/internal/notice"
	"github.com/unclebandit/mailinglist/internal/queue"
	"github.com/unclebandit/mailinglist/internal/repository"
	"github.com/unclebandit/mailinglist/internal/service"
)

func main() {
	cfg := config.Load(logger.NewNope())
	log := app.NewLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn, log); err != nil {
		return err
	}

	queueRepo := &repository.ListQueueRepository{DB: conn}

	// Notifications go to RabbitMQ for the worker; without a broker the
	// queue is drained in process.
	var q queue.Queue
	var brokerDone <-chan error
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			return err
		}
		defer amqpQueue.Close()
		q = amqpQueue
		brokerDone = amqpQueue.Done()
	} else {
		q = queue.NewInMemoryQueue(log)
	}
	notifier := &queue.Notifier{Queue: q, Topic: cfg.QueueName}

	gw, closeCache, err := app.NewGateway(ctx, cfg, queueRepo, notifier, log)
	if err != nil {
		return err
	}
	defer closeCache()

	drainer := service.NewQueueDrainer(queueRepo, gw, cfg.FieldMap, cfg.DrainBatch, log)
	if cfg.AMQPURL == "" {
		if err := queue.StartQueueDrainSubscriber(q, cfg.QueueName, drainer, log); err != nil {
			return err
		}

		scheduler := cron.New()
		if _, err := drainer.ScheduleDrain(ctx, scheduler, cfg.DrainSchedule, cfg.TenantID); err != nil {
			return err
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	renderer := campaign.NewRenderer(os.DirFS(cfg.TemplateDir), campaign.Config{
		BaseHref:         cfg.BaseHref,
		ResourceBaseHref: cfg.ResourceBaseHref,
	}, log)
	hooks := campaign.StaticHooks{UTMSource: cfg.UTMSource}
	campaignService := service.NewCampaignService(renderer, gw, hooks, log)

	listController := &controller.ListController{
		Gateway:    gw,
		Classifier: notice.NewClassifier(cfg.ContactLink),
		Fields:     cfg.FieldMap,
		Queue:      drainer,
		TenantID:   cfg.TenantID,
		Log:        log,
	}
	campaignHandler := handler.NewCampaignHandler(campaignService, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           controller.NewRouter(listController, campaignHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", slog.String("addr", cfg.HTTPAddr), slog.String("list", gw.Shortname()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case err := <-brokerDone:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
