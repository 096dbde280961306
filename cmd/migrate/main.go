package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/unclebandit/mailinglist/internal/app"
	"github.com/unclebandit/mailinglist/internal/config"
	"github.com/unclebandit/mailinglist/internal/db"
	"github.com/unclebandit/mailinglist/internal/logger"
)

func main() {
	cfg := config.Load(logger.NewNope())
	log := app.NewLogger(cfg)
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Error("failed to connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn, log); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		conn.Close()
		os.Exit(1)
	}
	log.Info("migrations applied")
}
