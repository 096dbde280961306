// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

var (
	ErrFailedToOpenDBConnection = errors.New("db: failed to open database connection")
	ErrSetDialect               = errors.New("db migrator: failed to set dialect")
	ErrApplyMigrations          = errors.New("db migrator: failed to apply migrations")
)

// Config describes how to reach Postgres.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	// URL overrides the individual fields when set.
	URL string

	RetryAttempts int
	RetryInterval time.Duration
}

// DSN builds the lib/pq connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name,
	)
}

// Open connects to Postgres and pings it, retrying with a linear backoff.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDBConnection, err)
	}

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		err = conn.PingContext(ctx)
		if err == nil {
			log.Info("connected to database", slog.String("host", cfg.Host), slog.String("name", cfg.Name))
			return conn, nil
		}
		log.Warn("database ping failed", slog.Int("attempt", i+1), slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * interval):
		}
	}

	conn.Close()
	return nil, errors.Join(ErrFailedToOpenDBConnection, err)
}

// WithTx runs fn inside a transaction, committing only when fn succeeds.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
