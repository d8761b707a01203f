package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/catalogbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyPoll      = 2 * time.Second
)

// Connect opens the configured database, sizes the pool and pings it.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	took := logger.RoundMS(logger.Took(start))
	if err != nil {
		logger.Error(ctx, "db", "db.connect", append(target(cfg),
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	if cfg.Driver == DriverSQLite {
		// A closed idle connection would drop an in-memory database.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	logger.Info(ctx, "db", "db.connect", append(target(cfg),
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)...)
	return db, nil
}

func target(cfg Config) []slog.Attr {
	if cfg.Driver == DriverSQLite {
		return []slog.Attr{
			slog.String("driver", cfg.Driver),
			slog.String("db", cfg.Path),
		}
	}
	return []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
}

// waitReady pings dsn until it answers, timeout passes or ctx ends.
func waitReady(ctx context.Context, driver, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		db, err := sql.Open(driver, dsn)
		if err == nil {
			err = db.PingContext(ctx)
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		logger.Debug(ctx, "db", "db.wait",
			slog.String("status", "skip"),
			slog.Int("attempt", attempt),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %d attempts: %w", attempt, lastErr)
		case <-time.After(readyPoll):
		}
	}
}
