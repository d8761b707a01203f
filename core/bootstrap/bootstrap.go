// Package bootstrap brings up the infrastructure a bot needs before it
// starts polling: logging, the database connection, the schema and any
// seed data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/catalogbot/core/config"
	coredatabase "github.com/m3rciful/catalogbot/core/database"
	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/migrations"
)

// Options control the bootstrap pipeline. Nil hooks use the core
// implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Modules  Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, *sqlx.DB, coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

func (o *Options) defaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = func(ctx context.Context, db *sqlx.DB, cfg coredatabase.Config) error {
			return coredatabase.RunMigrations(ctx, db, cfg, migrations.FS)
		}
	}
}

// Run initializes the logger, connects to the database, applies migrations
// and runs the seeders in order. The database is closed again when a later
// step fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	opts.defaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	start := time.Now()
	db, err := opts.Connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := prepare(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info(ctx, "app", "bootstrap.done",
		slog.String("status", "ok"),
		slog.Int("seeders", len(opts.Modules.Seeders)),
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}

func prepare(ctx context.Context, db *sqlx.DB, opts Options) error {
	if err := opts.Migrate(ctx, db, opts.Database); err != nil {
		return fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	for i, s := range opts.Modules.Seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, db); err != nil {
			return fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
	}
	return nil
}
