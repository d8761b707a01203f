package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catalogbot/core/logger"
)

// filesPreview caps the migration file names listed in one log line.
const filesPreview = 6

// RunMigrations applies all up migrations found under the driver's directory
// in fsys. Postgres migrations run on a dedicated connection; sqlite reuses db
// so in-memory databases see the schema. Cancelling ctx stops after the
// migration in flight.
func RunMigrations(ctx context.Context, db *sqlx.DB, cfg Config, fsys fs.FS) error {
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("db config: %w", err)
	}
	if fsys == nil {
		return fmt.Errorf("migrations: no source filesystem")
	}

	files := listMigrationFiles(fsys, cfg.Driver)
	logger.Debug(ctx, "db.migrate", "migrate.resolve", append(
		[]slog.Attr{slog.String("driver", cfg.Driver)}, fileAttrs(files)...)...)

	src, err := iofs.New(fsys, cfg.Driver)
	if err != nil {
		logMigrateFail(ctx, "migrate.source", err)
		return fmt.Errorf("open migration source: %w", err)
	}

	m, closeFn, err := newMigrator(ctx, db, cfg, src)
	if err != nil {
		_ = src.Close()
		logMigrateFail(ctx, "migrate.init", err)
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer closeFn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(logger.Took(start))

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logMigrateFail(ctx, "migrate.apply", upErr, slog.Duration("duration", took))
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		logger.Debug(ctx, "db.migrate", "migrate.applied", fileAttrs(applied)...)
	}
	logger.Info(ctx, "db.migrate", "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func fileAttrs(files []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(files))}
	if len(files) == 0 {
		return attrs
	}
	shown := files[:min(len(files), filesPreview)]
	attrs = append(attrs, slog.String("files_preview", strings.Join(shown, ", ")))
	if len(shown) < len(files) {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func logMigrateFail(ctx context.Context, event string, err error, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	}, extra...)
	logger.Error(ctx, "db.migrate", event, attrs...)
}

func newMigrator(ctx context.Context, db *sqlx.DB, cfg Config, src source.Driver) (*migrate.Migrate, func(), error) {
	var (
		drv    migratedb.Driver
		shared bool
		err    error
	)
	switch cfg.Driver {
	case DriverSQLite:
		if db == nil {
			return nil, nil, fmt.Errorf("sqlite migrations need an open database")
		}
		drv, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, err
		}
		shared = true
	default:
		if err := waitReady(ctx, DriverPostgres, cfg.DSN(), 30*time.Second); err != nil {
			return nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		conn, err := sql.Open(DriverPostgres, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		drv, err = migratepg.WithInstance(conn, &migratepg.Config{})
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Driver, drv)
	if err != nil {
		if !shared {
			_ = drv.Close()
		}
		return nil, nil, err
	}
	if shared {
		// Closing m would also close the caller's pool.
		return m, func() { _ = src.Close() }, nil
	}
	return m, func() { _, _ = m.Close() }, nil
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	parts := strings.SplitN(name, "_", 2)
	v, _ := strconv.ParseUint(parts[0], 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		v := parseVersion(f)
		if v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
