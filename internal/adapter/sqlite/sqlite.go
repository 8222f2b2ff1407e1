// Package sqlite provides the local SQLite store connection and migration
// runner, plus the SessionStore built on the safesql layer.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // register the pure-Go sqlite driver

	"github.com/loopwarden/loopwarden/internal/config"
	"github.com/loopwarden/loopwarden/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens (creating if needed) the single local store and verifies it is
// reachable. An unreachable or corrupt store is an explicit initialization
// failure, never a cryptic downstream symptom.
func Open(ctx context.Context, cfg config.Store) (*sql.DB, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %w", domain.ErrStoreUnavailable, err)
	}

	// One logical writer at a time; a pool buys nothing in a single-shot
	// process and sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w: %w", domain.ErrStoreUnavailable, err)
	}

	return db, nil
}

func dsn(cfg config.Store) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
}

// RunMigrations applies all pending goose migrations from the embedded SQL
// files. The goose version table doubles as the schema-version marker that
// gates incremental migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the current schema version marker.
func SchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}
