package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// OpenDatabase opens and pings the configured SQL database
func OpenDatabase(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DatabaseDriver, err)
	}

	maxConns := cfg.DatabaseMaxConns
	if cfg.DatabaseDriver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent requests
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(min(cfg.DatabaseMinConns, maxConns))
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.DatabaseDriver, err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS plans (
		name             TEXT PRIMARY KEY,
		max_page_views   BIGINT NOT NULL,
		max_sites        BIGINT NOT NULL,
		max_team_members BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS owners (
		id        TEXT PRIMARY KEY,
		plan_name TEXT NOT NULL REFERENCES plans(name)
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		id       TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES owners(id)
	)`,
}

// EnsureSchema creates the plans, owners and sites tables when missing.
// The statements are valid on both supported drivers.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
