// Package migrations owns the run history schema.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"
)

// Migration is one versioned schema change applied after the base schema
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// AllMigrations lists schema changes in ascending version order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "index benchmark runs by status and config path",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_benchmark_runs_status ON benchmark_runs(status);
			CREATE INDEX IF NOT EXISTS idx_benchmark_runs_config_path ON benchmark_runs(config_path);
		`,
	},
	{
		Version: 2,
		Name:    "one latency bucket per run and value",
		SQL: `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_latency_buckets_run_latency ON latency_buckets(run_id, latency_ms);
		`,
	},
}

const baseSchema = `
	CREATE TABLE IF NOT EXISTS benchmark_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		config_path TEXT NOT NULL DEFAULT '',
		targets TEXT NOT NULL DEFAULT '[]',
		messages_per_connection INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		error_message TEXT,
		elapsed_ms INTEGER DEFAULT 0,
		rps REAL DEFAULT 0,
		sample_count INTEGER DEFAULT 0,
		min_ms INTEGER DEFAULT 0,
		max_ms INTEGER DEFAULT 0,
		mean_ms REAL DEFAULT 0,
		p50_ms INTEGER DEFAULT 0,
		p90_ms INTEGER DEFAULT 0,
		p99_ms INTEGER DEFAULT 0,
		p999_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_benchmark_runs_started_at ON benchmark_runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS latency_buckets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES benchmark_runs(id),
		latency_ms INTEGER NOT NULL,
		count INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_latency_buckets_run_id ON latency_buckets(run_id);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// Run creates the base schema and applies every migration newer than the
// recorded version. Each migration is applied and recorded atomically.
func Run(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	current, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, m := range AllMigrations {
		if m.Version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// GetCurrentVersion returns the highest applied migration version, 0 when none
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return version, nil
}
