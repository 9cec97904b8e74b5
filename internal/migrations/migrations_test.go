package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRun_AppliesAllMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}

	want := AllMigrations[len(AllMigrations)-1].Version
	if version != want {
		t.Errorf("Expected version %d, got %d", want, version)
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != len(AllMigrations) {
		t.Errorf("Expected %d recorded migrations, got %d", len(AllMigrations), count)
	}
}

func TestRun_DuplicateBucketRejected(t *testing.T) {
	db := openTestDB(t)
	if err := Run(db); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO benchmark_runs (started_at, status) VALUES (CURRENT_TIMESTAMP, 'running')`)
	if err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO latency_buckets (run_id, latency_ms, count) VALUES (1, 10, 3)`); err != nil {
		t.Fatalf("Failed to insert bucket: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO latency_buckets (run_id, latency_ms, count) VALUES (1, 10, 1)`); err == nil {
		t.Error("Expected duplicate bucket insert to fail")
	}
}

func TestRun_AppliesOnlyNewerMigrations(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(baseSchema); err != nil {
		t.Fatalf("Failed to create base schema: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version, name) VALUES (1, 'preapplied')"); err != nil {
		t.Fatalf("Failed to record migration: %v", err)
	}

	if err := Run(db); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var name string
	if err := db.QueryRow("SELECT name FROM schema_migrations WHERE version = 1").Scan(&name); err != nil {
		t.Fatalf("Failed to load migration 1: %v", err)
	}
	if name != "preapplied" {
		t.Errorf("Expected migration 1 to be left alone, got %q", name)
	}

	var indexes int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_benchmark_runs_status'`).Scan(&indexes)
	if err != nil {
		t.Fatalf("Failed to query indexes: %v", err)
	}
	if indexes != 0 {
		t.Error("Expected skipped migration not to run")
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected version 2, got %d", version)
	}
}
