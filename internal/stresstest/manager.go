package stresstest

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/proxybench/internal/migrations"
)

// Manager handles benchmark run persistence
type Manager struct {
	db *sql.DB
}

// NewManager creates a new run history manager
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway, and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	m := &Manager{db: db}

	// Run database migrations (includes schema initialization)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun inserts a new run record and sets its ID
func (m *Manager) CreateRun(run *Run) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}

	result, err := m.db.Exec(`
		INSERT INTO benchmark_runs
		(config_path, targets, messages_per_connection, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, run.ConfigPath, string(targets), run.MessagesPerConnection, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// FinishRun stores the final state of a run together with its latency
// distribution in a single transaction
func (m *Manager) FinishRun(run *Run, buckets []Bucket) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := run.Summary
	_, err = tx.Exec(`
		UPDATE benchmark_runs
		SET completed_at = ?, status = ?, error_message = ?, elapsed_ms = ?, rps = ?,
		    sample_count = ?, min_ms = ?, max_ms = ?, mean_ms = ?,
		    p50_ms = ?, p90_ms = ?, p99_ms = ?, p999_ms = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.ErrorMessage, run.ElapsedMs, run.RPS,
		s.Count, s.MinMs, s.MaxMs, s.MeanMs,
		s.P50Ms, s.P90Ms, s.P99Ms, s.P999Ms, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if len(buckets) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO latency_buckets (run_id, latency_ms, count)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, b := range buckets {
			if _, err := stmt.Exec(run.ID, b.LatencyMs, b.Count); err != nil {
				return fmt.Errorf("failed to insert bucket: %w", err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `
	id, config_path, targets, messages_per_connection, started_at, completed_at, status,
	COALESCE(error_message, ''), COALESCE(elapsed_ms, 0), COALESCE(rps, 0),
	COALESCE(sample_count, 0), COALESCE(min_ms, 0), COALESCE(max_ms, 0), COALESCE(mean_ms, 0),
	COALESCE(p50_ms, 0), COALESCE(p90_ms, 0), COALESCE(p99_ms, 0), COALESCE(p999_ms, 0)
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var targets string
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.ConfigPath, &targets, &run.MessagesPerConnection,
		&run.StartedAt, &completedAt, &run.Status, &run.ErrorMessage, &run.ElapsedMs, &run.RPS,
		&run.Summary.Count, &run.Summary.MinMs, &run.Summary.MaxMs, &run.Summary.MeanMs,
		&run.Summary.P50Ms, &run.Summary.P90Ms, &run.Summary.P99Ms, &run.Summary.P999Ms)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(targets), &run.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode targets of run %d: %w", run.ID, err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Summary.HasData = run.Summary.Count > 0

	return run, nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	row := m.db.QueryRow(`SELECT `+runColumns+` FROM benchmark_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs first. A limit of 0 returns all runs.
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM benchmark_runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetBuckets returns the latency distribution of a run in ascending order
func (m *Manager) GetBuckets(runID int64) ([]Bucket, error) {
	rows, err := m.db.Query(`
		SELECT latency_ms, count
		FROM latency_buckets
		WHERE run_id = ?
		ORDER BY latency_ms
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.LatencyMs, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// DeleteRun deletes a run and its latency distribution
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM latency_buckets WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete buckets: %w", err)
	}
	result, err := tx.Exec("DELETE FROM benchmark_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d not found", id)
	}

	return tx.Commit()
}
