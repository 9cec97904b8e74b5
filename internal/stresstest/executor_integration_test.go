package stresstest

import (
	"context"
	"errors"
	"testing"

	"github.com/studiowebux/proxybench/internal/echo"
)

// createTestManager creates a new Manager with in-memory SQLite database for testing
func createTestManager(t *testing.T) *Manager {
	manager, err := NewManager(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test manager: %v", err)
	}
	return manager
}

// sumBuckets returns the total sample count stored for a run
func sumBuckets(t *testing.T, manager *Manager, runID int64) int64 {
	buckets, err := manager.GetBuckets(runID)
	if err != nil {
		t.Fatalf("Failed to load buckets: %v", err)
	}
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	return total
}

// TestExecutor_BasicExecution tests a successful run end to end
func TestExecutor_BasicExecution(t *testing.T) {
	var targets []Target
	for i := 0; i < 3; i++ {
		target, _ := startEchoTarget(t, echo.Options{})
		targets = append(targets, target)
	}

	manager := createTestManager(t)
	defer manager.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Config:     &RunConfig{Targets: targets, MessagesPerConnection: 5},
		ConfigPath: "config.json",
	}, manager, nil)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	report, err := executor.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if report.Summary.Count != 15 {
		t.Errorf("Expected 15 samples, got %d", report.Summary.Count)
	}
	if report.TotalMessages != 15 {
		t.Errorf("Expected 15 total messages, got %d", report.TotalMessages)
	}
	if report.RPS <= 0 {
		t.Errorf("Expected positive RPS, got %v", report.RPS)
	}

	run := executor.GetRun()
	if run.Status != StatusCompleted {
		t.Errorf("Expected status 'completed', got: %s", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("Expected completion time to be set")
	}

	stored, err := manager.GetRun(run.ID)
	if err != nil {
		t.Fatalf("Failed to load stored run: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Errorf("Expected stored status 'completed', got: %s", stored.Status)
	}
	if stored.Summary.Count != 15 {
		t.Errorf("Expected stored sample count 15, got %d", stored.Summary.Count)
	}
	if len(stored.Targets) != 3 {
		t.Errorf("Expected 3 stored targets, got %d", len(stored.Targets))
	}
	if total := sumBuckets(t, manager, run.ID); total != 15 {
		t.Errorf("Expected 15 samples in stored distribution, got %d", total)
	}
}

// TestExecutor_FailedRunHasNoReport tests that a failure aborts without a report
func TestExecutor_FailedRunHasNoReport(t *testing.T) {
	good, _ := startEchoTarget(t, echo.Options{})
	bad := refusedTarget(t)

	manager := createTestManager(t)
	defer manager.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Config: &RunConfig{Targets: []Target{good, bad}, MessagesPerConnection: 10},
	}, manager, nil)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	report, err := executor.Run(context.Background())
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if report != nil {
		t.Error("Expected no report for a failed run")
	}

	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Errorf("Expected ConnectError, got %T: %v", err, err)
	}

	stored, err := manager.GetRun(executor.GetRun().ID)
	if err != nil {
		t.Fatalf("Failed to load stored run: %v", err)
	}
	if stored.Status != StatusFailed {
		t.Errorf("Expected stored status 'failed', got: %s", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Error("Expected stored error message")
	}
	if total := sumBuckets(t, manager, stored.ID); total != 0 {
		t.Errorf("Expected no stored samples for a failed run, got %d", total)
	}
}

// TestExecutor_DegenerateRun tests that empty work still produces a report
func TestExecutor_DegenerateRun(t *testing.T) {
	tests := []struct {
		name   string
		config *RunConfig
	}{
		{"no targets", &RunConfig{MessagesPerConnection: 10}},
		{"zero messages", &RunConfig{Targets: []Target{refusedTarget(t)}, MessagesPerConnection: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor, err := NewExecutor(&ExecutionConfig{Config: tt.config}, nil, nil)
			if err != nil {
				t.Fatalf("Failed to create executor: %v", err)
			}

			report, err := executor.Run(context.Background())
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if report.Summary.HasData {
				t.Error("Expected report without data")
			}
			if report.Summary.Count != 0 {
				t.Errorf("Expected 0 samples, got %d", report.Summary.Count)
			}
		})
	}
}

func TestNewExecutor_RequiresConfig(t *testing.T) {
	if _, err := NewExecutor(nil, nil, nil); err == nil {
		t.Error("Expected error for nil execution config")
	}
	if _, err := NewExecutor(&ExecutionConfig{}, nil, nil); err == nil {
		t.Error("Expected error for missing run config")
	}
}
