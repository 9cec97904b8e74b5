package stresstest

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExecutionConfig contains the runtime configuration for executing a benchmark
type ExecutionConfig struct {
	Config     *RunConfig
	ConfigPath string // Recorded in run history only
}

// Executor runs a benchmark and records it in the run history
type Executor struct {
	config  *ExecutionConfig
	manager *Manager
	logger  *slog.Logger
	run     *Run
}

// NewExecutor creates a new benchmark executor. manager may be nil to skip
// run history.
func NewExecutor(config *ExecutionConfig, manager *Manager, logger *slog.Logger) (*Executor, error) {
	if config == nil || config.Config == nil {
		return nil, fmt.Errorf("run config is required")
	}
	if err := config.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Executor{
		config:  config,
		manager: manager,
		logger:  logger,
	}, nil
}

// Run executes the benchmark. On failure no report is produced and the
// error of the first failing session is returned.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	cfg := e.config.Config
	e.run = &Run{
		ConfigPath:            e.config.ConfigPath,
		Targets:               cfg.TargetStrings(),
		MessagesPerConnection: int(cfg.MessagesPerConnection),
		StartedAt:             time.Now(),
		Status:                StatusRunning,
	}

	if e.manager != nil {
		if err := e.manager.CreateRun(e.run); err != nil {
			// History is best effort, keep benchmarking
			e.logger.Error("failed to create run record", "error", err)
		}
	}

	e.logger.Info("starting benchmark",
		"targets", len(cfg.Targets),
		"messages_per_connection", cfg.MessagesPerConnection)

	result, err := Orchestrate(ctx, cfg, e.logger)
	if err != nil {
		e.run.ErrorMessage = err.Error()
		e.finalize(StatusFailed, nil)
		return nil, fmt.Errorf("benchmark failed: %w", err)
	}

	report := NewReport(cfg, result)

	e.run.ElapsedMs = report.ElapsedMs
	e.run.RPS = report.RPS
	e.run.Summary = report.Summary
	e.finalize(StatusCompleted, NewDistribution(result.Samples).Buckets())

	return report, nil
}

// GetRun returns the run record of the last Run call
func (e *Executor) GetRun() *Run {
	return e.run
}

// finalize completes the run record
func (e *Executor) finalize(status string, buckets []Bucket) {
	now := time.Now()
	e.run.CompletedAt = &now
	e.run.Status = status

	if e.manager == nil || e.run.ID == 0 {
		return
	}
	if err := e.manager.FinishRun(e.run, buckets); err != nil {
		e.logger.Error("failed to update run record", "run_id", e.run.ID, "error", err)
	}
}
