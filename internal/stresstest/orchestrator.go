package stresstest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the raw outcome of a successful run, before aggregation
type Result struct {
	Samples   []int64
	StartedAt time.Time
	Elapsed   time.Duration
}

// Orchestrate runs one session per target concurrently and collects every
// latency sample. The first session error cancels all other sessions and is
// returned; no samples are returned in that case.
func Orchestrate(ctx context.Context, config *RunConfig, logger *slog.Logger) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Sized to the total work so producers never wait on the consumer,
	// which only starts reading once every session has returned
	samples := make(chan int64, config.TotalMessages())

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, target := range config.Targets {
		session := NewSession(target, config, samples, logger)
		g.Go(func() error {
			return session.Run(gctx)
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)

	// Every producer has returned, so closing cannot race a send
	close(samples)

	if err != nil {
		return nil, err
	}
	logger.Debug("all sessions completed", "targets", len(config.Targets), "elapsed", elapsed)

	collected := make([]int64, 0, len(samples))
	for latency := range samples {
		collected = append(collected, latency)
	}

	return &Result{
		Samples:   collected,
		StartedAt: start,
		Elapsed:   elapsed,
	}, nil
}
