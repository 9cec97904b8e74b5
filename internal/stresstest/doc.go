/*
Package stresstest implements a concurrent TCP round-trip benchmark.

# Overview

One Session is started per target. Each session opens a single TCP
connection and repeats a fixed number of rounds: write the probe
"hello world", read up to 1024 bytes of response, and emit the round-trip
latency in milliseconds. Rounds within a session are strictly sequential.

# Architecture

  - Session (session.go): the per-target probe loop
  - Orchestrate (orchestrator.go): runs the sessions and collects samples
  - Distribution (stats.go): millisecond frequency distribution and percentiles
  - Report (report.go): throughput plus latency summary as text
  - Executor (executor.go): runs a benchmark and records it through a Manager
  - Manager (manager.go): SQLite run history

# Failure Policy

Sessions run in an errgroup. The first connect, write or read error cancels
every other session, which closes their connections, and the whole run fails
with that error. A failed run never produces a report.

All sessions share one sample channel. It is closed only after every session
has returned, and is drained only then, so the collected set is always
complete.

# Statistics

Percentiles use the nearest-rank method rounding the rank up: pN is the
ceil(N/100 * count)-th smallest sample. Results depend only on the multiset
of samples. An empty set yields a Summary with HasData false, printed as
"no data".

Throughput is messages-per-connection times the number of targets divided by
the wall-clock time from just before the first session starts to just after
the last one returns.

# Example Usage

	cfg := &RunConfig{
		Targets:               []Target{netip.MustParseAddrPort("127.0.0.1:8080")},
		MessagesPerConnection: 100,
	}

	executor, err := NewExecutor(&ExecutionConfig{Config: cfg}, nil, logger)
	if err != nil {
		return err
	}

	report, err := executor.Run(ctx)
	if err != nil {
		return err
	}
	return report.Render(os.Stdout)
*/
package stresstest
