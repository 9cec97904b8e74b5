package stresstest

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

const (
	// Probe is the fixed payload written on every round
	Probe = "hello world"
	// ReceiveBufferSize is the size of the per-session response buffer
	ReceiveBufferSize = 1024
	// DefaultMessagesPerConnection is used when no count is given
	DefaultMessagesPerConnection = 10
	// TCPDialTimeout is the default time allowed to establish a connection
	TCPDialTimeout = 5 * time.Second
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Target is one endpoint the harness connects to
type Target = netip.AddrPort

// ParseTarget parses a "host:port" address. IPv6 hosts must be bracketed.
func ParseTarget(s string) (Target, error) {
	t, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", s, err)
	}
	if t.Port() == 0 {
		return Target{}, fmt.Errorf("invalid target %q: port must be greater than 0", s)
	}
	return t, nil
}

// RunConfig is the immutable configuration of a single benchmark run.
// Sessions only read it.
type RunConfig struct {
	Targets               []Target
	MessagesPerConnection uint16
	DialTimeout           time.Duration // 0 means TCPDialTimeout
	IOTimeout             time.Duration // Per write/read deadline, 0 disables it
}

// Validate validates the run configuration. An empty target list and a zero
// message count are valid and produce an empty run.
func (c *RunConfig) Validate() error {
	for i, t := range c.Targets {
		if !t.IsValid() {
			return fmt.Errorf("target %d is not a valid address", i)
		}
		if t.Port() == 0 {
			return fmt.Errorf("target %s: port must be greater than 0", t)
		}
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial timeout cannot be negative")
	}
	if c.IOTimeout < 0 {
		return fmt.Errorf("io timeout cannot be negative")
	}
	return nil
}

// TotalMessages returns the number of rounds the run attempts
func (c *RunConfig) TotalMessages() int {
	return int(c.MessagesPerConnection) * len(c.Targets)
}

// GetDialTimeout returns the dial timeout, falling back to TCPDialTimeout
func (c *RunConfig) GetDialTimeout() time.Duration {
	if c.DialTimeout == 0 {
		return TCPDialTimeout
	}
	return c.DialTimeout
}

// TargetStrings returns the targets as "host:port" strings
func (c *RunConfig) TargetStrings() []string {
	out := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		out[i] = t.String()
	}
	return out
}

// Run represents a persisted benchmark run record
type Run struct {
	ID                    int64      `json:"id" yaml:"id"`
	ConfigPath            string     `json:"config_path" yaml:"config_path"`
	Targets               []string   `json:"targets" yaml:"targets"`
	MessagesPerConnection int        `json:"messages_per_connection" yaml:"messages_per_connection"`
	StartedAt             time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Status                string     `json:"status" yaml:"status"` // "running", "completed", "failed"
	ErrorMessage          string     `json:"error,omitempty" yaml:"error,omitempty"`
	ElapsedMs             int64      `json:"elapsed_ms" yaml:"elapsed_ms"`
	RPS                   float64    `json:"rps" yaml:"rps"`
	Summary               Summary    `json:"latency" yaml:"latency"`
}

// IsRunning returns true if the run is currently in progress
func (r *Run) IsRunning() bool {
	return r.Status == StatusRunning
}

// IsCompleted returns true if the run has finished
func (r *Run) IsCompleted() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
