package stresstest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"
)

// Session drives the probe loop against a single target. It is owned by the
// goroutine running it.
type Session struct {
	target  Target
	config  *RunConfig
	samples chan<- int64
	logger  *slog.Logger
	dialer  net.Dialer
	round   int
}

// NewSession creates a session that emits one latency sample per completed
// round onto samples
func NewSession(target Target, config *RunConfig, samples chan<- int64, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		target:  target,
		config:  config,
		samples: samples,
		logger:  logger.With("target", target.String()),
		dialer: net.Dialer{
			Timeout: config.GetDialTimeout(),
		},
	}
}

// Rounds returns the number of completed rounds
func (s *Session) Rounds() int {
	return s.round
}

// Run connects to the target and performs MessagesPerConnection rounds.
// Any connect, write or read failure ends the session with an error and no
// sample for the failing round. Cancelling ctx closes the connection.
func (s *Session) Run(ctx context.Context) error {
	total := int(s.config.MessagesPerConnection)
	if total == 0 {
		return nil
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock any in-flight read or write when a sibling fails
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	probe := []byte(Probe)
	buf := make([]byte, ReceiveBufferSize)

	for s.round < total {
		start := time.Now()

		if err := s.write(conn, probe); err != nil {
			return s.transferError(ctx, "write", err)
		}

		n, err := s.read(conn, buf)
		if err != nil {
			return s.transferError(ctx, "read", err)
		}

		latency := time.Since(start).Milliseconds()
		s.logger.Debug("received", "bytes", n, "elapsed_ms", latency)

		select {
		case s.samples <- latency:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.round++
	}

	return nil
}

func (s *Session) connect(ctx context.Context) (net.Conn, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.target.String())
	if err != nil {
		switch {
		case isTimeout(err):
			s.logger.Debug("connect timed out", "error", err)
		case ctx.Err() != nil:
			s.logger.Debug("connect cancelled", "error", err)
		default:
			s.logger.Error("connect failed", "error", err)
		}
		return nil, &ConnectError{Target: s.target, Err: err}
	}
	s.logger.Debug("connected")
	return conn, nil
}

func (s *Session) write(conn net.Conn, payload []byte) error {
	if err := s.setDeadline(conn); err != nil {
		return err
	}
	n, err := conn.Write(payload)
	if err != nil {
		return err
	}
	if n != len(payload) {
		return io.ErrShortWrite
	}
	return nil
}

func (s *Session) read(conn net.Conn, buf []byte) (int, error) {
	if err := s.setDeadline(conn); err != nil {
		return 0, err
	}
	n, err := conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	return n, nil
}

func (s *Session) setDeadline(conn net.Conn) error {
	if s.config.IOTimeout <= 0 {
		return nil
	}
	return conn.SetDeadline(time.Now().Add(s.config.IOTimeout))
}

// transferError reports cancellation as-is so the run keeps the error of the
// session that failed first
func (s *Session) transferError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.logger.Error(op+" failed", "round", s.round, "error", err)
	return &TransferError{Target: s.target, Op: op, Round: s.round, Err: err}
}
