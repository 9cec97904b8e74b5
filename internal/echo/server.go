// Package echo provides a TCP echo server usable as a benchmark target.
package echo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const readBufferSize = 1024

// Options controls how the server answers
type Options struct {
	CloseAfter int           // Close each connection after this many echoes, 0 means never
	Delay      time.Duration // Wait before echoing
}

// Server echoes every read back to the client
type Server struct {
	opts     Options
	logger   *slog.Logger
	wg       sync.WaitGroup
	accepted atomic.Int64
	echoed   atomic.Int64
}

// NewServer creates an echo server
func NewServer(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{opts: opts, logger: logger}
}

// Accepted returns the number of accepted connections
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Echoed returns the number of echoed messages across all connections
func (s *Server) Echoed() int64 {
	return s.echoed.Load()
}

// ListenAndServe listens on addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.Info("echo server listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails. It
// closes ln and every open connection, then waits for the handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer s.wg.Wait()
	// Runs before Wait: handlers close their connections on cancel
	defer cancel()

	context.AfterFunc(ctx, func() {
		ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.accepted.Add(1)
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Debug("accepted client")

	buf := make([]byte, readBufferSize)
	count := 0
	for {
		n, err := conn.Read(buf)
		if err != nil {
			logger.Debug("connection closed", "echoed", count, "error", err)
			return
		}

		if s.opts.Delay > 0 {
			select {
			case <-time.After(s.opts.Delay):
			case <-ctx.Done():
				return
			}
		}

		// Counted before writing so the client never sees an uncounted echo
		s.echoed.Add(1)
		count++
		if _, err := conn.Write(buf[:n]); err != nil {
			logger.Debug("write failed", "error", err)
			return
		}

		if s.opts.CloseAfter > 0 && count >= s.opts.CloseAfter {
			logger.Debug("closing after limit", "echoed", count)
			return
		}
	}
}
