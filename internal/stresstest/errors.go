package stresstest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrNoData is returned when a statistic is requested from an empty
// distribution
var ErrNoData = errors.New("no data")

// ConnectError is a failure to establish a connection to a target
type ConnectError struct {
	Target Target
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the dial timed out
func (e *ConnectError) Timeout() bool {
	return isTimeout(e.Err)
}

// TransferError is a failed write or read on an established connection
type TransferError struct {
	Target Target
	Op     string // "write" or "read"
	Round  int
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s (round %d): %v", e.Op, e.Target, e.Round, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
