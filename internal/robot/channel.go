package robot

import (
	"context"
	"errors"
	"fmt"
)

// Channel delivers URScript programs to the controller.
type Channel interface {
	Send(ctx context.Context, script string) error
	Close() error
}

var (
	// ErrRetriesExhausted is returned when a command kept failing after the
	// configured number of retries.
	ErrRetriesExhausted = errors.New("robot: retries exhausted")
	// ErrQueueFull is returned by Worker.Submit when the command queue is full.
	ErrQueueFull = errors.New("robot: command queue full")
	// ErrWorkerClosed is returned by Worker.Submit after Close.
	ErrWorkerClosed = errors.New("robot: worker closed")
)

// NetworkError is a dial or write failure talking to the controller. These
// are transient and worth retrying.
type NetworkError struct {
	Op   string
	Addr string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("robot: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient network failure.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
