package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultAddr          = "192.168.0.2:30002"
	DefaultSettle        = 100 * time.Millisecond
	DefaultRetries       = 3
	DefaultRetryInterval = 200 * time.Millisecond

	dialTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
)

// TCPConfig configures a TCPChannel. Zero values take the defaults above,
// except Retries where 0 means a single attempt.
type TCPConfig struct {
	Addr          string
	Settle        time.Duration
	Retries       int
	RetryInterval time.Duration
	Clock         clock.Clock
	Logger        *zap.SugaredLogger
}

// TCPChannel sends each program on a fresh connection to the controller,
// waits for the settle period and closes the connection.
type TCPChannel struct {
	addr          string
	settle        time.Duration
	retries       int
	retryInterval time.Duration
	clock         clock.Clock
	logger        *zap.SugaredLogger
	dialer        net.Dialer
}

// NewTCPChannel creates a channel. No connection is made until Send.
func NewTCPChannel(cfg TCPConfig) *TCPChannel {
	c := &TCPChannel{
		addr:          cfg.Addr,
		settle:        cfg.Settle,
		retries:       cfg.Retries,
		retryInterval: cfg.RetryInterval,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		dialer:        net.Dialer{Timeout: dialTimeout},
	}
	if c.addr == "" {
		c.addr = DefaultAddr
	}
	if c.settle < 0 {
		c.settle = 0
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	return c
}

// Send delivers script, retrying network failures with exponential backoff.
// When every attempt fails the error wraps ErrRetriesExhausted and the last
// NetworkError.
func (c *TCPChannel) Send(ctx context.Context, script string) error {
	attempts := 0
	op := func() error {
		attempts++
		err := c.sendOnce(ctx, script)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warnw("robot send failed, retrying", "addr", c.addr, "attempt", attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return nil
	}
	if IsRetryable(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return err
}

func (c *TCPChannel) sendOnce(ctx context.Context, script string) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return &NetworkError{Op: "dial", Addr: c.addr, Err: err}
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return &NetworkError{Op: "write", Addr: c.addr, Err: err}
	}
	if _, err := io.WriteString(conn, script); err != nil {
		return &NetworkError{Op: "write", Addr: c.addr, Err: err}
	}

	// The controller drops programs whose connection closes too early.
	if c.settle > 0 {
		select {
		case <-c.clock.After(c.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close is a no-op: connections never outlive a Send.
func (c *TCPChannel) Close() error {
	return nil
}

// isContextErr reports whether err came from a cancelled or expired context.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
