package robot

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Sent is a program recorded by FakeChannel.
type Sent struct {
	At     time.Time
	Script string
}

// FakeChannel records programs instead of sending them. Errors queued with
// FailNext are returned by the following Send calls, one per call.
type FakeChannel struct {
	mu     sync.Mutex
	clock  clock.Clock
	sent   []Sent
	errs   []error
	block  chan struct{}
	closed bool
}

// NewFakeChannel creates a fake that timestamps programs with clk.
func NewFakeChannel(clk clock.Clock) *FakeChannel {
	if clk == nil {
		clk = clock.New()
	}
	return &FakeChannel{clock: clk}
}

// FailNext queues errors for the next Send calls.
func (f *FakeChannel) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
}

// Hold makes Send block until Release is called.
func (f *FakeChannel) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block == nil {
		f.block = make(chan struct{})
	}
}

// Release unblocks Send calls waiting on Hold.
func (f *FakeChannel) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

func (f *FakeChannel) Send(ctx context.Context, script string) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, Sent{At: f.clock.Now(), Script: script})
	return nil
}

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Sent returns a copy of every recorded program.
func (f *FakeChannel) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.sent))
	copy(out, f.sent)
	return out
}

// Scripts returns the recorded program bodies in send order.
func (f *FakeChannel) Scripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Script
	}
	return out
}

// Closed reports whether Close was called.
func (f *FakeChannel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
