package robot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/color-sorter/internal/logic"
)

// DefaultQueueSize is the number of gate commands that may wait for the
// controller.
const DefaultQueueSize = 8

// Worker applies gate transitions on a single goroutine, so at most one
// command is in flight and commands run in submission order.
type Worker struct {
	act    *Actuator
	logger *zap.SugaredLogger
	jobs   chan logic.Transition
	errc   chan error
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	failed error
}

// NewWorker starts a worker with a queue of size commands.
func NewWorker(act *Actuator, size int, logger *zap.SugaredLogger) *Worker {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		act:    act,
		logger: logger,
		jobs:   make(chan logic.Transition, size),
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go w.run()
	return w
}

// Submit queues a transition without blocking. It fails with ErrQueueFull
// when the controller is too far behind, with ErrWorkerClosed after Close,
// and with the original failure once a command has failed.
func (w *Worker) Submit(tr logic.Transition) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failed
	}
	if w.closed {
		return ErrWorkerClosed
	}
	select {
	case w.jobs <- tr:
		return nil
	default:
		return fmt.Errorf("%w (%d pending)", ErrQueueFull, cap(w.jobs))
	}
}

// Pending returns the number of queued commands not yet started.
func (w *Worker) Pending() int {
	return len(w.jobs)
}

// Err delivers the first command failure. Nothing is sent if every command
// succeeds.
func (w *Worker) Err() <-chan error {
	return w.errc
}

// Close stops accepting commands and waits for queued ones to finish. If ctx
// expires first the in-flight command is cancelled and the rest are dropped.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return fmt.Errorf("draining command queue: %w", ctx.Err())
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for tr := range w.jobs {
		if w.hasFailed() || w.ctx.Err() != nil {
			w.logger.Warnw("dropping command", "command", tr.Command, "label", tr.Label)
			continue
		}
		if err := w.act.Apply(w.ctx, tr.Command); err != nil {
			if isContextErr(err) && w.ctx.Err() != nil {
				w.logger.Warnw("command cancelled", "command", tr.Command, "label", tr.Label)
				continue
			}
			err = fmt.Errorf("%s for %s: %w", tr.Command, tr.Label, err)
			w.logger.Errorw("command failed", "error", err)
			w.fail(err)
			continue
		}
		w.logger.Infow("command done", "command", tr.Command, "label", tr.Label, "to", tr.To)
	}
}

func (w *Worker) hasFailed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed != nil
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	w.failed = err
	w.mu.Unlock()
	w.errc <- err
}
