package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/vision"
)

func transition(cmd logic.Command) logic.Transition {
	tr := logic.Transition{Label: vision.Red, From: logic.StateLowered, To: logic.StateRaised, Command: cmd}
	if cmd == logic.CommandLower {
		tr = logic.Transition{Label: vision.Green, From: logic.StateRaised, To: logic.StateLowered, Command: cmd}
	}
	return tr
}

func newTestWorker(t *testing.T, size int) (*Worker, *FakeChannel) {
	t.Helper()
	fake := NewFakeChannel(nil)
	act := NewActuator(fake, DefaultActuatorConfig(), nil, nil)
	return NewWorker(act, size, zaptest.NewLogger(t).Sugar()), fake
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorkerRunsCommandsInOrder(t *testing.T) {
	w, fake := newTestWorker(t, 4)

	cmds := []logic.Command{logic.CommandRaise, logic.CommandLower, logic.CommandRaise}
	for _, c := range cmds {
		if err := w.Submit(transition(c)); err != nil {
			t.Fatalf("submit %s: %v", c, err)
		}
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	up := MoveRelative(Vector{0, 0, 0.1}, 0.5, 0.2)
	down := MoveRelative(Vector{0, 0, -0.1}, 0.5, 0.2)
	if diff := cmp.Diff([]string{up, down, up}, fake.Scripts()); diff != "" {
		t.Errorf("scripts (-want +got):\n%s", diff)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	w, fake := newTestWorker(t, 1)
	fake.Hold()

	if err := w.Submit(transition(logic.CommandRaise)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// Wait until the first command is in flight.
	waitFor(t, func() bool { return w.Pending() == 0 })

	if err := w.Submit(transition(logic.CommandLower)); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if err := w.Submit(transition(logic.CommandRaise)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("third submit: expected ErrQueueFull, got %v", err)
	}

	fake.Release()
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(fake.Scripts()); n != 2 {
		t.Errorf("commands sent: got %d, want 2", n)
	}
}

func TestWorkerReportsFailureOnce(t *testing.T) {
	w, fake := newTestWorker(t, 4)
	fake.FailNext(ErrRetriesExhausted)

	if err := w.Submit(transition(logic.CommandRaise)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case err := <-w.Err():
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Errorf("expected ErrRetriesExhausted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failure never reported")
	}

	if err := w.Submit(transition(logic.CommandLower)); !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("submit after failure: got %v", err)
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(fake.Scripts()); n != 0 {
		t.Errorf("commands sent: got %d, want 0", n)
	}
}

func TestWorkerSubmitAfterClose(t *testing.T) {
	w, _ := newTestWorker(t, 4)
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Submit(transition(logic.CommandRaise)); !errors.Is(err, ErrWorkerClosed) {
		t.Errorf("expected ErrWorkerClosed, got %v", err)
	}
	// Closing twice is harmless.
	if err := w.Close(context.Background()); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestWorkerCloseTimeoutCancelsInFlight(t *testing.T) {
	w, fake := newTestWorker(t, 4)
	fake.Hold()
	defer fake.Release()

	if err := w.Submit(transition(logic.CommandRaise)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := w.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	select {
	case err := <-w.Err():
		t.Errorf("cancellation reported as failure: %v", err)
	default:
	}
}
