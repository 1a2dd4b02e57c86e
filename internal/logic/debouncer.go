package logic

import (
	"fmt"
	"time"

	"github.com/sweeney/color-sorter/internal/vision"
)

// DefaultDelay is the time a queued detection must age before it is confirmed.
const DefaultDelay = 800 * time.Millisecond

// Mode selects how the debouncer treats label changes.
type Mode string

const (
	// ModeQueue enqueues every label change and confirms each one on its
	// own timer. Flicker between two labels confirms both, in order.
	ModeQueue Mode = "queue"
	// ModeSettle drops still-pending entries on every change, so only a
	// label that stayed current for the whole delay is confirmed.
	ModeSettle Mode = "settle"
)

// ParseMode converts a flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeQueue, ModeSettle:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown debounce mode %q (want %q or %q)", s, ModeQueue, ModeSettle)
}

// Debouncer turns a stream of per-frame labels into confirmed detections.
type Debouncer struct {
	delay        time.Duration
	mode         Mode
	queue        []DetectionEvent
	lastObserved vision.Bucket
	observed     bool
}

// NewDebouncer creates a debouncer with the given confirmation delay.
func NewDebouncer(delay time.Duration, mode Mode) *Debouncer {
	if mode == "" {
		mode = ModeQueue
	}
	return &Debouncer{delay: delay, mode: mode}
}

// Observe records the label seen at now and returns the detections whose
// age reached the delay, oldest first. A label equal to the previous
// observation is not enqueued again.
func (d *Debouncer) Observe(now time.Time, label vision.Bucket) []DetectionEvent {
	if !d.observed || label != d.lastObserved {
		if d.mode == ModeSettle {
			d.queue = d.queue[:0]
		}
		ts := now
		if n := len(d.queue); n > 0 && ts.Before(d.queue[n-1].Timestamp) {
			// Keep the queue ordered if the clock steps backwards.
			ts = d.queue[n-1].Timestamp
		}
		d.queue = append(d.queue, DetectionEvent{Timestamp: ts, Label: label})
		d.lastObserved = label
		d.observed = true
	}

	var confirmed []DetectionEvent
	for len(d.queue) > 0 && now.Sub(d.queue[0].Timestamp) >= d.delay {
		confirmed = append(confirmed, d.queue[0])
		d.queue = d.queue[1:]
	}
	return confirmed
}

// Pending returns the number of detections waiting for confirmation.
func (d *Debouncer) Pending() int {
	return len(d.queue)
}

// LastObserved returns the most recently observed label, if any.
func (d *Debouncer) LastObserved() (vision.Bucket, bool) {
	return d.lastObserved, d.observed
}
