package mqtt

import (
	"sync"

	"github.com/sweeney/color-sorter/internal/logic"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Detections contains all confirmed detections that were published.
	Detections []logic.DetectionEvent

	// Transitions contains all gate transitions that were published.
	Transitions []logic.Transition

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// Payloads contains every JSON payload keyed by topic, in order.
	Payloads map[string][][]byte

	// PublishError, if set, is returned by every publish method.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Backlog controls the return value of Buffered.
	Backlog int
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Payloads: make(map[string][][]byte)}
}

func (f *FakePublisher) record(topic string, payload []byte) {
	if f.Payloads == nil {
		f.Payloads = make(map[string][][]byte)
	}
	f.Payloads[topic] = append(f.Payloads[topic], payload)
}

func (f *FakePublisher) PublishDetection(ev logic.DetectionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatDetectionPayload(ev)
	if err != nil {
		return err
	}
	f.Detections = append(f.Detections, ev)
	f.record(TopicDetections, payload)
	return nil
}

func (f *FakePublisher) PublishTransition(tr logic.Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatTransitionPayload(tr)
	if err != nil {
		return err
	}
	f.Transitions = append(f.Transitions, tr)
	f.record(TopicActuator, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.record(TopicSystem, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Buffered returns Backlog.
func (f *FakePublisher) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Backlog
}

// SystemEventNames returns the Event field of every system event, in order.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		out[i] = e.Event
	}
	return out
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Detections = nil
	f.Transitions = nil
	f.SystemEvents = nil
	f.Payloads = make(map[string][][]byte)
	f.PublishError = nil
	f.Closed = false
	f.Connected = false
}
