// Package status provides a thread-safe status tracker for the color-sorter
// daemon. It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/vision"
)

// Config contains daemon configuration for display.
type Config struct {
	Camera       int
	ROI          string
	DebounceMs   int64
	DebounceMode string
	RobotAddr    string
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Label           vision.Bucket // label of the latest classified frame
	State           logic.ActuatorState
	Pending         int // detections waiting in the debouncer
	CommandsPending int // gate commands waiting for the controller
	FramesProcessed uint64
	FramesSkipped   uint64
	Counts          logic.Counts
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	MQTTBuffered    int
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateLowered,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordFrame counts a classified frame. Called from the main loop once per
// processed frame.
func (t *Tracker) RecordFrame(label vision.Bucket, pending int) {
	t.mu.Lock()
	t.snap.Label = label
	t.snap.Pending = pending
	t.snap.FramesProcessed++
	t.mu.Unlock()
}

// RecordSkip counts a frame whose region of interest was empty.
func (t *Tracker) RecordSkip() {
	t.mu.Lock()
	t.snap.FramesSkipped++
	t.mu.Unlock()
}

// Update sets the gate state, counts and command backlog.
func (t *Tracker) Update(state logic.ActuatorState, counts logic.Counts, commandsPending int) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Counts = counts.Clone()
	t.snap.CommandsPending = commandsPending
	t.mu.Unlock()
}

// SetMQTTBuffered sets the number of MQTT messages waiting for the broker.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts = t.snap.Counts.Clone()
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
