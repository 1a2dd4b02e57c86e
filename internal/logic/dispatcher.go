package logic

import (
	"time"

	"github.com/sweeney/color-sorter/internal/vision"
)

// noReturn lists labels that never lower a raised gate: the trigger itself,
// gray, and the indeterminate or empty-belt outcomes.
var noReturn = map[vision.Bucket]bool{
	vision.Red:                  true,
	vision.Gray:                 true,
	vision.Unknown:              true,
	vision.WhiteBackground:      true,
	vision.UnknownLowConfidence: true,
}

// Dispatcher owns the gate state and maps confirmed detections to at most
// one transition each.
type Dispatcher struct {
	state         ActuatorState
	trigger       vision.Bucket
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDispatcher creates a dispatcher in the lowered state. startTime is used
// for uptime in heartbeats.
func NewDispatcher(startTime time.Time) *Dispatcher {
	return &Dispatcher{
		state:         StateLowered,
		trigger:       vision.Red,
		counts:        Counts{Confirmed: make(map[vision.Bucket]int)},
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Dispatch applies a confirmed detection. It returns the transition to carry
// out, or nil when the gate is already where the label wants it.
func (d *Dispatcher) Dispatch(ev DetectionEvent) *Transition {
	d.counts.Confirmed[ev.Label]++

	var cmd Command
	var next ActuatorState
	switch {
	case ev.Label == d.trigger && d.state == StateLowered:
		cmd, next = CommandRaise, StateRaised
	case !noReturn[ev.Label] && d.state == StateRaised:
		cmd, next = CommandLower, StateLowered
	default:
		return nil
	}

	tr := &Transition{
		Timestamp: ev.Timestamp,
		Label:     ev.Label,
		From:      d.state,
		To:        next,
		Command:   cmd,
	}
	d.state = next
	if cmd == CommandRaise {
		d.counts.Raises++
	} else {
		d.counts.Lowers++
	}
	return tr
}

// State returns the current gate state.
func (d *Dispatcher) State() ActuatorState {
	return d.state
}

// CountsSnapshot returns a copy of the counts.
func (d *Dispatcher) CountsSnapshot() Counts {
	return d.counts.Clone()
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (d *Dispatcher) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		State:     d.state,
		Counts:    d.counts.Clone(),
	}
}
