// Package logic contains the pure decision logic of the sorter: debouncing
// per-frame color labels and mapping confirmed labels to gate transitions.
// This package has NO hardware, network or OS dependencies and never sleeps.
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/color-sorter/internal/vision"
)

// DetectionEvent is a single observed label. Immutable once created.
type DetectionEvent struct {
	Timestamp time.Time
	Label     vision.Bucket
}

// ActuatorState is the position of the diverter gate.
type ActuatorState string

const (
	StateLowered ActuatorState = "LOWERED"
	StateRaised  ActuatorState = "RAISED"
)

// Command is a gate movement request.
type Command string

const (
	CommandRaise Command = "RAISE"
	CommandLower Command = "LOWER"
)

// Transition is a gate state change caused by a confirmed detection.
type Transition struct {
	Timestamp time.Time
	Label     vision.Bucket
	From      ActuatorState
	To        ActuatorState
	Command   Command
}

// Counts tracks confirmations and transitions since startup.
type Counts struct {
	Confirmed map[vision.Bucket]int
	Raises    int
	Lowers    int
}

// Clone returns a deep copy of c.
func (c Counts) Clone() Counts {
	out := Counts{Raises: c.Raises, Lowers: c.Lowers, Confirmed: make(map[vision.Bucket]int, len(c.Confirmed))}
	for k, v := range c.Confirmed {
		out.Confirmed[k] = v
	}
	return out
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     ActuatorState
	Counts    Counts
}
