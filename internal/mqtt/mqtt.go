// Package mqtt publishes sorter events to an MQTT broker, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/color-sorter/internal/logic"
)

const (
	// TopicDetections carries every confirmed detection.
	TopicDetections = "factory/sorter/detections"
	// TopicActuator carries every gate transition.
	TopicActuator = "factory/sorter/actuator"
	// TopicSystem carries lifecycle events and heartbeats.
	TopicSystem = "factory/sorter/system"
)

// Publisher publishes sorter events. Publish failures are reported to the
// caller but must never stop the sorter.
type Publisher interface {
	PublishDetection(ev logic.DetectionEvent) error
	PublishTransition(tr logic.Transition) error
	PublishSystem(ev SystemEvent) error
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active and how
// many messages are waiting for it.
type ConnectionStatus interface {
	IsConnected() bool
	Buffered() int
}

// SystemEvent represents a lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT,
// RECONNECTED).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown only
	RawPayload []byte // pre-formatted JSON; returned as is by FormatSystemPayload
	Retained   bool
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DetectionPayload is the message body on TopicDetections.
type DetectionPayload struct {
	Detection DetectionInner `json:"detection"`
}

type DetectionInner struct {
	Timestamp string `json:"timestamp"`
	Label     string `json:"label"`
}

// FormatDetectionPayload creates the JSON payload for a confirmed detection.
func FormatDetectionPayload(ev logic.DetectionEvent) ([]byte, error) {
	return json.Marshal(DetectionPayload{
		Detection: DetectionInner{
			Timestamp: formatTime(ev.Timestamp),
			Label:     string(ev.Label),
		},
	})
}

// ActuatorPayload is the message body on TopicActuator.
type ActuatorPayload struct {
	Actuator ActuatorInner `json:"actuator"`
}

type ActuatorInner struct {
	Timestamp string `json:"timestamp"`
	Label     string `json:"label"`
	Command   string `json:"command"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// FormatTransitionPayload creates the JSON payload for a gate transition.
func FormatTransitionPayload(tr logic.Transition) ([]byte, error) {
	return json.Marshal(ActuatorPayload{
		Actuator: ActuatorInner{
			Timestamp: formatTime(tr.Timestamp),
			Label:     string(tr.Label),
			Command:   string(tr.Command),
			From:      string(tr.From),
			To:        string(tr.To),
		},
	})
}

// SystemPayload is the body of simple system events (will, RECONNECTED)
// that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: formatTime(event.Timestamp),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
