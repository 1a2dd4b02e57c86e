package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/color-sorter/internal/vision"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string     `json:"event,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Label           string     `json:"label"`
	State           string     `json:"state"`
	Pending         int        `json:"pending"`
	CommandsPending int        `json:"commands_pending"`
	Frames          FramesJSON `json:"frames"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	StartTime       string     `json:"start_time"`
	Timestamp       string     `json:"timestamp"`
	MQTT            MQTTStatus `json:"mqtt"`
	Counts          CountsJSON `json:"counts"`
	Config          ConfigJSON `json:"config"`
}

// FramesJSON reports frame throughput.
type FramesJSON struct {
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"` // messages waiting for the broker
}

// CountsJSON is the JSON representation of confirmation and gate counts.
type CountsJSON struct {
	Confirmed map[string]int `json:"confirmed"`
	Raises    int            `json:"raises"`
	Lowers    int            `json:"lowers"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Camera       int    `json:"camera"`
	ROI          string `json:"roi"`
	DebounceMs   int64  `json:"debounce_ms"`
	DebounceMode string `json:"debounce_mode"`
	RobotAddr    string `json:"robot"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http"`
}

func buildInner(snap Snapshot) StatusInner {
	label := string(snap.Label)
	if label == "" {
		label = string(vision.Unknown)
	}

	confirmed := make(map[string]int, len(snap.Counts.Confirmed))
	for b, n := range snap.Counts.Confirmed {
		confirmed[string(b)] = n
	}

	return StatusInner{
		Label:           label,
		State:           string(snap.State),
		Pending:         snap.Pending,
		CommandsPending: snap.CommandsPending,
		Frames:          FramesJSON{Processed: snap.FramesProcessed, Skipped: snap.FramesSkipped},
		UptimeSeconds:   int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:       snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:       snap.Now.UTC().Format(time.RFC3339),
		MQTT:            MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Buffered: snap.MQTTBuffered},
		Counts: CountsJSON{
			Confirmed: confirmed,
			Raises:    snap.Counts.Raises,
			Lowers:    snap.Counts.Lowers,
		},
		Config: ConfigJSON{
			Camera:       snap.Config.Camera,
			ROI:          snap.Config.ROI,
			DebounceMs:   snap.Config.DebounceMs,
			DebounceMode: snap.Config.DebounceMode,
			RobotAddr:    snap.Config.RobotAddr,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
