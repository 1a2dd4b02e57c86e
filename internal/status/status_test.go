package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/vision"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	cfg := Config{DebounceMs: 800, DebounceMode: "queue", Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DebounceMs != 800 || snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config not kept: %+v", snap.Config)
	}
	if snap.State != logic.StateLowered {
		t.Errorf("State: got %q, want LOWERED", snap.State)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordFrameAndSkip(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.RecordFrame(vision.Red, 1)
	tr.RecordFrame(vision.Green, 2)
	tr.RecordSkip()

	snap := tr.Snapshot()
	if snap.Label != vision.Green || snap.Pending != 2 {
		t.Errorf("label/pending: got %s/%d, want green/2", snap.Label, snap.Pending)
	}
	if snap.FramesProcessed != 2 || snap.FramesSkipped != 1 {
		t.Errorf("frames: got %d processed %d skipped, want 2/1", snap.FramesProcessed, snap.FramesSkipped)
	}
}

func TestUpdateAndSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	counts := logic.Counts{Confirmed: map[vision.Bucket]int{vision.Red: 3}, Raises: 1}

	tr.Update(logic.StateRaised, counts, 2)
	counts.Confirmed[vision.Red] = 100

	snap := tr.Snapshot()
	if snap.State != logic.StateRaised || snap.CommandsPending != 2 {
		t.Errorf("state/commands: got %s/%d", snap.State, snap.CommandsPending)
	}
	if snap.Counts.Confirmed[vision.Red] != 3 {
		t.Errorf("tracker shares caller's map: got %d", snap.Counts.Confirmed[vision.Red])
	}

	snap.Counts.Confirmed[vision.Red] = 50
	if tr.Snapshot().Counts.Confirmed[vision.Red] != 3 {
		t.Error("mutating a snapshot changed tracker state")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 1m30s", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})
	before := time.Now()
	snap := tr.Snapshot()
	if snap.Now.Before(before) {
		t.Errorf("Now %v is before call time %v", snap.Now, before)
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Label:           vision.Red,
		State:           logic.StateRaised,
		Pending:         1,
		FramesProcessed: 42,
		FramesSkipped:   2,
		Counts:          logic.Counts{Confirmed: map[vision.Bucket]int{vision.Red: 2}, Raises: 1},
		StartTime:       start,
		Now:             start.Add(65 * time.Second),
		MQTTConnected:   true,
		MQTTBuffered:    3,
		Config:          Config{Broker: "tcp://broker:1883", RobotAddr: "192.168.0.2:30002"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Label != "red" || s.State != "RAISED" {
		t.Errorf("label/state: got %s/%s", s.Label, s.State)
	}
	if s.Frames.Processed != 42 || s.Frames.Skipped != 2 {
		t.Errorf("frames: got %+v", s.Frames)
	}
	if s.UptimeSeconds != 65 {
		t.Errorf("uptime: got %d, want 65", s.UptimeSeconds)
	}
	if s.Timestamp != "2026-01-01T00:01:05Z" {
		t.Errorf("timestamp: got %s", s.Timestamp)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://broker:1883" || s.MQTT.Buffered != 3 {
		t.Errorf("mqtt: got %+v", s.MQTT)
	}
	if s.Counts.Confirmed["red"] != 2 || s.Counts.Raises != 1 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if s.Config.RobotAddr != "192.168.0.2:30002" {
		t.Errorf("config robot: got %s", s.Config.RobotAddr)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web status should not carry event or reason")
	}
}

func TestFormatJSONUnknownLabel(t *testing.T) {
	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(Snapshot{State: logic.StateLowered}), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Label != "unknown" {
		t.Errorf("label before first frame: got %q, want unknown", parsed.Status.Label)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{State: logic.StateLowered, StartTime: start, Now: start}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %s/%s", parsed.Status.Event, parsed.Status.Reason)
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatStatusEvent(snap, "HEARTBEAT", ""), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := raw["status"]["reason"]; exists {
		t.Error("HEARTBEAT should omit reason")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.RecordFrame(vision.Blue, i%3)
			tr.Update(logic.StateRaised, logic.Counts{Confirmed: map[vision.Bucket]int{vision.Blue: i}}, 0)
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
