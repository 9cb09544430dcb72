package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/m5echo/internal/echo"
	"github.com/sweeney/m5echo/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Debounce: 25 * time.Millisecond, ActionInterval: time.Second, EchoAddr: "0.0.0.0:8080", HTTPAddr: ":8081"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.EchoAddr != "0.0.0.0:8080" {
		t.Errorf("Config.EchoAddr: got %q", snap.Config.EchoAddr)
	}
	if snap.Counter != 0 {
		t.Errorf("Counter: got %d, want 0", snap.Counter)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Radio != nil {
		t.Error("expected no radio info initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(logic.Buttons{A: true, C: true}, -5, 1234, logic.Counts{Changes: 3, Actions: 7})

	snap := tr.Snapshot()
	if !snap.Buttons.A || snap.Buttons.B || !snap.Buttons.C {
		t.Errorf("Buttons: got %v", snap.Buttons)
	}
	if snap.Counter != -5 {
		t.Errorf("Counter: got %d, want -5", snap.Counter)
	}
	if snap.Ticks != 1234 {
		t.Errorf("Ticks: got %d, want 1234", snap.Ticks)
	}
	if snap.Counts.Changes != 3 || snap.Counts.Actions != 7 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetRadioIsCopied(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	info := &RadioInfo{Mode: "host-managed", SSID: "m5echo", Channel: 11}
	tr.SetRadio(info)

	snap := tr.Snapshot()
	snap.Radio.SSID = "changed"
	if tr.Snapshot().Radio.SSID != "m5echo" {
		t.Error("snapshot radio should not alias tracker state")
	}
}

func TestEchoSource(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	if tr.Snapshot().Echo != (echo.Stats{}) {
		t.Error("expected zero echo stats without a source")
	}

	calls := 0
	tr.SetEchoSource(func() echo.Stats {
		calls++
		return echo.Stats{Accepted: 4, Active: 2, Bytes: 512}
	})
	snap := tr.Snapshot()
	if snap.Echo.Accepted != 4 || snap.Echo.Active != 2 || snap.Echo.Bytes != 512 {
		t.Errorf("Echo: got %+v", snap.Echo)
	}
	if calls != 1 {
		t.Errorf("source calls: got %d, want 1", calls)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(logic.Buttons{A: true}, 11, 100, logic.Counts{Actions: 1})

	snap1 := tr.Snapshot()
	tr.Update(logic.Buttons{}, 12, 200, logic.Counts{Actions: 2})

	if !snap1.Buttons.A || snap1.Counter != 11 {
		t.Error("snapshot should be a copy; state was modified")
	}
}

func testSnapshot() Snapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		Buttons:       logic.Buttons{B: true},
		Counter:       -118,
		Ticks:         4242,
		Counts:        logic.Counts{Changes: 2, Actions: 9},
		Echo:          echo.Stats{Accepted: 3, Active: 1, Bytes: 64},
		MQTTConnected: true,
		StartTime:     start,
		Now:           start.Add(90 * time.Second),
		Config: Config{
			Debounce:       25 * time.Millisecond,
			ActionInterval: time.Second,
			EchoAddr:       "0.0.0.0:8080",
			Broker:         "tcp://localhost:1883",
			HTTPAddr:       ":8081",
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "" || s.Reason != "" {
		t.Errorf("web JSON should not carry event/reason: %q %q", s.Event, s.Reason)
	}
	if !s.Buttons.B || s.Buttons.A || s.Buttons.C {
		t.Errorf("Buttons: got %+v", s.Buttons)
	}
	if s.Counter != -118 {
		t.Errorf("Counter: got %d", s.Counter)
	}
	if s.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds: got %d, want 90", s.UptimeSeconds)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("StartTime: got %q", s.StartTime)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Echo.Addr != "0.0.0.0:8080" || s.Echo.Accepted != 3 || s.Echo.Active != 1 {
		t.Errorf("Echo: got %+v", s.Echo)
	}
	if s.Counts.Changes != 2 || s.Counts.Actions != 9 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Config == nil || s.Config.DebounceMs != 25 || s.Config.ActionIntervalMs != 1000 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Radio != nil {
		t.Errorf("Radio should be omitted when unknown, got %+v", s.Radio)
	}
}

func TestFormatJSONWithRadio(t *testing.T) {
	snap := testSnapshot()
	snap.Radio = &RadioInfo{Mode: "station", SSID: "lab", Channel: 11, Addr: "192.168.4.20"}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	r := parsed.Status.Radio
	if r == nil || r.SSID != "lab" || r.Channel != 11 || r.Addr != "192.168.4.20" {
		t.Errorf("Radio: got %+v", r)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "STARTUP", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("Event: got %q", parsed.Status.Event)
	}
	if parsed.Status.Config == nil {
		t.Error("STARTUP should include config")
	}

	var raw map[string]map[string]interface{}
	json.Unmarshal(data, &raw)
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got event=%q reason=%q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.Config != nil {
		t.Error("SHUTDOWN should omit config")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetEchoSource(func() echo.Stats { return echo.Stats{Active: 1} })
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.Buttons{A: i%2 == 0}, int8(i), 0, logic.Counts{Actions: i})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetRadio(&RadioInfo{SSID: "m5echo"})
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
