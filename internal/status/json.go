package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Buttons       ButtonsJSON `json:"buttons"`
	Counter       int8        `json:"counter"`
	Ticks         uint32      `json:"ticks"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Echo          EchoJSON    `json:"echo"`
	Counts        CountsJSON  `json:"event_counts"`
	Radio         *RadioJSON  `json:"radio,omitempty"`
	Config        *ConfigJSON `json:"config,omitempty"`
}

type ButtonsJSON struct {
	A bool `json:"a"`
	B bool `json:"b"`
	C bool `json:"c"`
}

type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

type EchoJSON struct {
	Addr     string `json:"addr"`
	Accepted uint64 `json:"accepted"`
	Active   int64  `json:"active"`
	Bytes    uint64 `json:"bytes"`
	Failed   uint64 `json:"failed"`
}

type CountsJSON struct {
	Changes int `json:"buttons_changed"`
	Actions int `json:"counter_ticks"`
}

type RadioJSON struct {
	Mode    string `json:"mode"`
	SSID    string `json:"ssid"`
	Channel uint8  `json:"channel"`
	Addr    string `json:"addr,omitempty"`
}

type ConfigJSON struct {
	DebounceMs       int64  `json:"debounce_ms"`
	ActionIntervalMs int64  `json:"action_interval_ms"`
	EchoAddr         string `json:"echo_addr"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Buttons:       ButtonsJSON{A: snap.Buttons.A, B: snap.Buttons.B, C: snap.Buttons.C},
		Counter:       snap.Counter,
		Ticks:         uint32(snap.Ticks),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Echo: EchoJSON{
			Addr:     snap.Config.EchoAddr,
			Accepted: snap.Echo.Accepted,
			Active:   snap.Echo.Active,
			Bytes:    snap.Echo.Bytes,
			Failed:   snap.Echo.Failed,
		},
		Counts: CountsJSON{Changes: snap.Counts.Changes, Actions: snap.Counts.Actions},
	}
	if snap.Radio != nil {
		inner.Radio = &RadioJSON{
			Mode:    snap.Radio.Mode,
			SSID:    snap.Radio.SSID,
			Channel: snap.Radio.Channel,
			Addr:    snap.Radio.Addr,
		}
	}
	return inner
}

func buildConfig(cfg Config) *ConfigJSON {
	return &ConfigJSON{
		DebounceMs:       cfg.Debounce.Milliseconds(),
		ActionIntervalMs: cfg.ActionInterval.Milliseconds(),
		EchoAddr:         cfg.EchoAddr,
		Broker:           cfg.Broker,
		HTTPAddr:         cfg.HTTPAddr,
	}
}

// FormatJSON returns the indented status document served over HTTP.
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap.Config)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact status for an MQTT system event.
// Config is only included at startup.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap.Config)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
