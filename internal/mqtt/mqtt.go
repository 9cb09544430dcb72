// Package mqtt publishes controller events and lifecycle snapshots to an
// MQTT broker. Publishing is best effort: failures are reported to the
// caller, never fatal.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/m5echo/internal/logic"
)

// TopicEvents carries BUTTONS_CHANGED and COUNTER_TICK events.
const TopicEvents = "m5echo/events"

// TopicSystem carries STARTUP/SHUTDOWN snapshots and the last will.
const TopicSystem = "m5echo/system"

// Lifecycle event names.
const (
	SystemStartup  = "STARTUP"
	SystemShutdown = "SHUTDOWN"
	SystemOffline  = "OFFLINE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event.
	Publish(event logic.Event) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	Close() error
}

// ConnectionStatus reports whether the broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle message.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string
	// RawPayload, if set, is published verbatim (full status snapshots).
	RawPayload []byte
	Retained   bool
}

// Payload is the JSON body published on TopicEvents.
type Payload struct {
	Device DevicePayload `json:"m5echo"`
}

type DevicePayload struct {
	Timestamp string         `json:"timestamp"`
	Ticks     uint32         `json:"ticks"`
	Event     string         `json:"event"`
	Buttons   ButtonsPayload `json:"buttons"`
	Counter   *int8          `json:"counter,omitempty"`
	APressed  *bool          `json:"a_pressed,omitempty"`
}

type ButtonsPayload struct {
	A bool `json:"a"`
	B bool `json:"b"`
	C bool `json:"c"`
}

// FormatPayload renders event. Controller events carry ticks, not wall
// time, so the publish time is passed in.
func FormatPayload(event logic.Event, at time.Time) ([]byte, error) {
	p := Payload{
		Device: DevicePayload{
			Timestamp: at.UTC().Format(time.RFC3339),
			Ticks:     uint32(event.Ticks),
			Event:     string(event.Type),
			Buttons: ButtonsPayload{
				A: event.Buttons.A,
				B: event.Buttons.B,
				C: event.Buttons.C,
			},
		},
	}
	if event.Type == logic.EventCounterTick {
		counter, pressed := event.Counter, event.APressed
		p.Device.Counter = &counter
		p.Device.APressed = &pressed
	}
	return json.Marshal(p)
}

// SystemPayload is used for lifecycle events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload returns event.RawPayload when set, otherwise a
// minimal system payload.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	inner := SystemPayloadInner{Event: event.Event, Reason: event.Reason}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// Nop discards everything. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(logic.Event) error       { return nil }
func (Nop) PublishSystem(SystemEvent) error { return nil }
func (Nop) Close() error                    { return nil }
func (Nop) IsConnected() bool               { return false }
