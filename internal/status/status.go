// Package status keeps a thread-safe view of device state for observers:
// the HTTP status page and MQTT lifecycle messages. The polling loop pushes
// copies in; nothing here is shared with the controller.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/m5echo/internal/echo"
	"github.com/sweeney/m5echo/internal/logic"
	"github.com/sweeney/m5echo/internal/tick"
)

// RadioInfo is a copy of the link state reported at startup.
type RadioInfo struct {
	Mode    string
	SSID    string
	Channel uint8
	Addr    string
}

// Config contains the effective configuration for display.
type Config struct {
	Debounce       time.Duration
	ActionInterval time.Duration
	EchoAddr       string
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of device state. It is a value type and
// safe to use after the lock is released.
type Snapshot struct {
	Buttons       logic.Buttons
	Counter       int8
	Ticks         tick.Ticks
	Counts        logic.Counts
	Echo          echo.Stats
	Radio         *RadioInfo
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since startup.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	echoStats func() echo.Stats
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records controller state. Called from the polling loop after
// every cycle.
func (t *Tracker) Update(buttons logic.Buttons, counter int8, ticks tick.Ticks, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Buttons = buttons
	t.snap.Counter = counter
	t.snap.Ticks = ticks
	t.snap.Counts = counts
	t.mu.Unlock()
}

func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

func (t *Tracker) SetRadio(info *RadioInfo) {
	t.mu.Lock()
	t.snap.Radio = info
	t.mu.Unlock()
}

// SetEchoSource installs the function Snapshot calls for echo counters.
func (t *Tracker) SetEchoSource(fn func() echo.Stats) {
	t.mu.Lock()
	t.echoStats = fn
	t.mu.Unlock()
}

// Snapshot returns a copy of the state with Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	fn := t.echoStats
	t.mu.RUnlock()

	if s.Radio != nil {
		r := *s.Radio
		s.Radio = &r
	}
	if fn != nil {
		s.Echo = fn()
	}
	s.Now = time.Now()
	return s
}
