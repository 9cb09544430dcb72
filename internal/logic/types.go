// Package logic contains the pure button debounce and counter state machine.
// This package has NO external dependencies (no GPIO, network, display, OS,
// or time.Sleep). Elapsed time is always passed in by the caller.
package logic

import (
	"time"

	"github.com/sweeney/m5echo/internal/tick"
)

// Default thresholds.
const (
	DefaultDebounce       = 25 * time.Millisecond
	DefaultActionInterval = time.Second
)

// Buttons is one reading of the three buttons. true = pressed.
type Buttons struct {
	A bool
	B bool
	C bool
}

// Differs reports whether any button differs between b and o.
func (b Buttons) Differs(o Buttons) bool {
	return b != o
}

// String formats the buttons as "A=1 B=0 C=0".
func (b Buttons) String() string {
	buf := []byte("A=0 B=0 C=0")
	if b.A {
		buf[2] = '1'
	}
	if b.B {
		buf[6] = '1'
	}
	if b.C {
		buf[10] = '1'
	}
	return string(buf)
}

// EventType identifies what a controller cycle produced.
type EventType string

const (
	EventButtonsChanged EventType = "BUTTONS_CHANGED"
	EventCounterTick    EventType = "COUNTER_TICK"
)

// Event is emitted by Controller.Process.
type Event struct {
	Type  EventType
	Ticks tick.Ticks
	// Buttons is the accepted (debounced) state after the cycle.
	Buttons Buttons
	// APressed and Counter are only meaningful for EventCounterTick.
	APressed bool
	Counter  int8
}

// Input is a single polling cycle's worth of data.
type Input struct {
	Raw     Buttons
	Elapsed time.Duration
	Ticks   tick.Ticks
}

// Config holds the controller thresholds.
type Config struct {
	Debounce       time.Duration
	ActionInterval time.Duration
}

// Counts tracks how often each event fired since startup.
type Counts struct {
	Changes int
	Actions int
}
