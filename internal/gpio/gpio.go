// Package gpio provides button input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device; a TinyGo
// implementation reads machine pins directly.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/m5echo/internal/logic"

// Reader samples the three buttons.
type Reader interface {
	// Read returns the instantaneous logical button state.
	// Buttons are active-low: raw level 0 = pressed = true.
	// No debouncing is applied.
	Read() (logic.Buttons, error)

	// Close releases GPIO resources.
	Close() error
}

// Pins holds the line offsets of the three buttons.
type Pins struct {
	A int
	B int
	C int
}

// Default chip and line offsets.
const (
	DefaultChip = "gpiochip0"
	DefaultPinA = 39
	DefaultPinB = 38
	DefaultPinC = 37
)

// DefaultPins returns the default button line offsets.
func DefaultPins() Pins {
	return Pins{A: DefaultPinA, B: DefaultPinB, C: DefaultPinC}
}

// pressed converts a raw line level to the logical state.
func pressed(level int) bool {
	return level == 0
}
