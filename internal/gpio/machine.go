//go:build tinygo && baremetal

package gpio

import (
	"machine"

	"github.com/sweeney/m5echo/internal/logic"
)

// MachineReader reads buttons from microcontroller pins.
// Pin reads cannot fail on these targets.
type MachineReader struct {
	a, b, c machine.Pin
}

// NewMachineReader configures the three pins as pulled-up inputs.
func NewMachineReader(a, b, c machine.Pin) *MachineReader {
	for _, p := range []machine.Pin{a, b, c} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	return &MachineReader{a: a, b: b, c: c}
}

// Read returns the logical button states (low = pressed).
func (r *MachineReader) Read() (logic.Buttons, error) {
	return logic.Buttons{
		A: !r.a.Get(),
		B: !r.b.Get(),
		C: !r.c.Get(),
	}, nil
}

// Close leaves the pins configured.
func (r *MachineReader) Close() error {
	return nil
}
