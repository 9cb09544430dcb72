//go:build linux && !baremetal

package gpio

import (
	"errors"
	"fmt"

	"github.com/sweeney/m5echo/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads buttons from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines [3]*gpiocdev.Line
}

// NewRealReader requests the three button lines on the named chip.
func NewRealReader(chipName string, pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealReader{chip: chip}
	offsets := [3]int{pins.A, pins.B, pins.C}
	names := [3]string{"A", "B", "C"}

	// Buttons short to ground when pressed, so the idle level comes from
	// the pull-up.
	for i, offset := range offsets {
		line, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp,
			gpiocdev.WithConsumer("m5echo"))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request button %s pin %d: %w", names[i], offset, err)
		}
		r.lines[i] = line
	}

	return r, nil
}

// Read returns the logical button states.
// Inverts raw GPIO: raw low (0) = pressed, raw high (1) = released.
func (r *RealReader) Read() (logic.Buttons, error) {
	var levels [3]int
	for i, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return logic.Buttons{}, fmt.Errorf("read button line %d: %w", line.Offset(), err)
		}
		levels[i] = v
	}

	return logic.Buttons{
		A: pressed(levels[0]),
		B: pressed(levels[1]),
		C: pressed(levels[2]),
	}, nil
}

// Close releases GPIO resources.
// Lines are reconfigured as plain inputs before closing so nothing is left
// biased after the process exits.
func (r *RealReader) Close() error {
	var errs []error

	for _, line := range r.lines {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", line.Offset(), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", line.Offset(), err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
