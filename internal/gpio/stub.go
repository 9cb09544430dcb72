//go:build !linux || baremetal

package gpio

import (
	"errors"

	"github.com/sweeney/m5echo/internal/logic"
)

// RealReader is not available on this platform.
type RealReader struct{}

// NewRealReader returns an error on platforms without the GPIO character device.
func NewRealReader(chipName string, pins Pins) (*RealReader, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on this platform.
func (r *RealReader) Read() (logic.Buttons, error) {
	return logic.Buttons{}, errors.New("gpio: not supported")
}

// Close is not implemented on this platform.
func (r *RealReader) Close() error {
	return nil
}
