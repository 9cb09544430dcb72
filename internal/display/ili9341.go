//go:build tinygo

package display

import (
	"fmt"
	"machine"

	"tinygo.org/x/drivers/ili9341"
)

// SPIPins wires an ILI9341 panel to an SPI bus.
type SPIPins struct {
	SCK, SDO, SDI machine.Pin
	DC, CS, RST   machine.Pin
	Backlight     machine.Pin
}

// NewILI9341 configures bus and returns the panel in landscape, cleared to
// black.
func NewILI9341(bus *machine.SPI, pins SPIPins) (*ili9341.Device, error) {
	err := bus.Configure(machine.SPIConfig{
		Frequency: 40_000_000,
		SCK:       pins.SCK,
		SDO:       pins.SDO,
		SDI:       pins.SDI,
	})
	if err != nil {
		return nil, fmt.Errorf("configure spi: %w", err)
	}

	d := ili9341.NewSPI(bus, pins.DC, pins.CS, pins.RST)
	d.Configure(ili9341.Config{})
	d.SetRotation(ili9341.Rotation90)
	d.FillScreen(Black)

	if pins.Backlight != machine.NoPin {
		pins.Backlight.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pins.Backlight.High()
	}
	return d, nil
}
