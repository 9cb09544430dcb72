package display

import (
	"image/color"
)

// Panel dimensions of the ILI9341 in landscape.
const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

// Framebuffer is an in-memory RGB565 Target used on hosts without a panel
// and in tests.
type Framebuffer struct {
	width, height int16
	pix           []uint16
	frames        int
}

// NewFramebuffer allocates a width x height framebuffer cleared to black.
func NewFramebuffer(width, height int16) *Framebuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Framebuffer{
		width:  width,
		height: height,
		pix:    make([]uint16, int(width)*int(height)),
	}
}

func (f *Framebuffer) Size() (x, y int16) {
	return f.width, f.height
}

func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	f.pix[int(y)*int(f.width)+int(x)] = RGB565(c)
}

// Display counts presented frames; there is nothing to flush.
func (f *Framebuffer) Display() error {
	f.frames++
	return nil
}

// FillRectangle fills the intersection of the rectangle with the buffer.
func (f *Framebuffer) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0 := clamp(int(x), 0, int(f.width))
	y0 := clamp(int(y), 0, int(f.height))
	x1 := clamp(int(x)+int(width), 0, int(f.width))
	y1 := clamp(int(y)+int(height), 0, int(f.height))

	v := RGB565(c)
	for py := y0; py < y1; py++ {
		row := f.pix[py*int(f.width) : (py+1)*int(f.width)]
		for px := x0; px < x1; px++ {
			row[px] = v
		}
	}
	return nil
}

// Pixel returns the raw RGB565 value at (x, y), or 0 when out of range.
func (f *Framebuffer) Pixel(x, y int16) uint16 {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0
	}
	return f.pix[int(y)*int(f.width)+int(x)]
}

// Frames reports how many times Display was called.
func (f *Framebuffer) Frames() int {
	return f.frames
}

// RGB565 packs c the way the panel stores it.
func RGB565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
