// Package display paints the device status panel.
//
// Drawing goes through the Presenter interface so the polling loop does not
// care whether pixels land on an ILI9341 over SPI or in a host framebuffer.
package display

import (
	"errors"
	"fmt"
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// ErrEmptyTarget is returned when the target reports a zero size.
var ErrEmptyTarget = errors.New("display target has no pixels")

// Point is a pixel coordinate. For text it is the baseline anchor.
type Point struct {
	X, Y int16
}

// Align controls horizontal text placement around Point.X.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// TextStyle describes how a line of text is drawn. A Background with a zero
// alpha leaves the pixels behind the text untouched.
type TextStyle struct {
	Color      color.RGBA
	Background color.RGBA
	Align      Align
}

// BorderStyle is a stroke drawn inside the panel bounds.
type BorderStyle struct {
	Color color.RGBA
	Width int16
}

// Presenter is the drawing surface used by the status screen.
type Presenter interface {
	Size() (x, y int16)
	PaintBackground(c color.RGBA) error
	DrawText(text string, pos Point, style TextStyle) error
	DrawBorder(style BorderStyle) error
}

// Target is a tinygo display that can also fill rectangles in one call.
// *ili9341.Device and *Framebuffer both satisfy it.
type Target interface {
	drivers.Displayer
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Panel implements Presenter on top of a Target.
type Panel struct {
	target Target
	font   *tinyfont.Font
}

// NewPanel wraps target using the proggy font.
func NewPanel(target Target) *Panel {
	return &Panel{target: target, font: &proggy.TinySZ8pt7b}
}

func (p *Panel) Size() (x, y int16) {
	return p.target.Size()
}

func (p *Panel) PaintBackground(c color.RGBA) error {
	w, h := p.target.Size()
	if w <= 0 || h <= 0 {
		return ErrEmptyTarget
	}
	if err := p.target.FillRectangle(0, 0, w, h, c); err != nil {
		return fmt.Errorf("paint background: %w", err)
	}
	return p.flush()
}

// DrawBorder strokes the four edges of the panel, inside its bounds.
func (p *Panel) DrawBorder(style BorderStyle) error {
	w, h := p.target.Size()
	if w <= 0 || h <= 0 {
		return ErrEmptyTarget
	}
	bw := style.Width
	if bw <= 0 {
		return nil
	}
	if 2*bw > w || 2*bw > h {
		return p.PaintBackground(style.Color)
	}

	edges := [4][4]int16{
		{0, 0, w, bw},      // top
		{0, h - bw, w, bw}, // bottom
		{0, bw, bw, h - 2*bw},
		{w - bw, bw, bw, h - 2*bw},
	}
	for _, e := range edges {
		if err := p.target.FillRectangle(e[0], e[1], e[2], e[3], style.Color); err != nil {
			return fmt.Errorf("draw border: %w", err)
		}
	}
	return p.flush()
}

// DrawText writes one line of text with its baseline at pos.Y.
func (p *Panel) DrawText(text string, pos Point, style TextStyle) error {
	_, outbox := tinyfont.LineWidth(p.font, text)
	width := int16(outbox)

	x := pos.X
	if style.Align == AlignCenter {
		x -= width / 2
	}

	if style.Background.A != 0 {
		adv := int16(p.font.YAdvance)
		if err := p.target.FillRectangle(x, pos.Y-adv, width, adv+adv/4, style.Background); err != nil {
			return fmt.Errorf("draw text background: %w", err)
		}
	}

	tinyfont.WriteLine(p.target, p.font, x, pos.Y, text, style.Color)
	return p.flush()
}

func (p *Panel) flush() error {
	if err := p.target.Display(); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}
