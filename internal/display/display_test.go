package display

import (
	"errors"
	"image/color"
	"testing"

	"github.com/sweeney/m5echo/internal/logic"
)

var (
	green = RGB565(Green)
	blue  = RGB565(Blue)
	black = RGB565(Black)
)

func TestRGB565(t *testing.T) {
	tests := []struct {
		c    color.RGBA
		want uint16
	}{
		{Black, 0x0000},
		{Green, 0x07E0},
		{Blue, 0x001F},
		{color.RGBA{R: 255, A: 255}, 0xF800},
		{color.RGBA{R: 255, G: 255, B: 255, A: 255}, 0xFFFF},
	}
	for _, tt := range tests {
		if got := RGB565(tt.c); got != tt.want {
			t.Errorf("RGB565(%v): got %#04x, want %#04x", tt.c, got, tt.want)
		}
	}
}

func TestFramebufferFillRectangleClips(t *testing.T) {
	fb := NewFramebuffer(10, 10)

	if err := fb.FillRectangle(-5, -5, 8, 8, Blue); err != nil {
		t.Fatalf("FillRectangle: %v", err)
	}
	if fb.Pixel(0, 0) != blue || fb.Pixel(2, 2) != blue {
		t.Error("expected visible part of rectangle filled")
	}
	if fb.Pixel(3, 3) != 0 {
		t.Error("pixel outside rectangle was filled")
	}

	// Entirely outside: no-op, no panic.
	if err := fb.FillRectangle(20, 20, 5, 5, Blue); err != nil {
		t.Fatalf("FillRectangle: %v", err)
	}
	fb.SetPixel(-1, 100, Blue)
	if got := fb.Pixel(-1, 100); got != 0 {
		t.Errorf("out-of-range Pixel: got %#04x, want 0", got)
	}
}

func TestPaintBackgroundFillsEverything(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	p := NewPanel(fb)

	if err := p.PaintBackground(Green); err != nil {
		t.Fatalf("PaintBackground: %v", err)
	}
	for y := int16(0); y < DefaultHeight; y++ {
		for x := int16(0); x < DefaultWidth; x++ {
			if fb.Pixel(x, y) != green {
				t.Fatalf("pixel (%d,%d) not green", x, y)
			}
		}
	}
	if fb.Frames() != 1 {
		t.Errorf("Frames: got %d, want 1", fb.Frames())
	}
}

func TestPaintBackgroundEmptyTarget(t *testing.T) {
	p := NewPanel(NewFramebuffer(0, 0))
	if err := p.PaintBackground(Green); !errors.Is(err, ErrEmptyTarget) {
		t.Errorf("got %v, want ErrEmptyTarget", err)
	}
}

func TestDrawBorderInside(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	p := NewPanel(fb)
	p.PaintBackground(Green)

	if err := p.DrawBorder(BorderStyle{Color: Blue, Width: 8}); err != nil {
		t.Fatalf("DrawBorder: %v", err)
	}

	tests := []struct {
		x, y int16
		want uint16
	}{
		{0, 0, blue},
		{7, 7, blue},
		{8, 8, green},
		{319, 239, blue},
		{312, 120, blue},
		{311, 120, green},
		{160, 7, blue},
		{160, 8, green},
		{160, 232, blue},
		{160, 231, green},
	}
	for _, tt := range tests {
		if got := fb.Pixel(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d): got %#04x, want %#04x", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDrawBorderZeroWidthIsNoop(t *testing.T) {
	fb := NewFramebuffer(20, 20)
	p := NewPanel(fb)
	if err := p.DrawBorder(BorderStyle{Color: Blue}); err != nil {
		t.Fatalf("DrawBorder: %v", err)
	}
	if fb.Pixel(0, 0) != 0 {
		t.Error("zero-width border drew pixels")
	}
}

// inked returns the bounding box of pixels equal to v inside the given rows.
func inked(fb *Framebuffer, v uint16, y0, y1 int16) (minX, maxX int16, found bool) {
	w, _ := fb.Size()
	minX, maxX = w, -1
	for y := y0; y < y1; y++ {
		for x := int16(0); x < w; x++ {
			if fb.Pixel(x, y) == v {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
			}
		}
	}
	return minX, maxX, found
}

func TestDrawTextCentered(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	p := NewPanel(fb)
	p.PaintBackground(Green)

	err := p.DrawText("HELLO WORLD", Point{X: 160, Y: 120}, TextStyle{Color: Black, Align: AlignCenter})
	if err != nil {
		t.Fatalf("DrawText: %v", err)
	}

	minX, maxX, found := inked(fb, black, 100, 130)
	if !found {
		t.Fatal("no text pixels drawn")
	}
	mid := (minX + maxX) / 2
	if mid < 152 || mid > 168 {
		t.Errorf("text centre at x=%d, want near 160 (span %d..%d)", mid, minX, maxX)
	}
}

func TestDrawTextLeftAligned(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	p := NewPanel(fb)
	p.PaintBackground(Green)

	if err := p.DrawText("HELLO", Point{X: 20, Y: 50}, TextStyle{Color: Black}); err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	minX, _, found := inked(fb, black, 30, 60)
	if !found {
		t.Fatal("no text pixels drawn")
	}
	if minX < 20 || minX > 26 {
		t.Errorf("text starts at x=%d, want just right of 20", minX)
	}
}

func countInk(fb *Framebuffer, v uint16) int {
	w, h := fb.Size()
	n := 0
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			if fb.Pixel(x, y) == v {
				n++
			}
		}
	}
	return n
}

func TestDrawTextBackgroundClearsPreviousText(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	p := NewPanel(fb)
	p.PaintBackground(Green)

	pos := Point{X: 160, Y: 120}
	style := TextStyle{Color: Black, Background: Green, Align: AlignCenter}
	if err := p.DrawText("WWWW", pos, style); err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	heavy := countInk(fb, black)

	if err := p.DrawText("....", pos, style); err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	light := countInk(fb, black)

	if light == 0 {
		t.Fatal("no text pixels drawn")
	}
	if light >= heavy {
		t.Errorf("old text not cleared: %d inked pixels after redraw, %d before", light, heavy)
	}
}

func TestStatusScreenInit(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	s := NewStatusScreen(NewPanel(fb), "")

	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if fb.Pixel(0, 0) != blue || fb.Pixel(319, 239) != blue {
		t.Error("expected blue border corners")
	}
	if fb.Pixel(20, 20) != green {
		t.Error("expected green background inside border")
	}
	if _, _, found := inked(fb, black, 120, 140); !found {
		t.Error("expected title text below centre")
	}
}

func TestStatusScreenShowButtons(t *testing.T) {
	fb := NewFramebuffer(DefaultWidth, DefaultHeight)
	s := NewStatusScreen(NewPanel(fb), "title")
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	line := ButtonLine(fb.Size())

	if _, _, found := inked(fb, black, line.Y-12, line.Y+4); found {
		t.Fatal("button line drawn before ShowButtons")
	}
	if err := s.ShowButtons(logic.Buttons{A: true}); err != nil {
		t.Fatalf("ShowButtons: %v", err)
	}
	if _, _, found := inked(fb, black, line.Y-12, line.Y+4); !found {
		t.Error("expected button status text")
	}
}

// failingTarget fails every fill.
type failingTarget struct {
	*Framebuffer
}

func (failingTarget) FillRectangle(x, y, w, h int16, c color.RGBA) error {
	return errors.New("spi timeout")
}

func TestDrawErrorsPropagate(t *testing.T) {
	s := NewStatusScreen(NewPanel(failingTarget{NewFramebuffer(32, 32)}), "")

	if err := s.Init(); err == nil {
		t.Error("Init: expected error")
	}
	if err := s.ShowButtons(logic.Buttons{}); err == nil {
		t.Error("ShowButtons: expected error")
	}
}
