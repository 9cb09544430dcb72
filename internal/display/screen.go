package display

import (
	"fmt"
	"image/color"

	"github.com/sweeney/m5echo/internal/logic"
)

var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// BorderWidth is the inside stroke drawn by Init.
const BorderWidth = 8

// DefaultTitle is drawn under the panel centre by Init.
const DefaultTitle = "M5Stack echo"

// StatusScreen lays out the fixed status panel: background, border, title
// and a single button-status line.
type StatusScreen struct {
	p     Presenter
	title string
}

// NewStatusScreen returns a screen drawing on p. An empty title uses
// DefaultTitle.
func NewStatusScreen(p Presenter, title string) *StatusScreen {
	if title == "" {
		title = DefaultTitle
	}
	return &StatusScreen{p: p, title: title}
}

// Init paints the whole panel once at startup.
func (s *StatusScreen) Init() error {
	if err := s.p.PaintBackground(Green); err != nil {
		return err
	}
	if err := s.p.DrawBorder(BorderStyle{Color: Blue, Width: BorderWidth}); err != nil {
		return err
	}
	w, h := s.p.Size()
	title := TextStyle{Color: Black, Align: AlignCenter}
	if err := s.p.DrawText(s.title, Point{X: w / 2, Y: h/2 + 15}, title); err != nil {
		return fmt.Errorf("draw title: %w", err)
	}
	return nil
}

// ShowButtons redraws the button-status line. The line is cleared to the
// background first so shorter text leaves no residue.
func (s *StatusScreen) ShowButtons(b logic.Buttons) error {
	w, h := s.p.Size()
	style := TextStyle{Color: Black, Background: Green, Align: AlignCenter}
	if err := s.p.DrawText(b.String(), ButtonLine(w, h), style); err != nil {
		return fmt.Errorf("draw buttons: %w", err)
	}
	return nil
}

// ButtonLine is the baseline anchor of the button-status line.
func ButtonLine(w, h int16) Point {
	return Point{X: w / 2, Y: h/2 + 45}
}
