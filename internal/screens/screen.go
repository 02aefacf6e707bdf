// Package screens detects the attached displays and reconciles stored
// screen references against the current detection result.
package screens

import (
	"fmt"

	"github.com/1broseidon/popdeck/internal/platform"
)

// Screen is one physical display as seen by a single detection call. ID is
// the ordinal within that call and is not stable across calls; geometry is.
type Screen struct {
	ID               int     `json:"id"`
	Name             string  `json:"name,omitempty"`
	Left             int     `json:"left"`
	Top              int     `json:"top"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	IsPrimary        bool    `json:"isPrimary"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// Area returns width times height.
func (s Screen) Area() int {
	return s.Width * s.Height
}

// Bounds returns the screen geometry as a platform rectangle.
func (s Screen) Bounds() platform.Rect {
	return platform.Rect{X: s.Left, Y: s.Top, Width: s.Width, Height: s.Height}
}

// SameDisplay reports whether two screens from possibly different detection
// calls describe the same physical display.
func (s Screen) SameDisplay(o Screen) bool {
	return s.Left == o.Left && s.Top == o.Top && s.Width == o.Width && s.Height == o.Height
}

func (s Screen) String() string {
	primary := ""
	if s.IsPrimary {
		primary = " primary"
	}
	return fmt.Sprintf("screen %d %dx%d+%d+%d%s", s.ID, s.Width, s.Height, s.Left, s.Top, primary)
}

// CurrentIndex returns the index of the screen hosting the main dashboard:
// the primary screen, else 0.
func CurrentIndex(list []Screen) int {
	for i, s := range list {
		if s.IsPrimary {
			return i
		}
	}
	return 0
}

func fromDisplay(index int, d platform.Display) Screen {
	ratio := d.Scale
	if ratio <= 0 {
		ratio = 1
	}
	return Screen{
		ID:               index,
		Name:             d.Name,
		Left:             d.Bounds.X,
		Top:              d.Bounds.Y,
		Width:            d.Bounds.Width,
		Height:           d.Bounds.Height,
		IsPrimary:        d.Primary,
		DevicePixelRatio: ratio,
	}
}
