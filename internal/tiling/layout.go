package tiling

import (
	"fmt"
	"math"
	"sync"
)

// Rect represents a window position and size
type Rect struct {
	X      int `json:"left" yaml:"left"`
	Y      int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Mode selects how a screen is partitioned into slots.
type Mode string

const (
	ModeGrid    Mode = "grid"
	ModeRows    Mode = "rows"
	ModeColumns Mode = "columns"
	ModeCustom  Mode = "custom"
)

// Target rectangle bounds for a full-screen pop-out.
const (
	targetFraction  = 0.8
	minTargetWidth  = 800
	maxTargetWidth  = 1600
	minTargetHeight = 600
	maxTargetHeight = 1200
)

// Options describes a sub-rectangle of a screen. A zero Mode means the
// whole screen; a nil SlotIndex means the next slot in round-robin order.
type Options struct {
	Mode         Mode  `json:"layout,omitempty" yaml:"mode"`
	TotalSlots   int   `json:"totalSlots,omitempty" yaml:"total_slots"`
	SlotIndex    *int  `json:"slotIndex,omitempty" yaml:"-"`
	PaddingPx    int   `json:"paddingPx,omitempty" yaml:"padding_px"`
	ExplicitRect *Rect `json:"explicitRect,omitempty" yaml:"-"`
}

// IsZero reports whether no layout was requested.
func (o *Options) IsZero() bool {
	return o == nil || o.Mode == ""
}

// Validate checks the options for a partition of totalSlots cells.
func (o Options) Validate() error {
	switch o.Mode {
	case "":
		return nil
	case ModeGrid, ModeRows, ModeColumns:
		if o.TotalSlots < 1 {
			return fmt.Errorf("layout %q requires totalSlots >= 1, got %d", o.Mode, o.TotalSlots)
		}
		if o.SlotIndex != nil && (*o.SlotIndex < 0 || *o.SlotIndex >= o.TotalSlots) {
			return fmt.Errorf("slotIndex %d out of range [0,%d)", *o.SlotIndex, o.TotalSlots)
		}
	case ModeCustom:
		if o.ExplicitRect == nil || o.ExplicitRect.Width <= 0 || o.ExplicitRect.Height <= 0 {
			return fmt.Errorf("layout %q requires an explicit rectangle with positive size", o.Mode)
		}
	default:
		return fmt.Errorf("unsupported layout mode: %q", o.Mode)
	}
	if o.PaddingPx < 0 {
		return fmt.Errorf("paddingPx must be >= 0, got %d", o.PaddingPx)
	}
	return nil
}

// CalculateGrid determines the optimal grid dimensions for the given number of windows
func CalculateGrid(numWindows int) (rows, cols int) {
	if numWindows == 0 {
		return 0, 0
	}

	// Calculate columns first (ceiling of square root)
	cols = int(math.Ceil(math.Sqrt(float64(numWindows))))

	// Calculate rows needed
	rows = int(math.Ceil(float64(numWindows) / float64(cols)))

	return rows, cols
}

// TargetRect returns the default pop-out rectangle for a screen: 80% of each
// dimension clamped to [800,1600]x[600,1200], centered on the screen.
func TargetRect(screen Rect) Rect {
	width := clamp(int(float64(screen.Width)*targetFraction), minTargetWidth, maxTargetWidth)
	height := clamp(int(float64(screen.Height)*targetFraction), minTargetHeight, maxTargetHeight)
	return Rect{
		X:      screen.X + (screen.Width-width)/2,
		Y:      screen.Y + (screen.Height-height)/2,
		Width:  width,
		Height: height,
	}
}

// SlotRect computes the cell for slot within screen, inset by the padding on
// every side. Custom layouts place the explicit rectangle relative to the
// screen origin.
func SlotRect(screen Rect, opts Options, slot int) (Rect, error) {
	if err := opts.Validate(); err != nil {
		return Rect{}, err
	}

	var rows, cols int
	switch opts.Mode {
	case "":
		return TargetRect(screen), nil
	case ModeCustom:
		r := *opts.ExplicitRect
		return Rect{
			X:      screen.X + r.X,
			Y:      screen.Y + r.Y,
			Width:  r.Width,
			Height: r.Height,
		}, nil
	case ModeGrid:
		rows, cols = CalculateGrid(opts.TotalSlots)
	case ModeRows:
		rows, cols = opts.TotalSlots, 1
	case ModeColumns:
		rows, cols = 1, opts.TotalSlots
	}

	if slot < 0 || slot >= opts.TotalSlots {
		return Rect{}, fmt.Errorf("slot %d out of range [0,%d)", slot, opts.TotalSlots)
	}

	cellWidth := screen.Width / cols
	cellHeight := screen.Height / rows
	pad := opts.PaddingPx

	row := slot / cols
	col := slot % cols

	cell := Rect{
		X:      screen.X + col*cellWidth + pad,
		Y:      screen.Y + row*cellHeight + pad,
		Width:  cellWidth - 2*pad,
		Height: cellHeight - 2*pad,
	}
	if cell.Width <= 0 || cell.Height <= 0 {
		return Rect{}, fmt.Errorf(
			"insufficient space for layout: screen=%dx%d rows=%d cols=%d padding=%d (cell=%dx%d)",
			screen.Width, screen.Height, rows, cols, pad, cell.Width, cell.Height,
		)
	}
	return cell, nil
}

// Cycler hands out slot indexes round-robin, one counter per layout shape.
// It is safe for concurrent use.
type Cycler struct {
	mu   sync.Mutex
	next map[string]int
}

// NewCycler creates an empty slot cycler.
func NewCycler() *Cycler {
	return &Cycler{next: make(map[string]int)}
}

// Next returns the slot to use for opts: the explicit SlotIndex when set,
// otherwise the next index in the rotation for this layout and slot count.
func (c *Cycler) Next(opts Options) int {
	if opts.SlotIndex != nil {
		return *opts.SlotIndex
	}
	if opts.TotalSlots < 1 {
		return 0
	}

	key := fmt.Sprintf("%s/%d", opts.Mode, opts.TotalSlots)

	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.next[key] % opts.TotalSlots
	c.next[key] = (slot + 1) % opts.TotalSlots
	return slot
}

// Reset clears every rotation.
func (c *Cycler) Reset() {
	c.mu.Lock()
	c.next = make(map[string]int)
	c.mu.Unlock()
}

// Resolve returns the window rectangle for a pop-out on screen. Without
// layout options it is TargetRect; otherwise the window fills its slot cell.
func Resolve(screen Rect, opts *Options, cycler *Cycler) (Rect, error) {
	if opts.IsZero() {
		return TargetRect(screen), nil
	}
	if err := opts.Validate(); err != nil {
		return Rect{}, err
	}
	slot := 0
	if opts.Mode != ModeCustom {
		if cycler != nil {
			slot = cycler.Next(*opts)
		} else if opts.SlotIndex != nil {
			slot = *opts.SlotIndex
		}
	}
	return SlotRect(screen, *opts, slot)
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
