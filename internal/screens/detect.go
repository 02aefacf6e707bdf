package screens

import (
	"context"
	"errors"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/platform"
)

// secondScreenMargin is how much larger than the native display the
// available desktop must be before a second display is assumed.
const secondScreenMargin = 1.2

// DefaultGeometry is used when nothing better is known.
var DefaultGeometry = platform.Rect{Width: 1920, Height: 1080}

// Detector produces the current list of screens. Detect never fails and
// never returns an empty list.
type Detector struct {
	capability platform.Capability
	metrics    platform.DesktopMetrics
	fallback   platform.Rect

	mu        sync.Mutex
	lastKnown *Screen
}

// NewDetector creates a detector. metrics may be nil; fallback is the
// geometry reported when detection fails before anything was learned, and
// defaults to DefaultGeometry when empty.
func NewDetector(capability platform.Capability, metrics platform.DesktopMetrics, fallback platform.Rect) *Detector {
	if fallback.Width <= 0 || fallback.Height <= 0 {
		fallback = DefaultGeometry
	}
	return &Detector{
		capability: capability,
		metrics:    metrics,
		fallback:   fallback,
	}
}

// Capability returns the probed enumeration capability.
func (d *Detector) Capability() platform.Capability {
	return d.capability
}

// Detect queries the platform for displays. Each call returns a fresh slice.
func (d *Detector) Detect(ctx context.Context) []Screen {
	var (
		list []Screen
		err  error
	)
	if enumerator, ok := d.capability.Enumerator(); ok {
		list, err = d.enumerate(ctx, enumerator)
	} else {
		list, err = d.estimate(ctx)
	}
	if err != nil {
		logger.Warnf(ctx, "screen detection failed, reporting a single screen: %v", err)
		return []Screen{d.lastKnownScreen()}
	}

	d.remember(list)
	logger.Debugf(ctx, "detected %d screen(s): %v", len(list), list)
	return list
}

func (d *Detector) enumerate(ctx context.Context, e platform.DisplayEnumerator) ([]Screen, error) {
	displays, err := e.Displays(ctx)
	if err != nil {
		return nil, err
	}
	if len(displays) == 0 {
		return nil, errors.New("platform reported no displays")
	}
	list := make([]Screen, len(displays))
	for i, disp := range displays {
		list[i] = fromDisplay(i, disp)
	}
	return list, nil
}

// estimate compares the available desktop with the native size of the
// primary display and synthesizes an adjacent second screen when the desktop
// is clearly larger. Width is checked before height.
func (d *Detector) estimate(ctx context.Context) ([]Screen, error) {
	if d.metrics == nil {
		return nil, platform.ErrUnsupported
	}
	desk, err := d.metrics.Desktop(ctx)
	if err != nil {
		return nil, err
	}

	native := desk.Native
	if native.Width <= 0 || native.Height <= 0 {
		native = d.fallback
	}
	avail := desk.Available

	primary := Screen{
		ID:               0,
		Left:             native.X,
		Top:              native.Y,
		Width:            native.Width,
		Height:           native.Height,
		IsPrimary:        true,
		DevicePixelRatio: 1,
	}

	switch {
	case float64(avail.Width) > float64(native.Width)*secondScreenMargin:
		logger.Debugf(ctx, "available width %d exceeds native %d, assuming a screen to the right", avail.Width, native.Width)
		return []Screen{primary, {
			ID:               1,
			Left:             native.X + native.Width,
			Top:              native.Y,
			Width:            avail.Width - native.Width,
			Height:           native.Height,
			DevicePixelRatio: 1,
		}}, nil
	case float64(avail.Height) > float64(native.Height)*secondScreenMargin:
		logger.Debugf(ctx, "available height %d exceeds native %d, assuming a screen below", avail.Height, native.Height)
		return []Screen{primary, {
			ID:               1,
			Left:             native.X,
			Top:              native.Y + native.Height,
			Width:            native.Width,
			Height:           avail.Height - native.Height,
			DevicePixelRatio: 1,
		}}, nil
	default:
		return []Screen{primary}, nil
	}
}

func (d *Detector) remember(list []Screen) {
	s := list[CurrentIndex(list)]
	d.mu.Lock()
	d.lastKnown = &s
	d.mu.Unlock()
}

func (d *Detector) lastKnownScreen() Screen {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastKnown != nil {
		s := *d.lastKnown
		s.ID = 0
		s.IsPrimary = true
		return s
	}
	return Screen{
		ID:               0,
		Left:             d.fallback.X,
		Top:              d.fallback.Y,
		Width:            d.fallback.Width,
		Height:           d.fallback.Height,
		IsPrimary:        true,
		DevicePixelRatio: 1,
	}
}
