package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned when the host lacks a capability.
var ErrUnsupported = errors.New("platform capability not supported")

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in virtual-desktop coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Display describes a physical display.
type Display struct {
	ID      int
	Name    string
	Bounds  Rect
	Primary bool
	// Scale is the device pixel ratio; zero means 1.
	Scale float64
}

// Desktop reports what the host exposes without per-display enumeration:
// the size of the whole available virtual desktop and the native size of the
// display hosting the application.
type Desktop struct {
	Available Rect
	Native    Rect
}

// DisplayEnumerator lists every attached display.
type DisplayEnumerator interface {
	Displays(ctx context.Context) ([]Display, error)
}

// DesktopMetrics reports coarse desktop geometry.
type DesktopMetrics interface {
	Desktop(ctx context.Context) (Desktop, error)
}

// Capability is the result of probing for multi-display enumeration.
// It is resolved once and consumed with Enumerator.
type Capability struct {
	enumerator DisplayEnumerator
}

// Supported wraps a working enumerator.
func Supported(e DisplayEnumerator) Capability {
	return Capability{enumerator: e}
}

// Unsupported reports that the host cannot enumerate displays.
func Unsupported() Capability {
	return Capability{}
}

// Enumerator returns the enumerator and true when the capability is present.
func (c Capability) Enumerator() (DisplayEnumerator, bool) {
	return c.enumerator, c.enumerator != nil
}

func (c Capability) String() string {
	if c.enumerator == nil {
		return "unsupported"
	}
	return "supported"
}

// Window is a handle to a window opened by a WindowHost. Every method may be
// called after the user closed the window; callers check Closed first.
type Window interface {
	ID() WindowID
	Name() string
	Closed() bool
	Bounds(ctx context.Context) (Rect, error)
	MoveResize(ctx context.Context, bounds Rect) error
	Focus(ctx context.Context) error
	PostMessage(ctx context.Context, data []byte) error
	Close(ctx context.Context) error
}

// Features controls the browser chrome of an opened window.
type Features struct {
	Scrollbars  bool
	Resizable   bool
	Status      bool
	Toolbar     bool
	Menubar     bool
	Location    bool
	Directories bool
}

// PopupFeatures disables every toolbar and keeps the window scrollable and
// resizable.
func PopupFeatures() Features {
	return Features{Scrollbars: true, Resizable: true}
}

// Format renders the features as a window features string, prefixed by the
// geometry when bounds are given.
func (f Features) Format(bounds *Rect) string {
	parts := make([]string, 0, 11)
	if bounds != nil {
		parts = append(parts,
			fmt.Sprintf("left=%d", bounds.X),
			fmt.Sprintf("top=%d", bounds.Y),
			fmt.Sprintf("width=%d", bounds.Width),
			fmt.Sprintf("height=%d", bounds.Height),
		)
	}
	parts = append(parts,
		"scrollbars="+yesNo(f.Scrollbars),
		"resizable="+yesNo(f.Resizable),
		"status="+yesNo(f.Status),
		"toolbar="+yesNo(f.Toolbar),
		"menubar="+yesNo(f.Menubar),
		"location="+yesNo(f.Location),
		"directories="+yesNo(f.Directories),
	)
	return strings.Join(parts, ",")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// OpenRequest describes a new window. A nil Bounds opens the window without
// a position hint.
type OpenRequest struct {
	URL      string
	Name     string
	Bounds   *Rect
	Features Features
}

// WindowHost opens windows. Open may return a nil window with a nil error when
// the host silently refused (for example a blocked pop-up).
type WindowHost interface {
	Open(ctx context.Context, req OpenRequest) (Window, error)
	OpenTab(ctx context.Context, url string) error
}

// MessageSink delivers messages to the page loaded in a named window.
type MessageSink interface {
	Post(window string, data []byte) error
	Drop(window string)
}
