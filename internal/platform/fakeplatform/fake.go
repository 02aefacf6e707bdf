// Package fakeplatform provides in-memory platform implementations for
// tests: a window host that can refuse, clamp or ignore placement, and a
// fixed display enumerator.
package fakeplatform

import (
	"context"
	"errors"
	"sync"

	"github.com/1broseidon/popdeck/internal/platform"
)

// ErrRefused is returned by Host.Open when configured to refuse.
var ErrRefused = errors.New("fake host refused to open window")

// Displays is a fixed DisplayEnumerator.
type Displays struct {
	mu   sync.Mutex
	list []platform.Display
	err  error
}

// NewDisplays returns an enumerator reporting rects in order; the first is primary.
func NewDisplays(rects ...platform.Rect) *Displays {
	d := &Displays{}
	d.Set(rects...)
	return d
}

// Set replaces the reported displays.
func (d *Displays) Set(rects ...platform.Rect) {
	list := make([]platform.Display, len(rects))
	for i, r := range rects {
		list[i] = platform.Display{ID: i, Bounds: r, Primary: i == 0, Scale: 1}
	}
	d.mu.Lock()
	d.list, d.err = list, nil
	d.mu.Unlock()
}

// Fail makes the next enumerations return err.
func (d *Displays) Fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *Displays) Displays(context.Context) ([]platform.Display, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]platform.Display(nil), d.list...), nil
}

// Host is a scriptable WindowHost. The zero value opens every window where
// asked.
type Host struct {
	// RefusePositioned fails opens that carry bounds.
	RefusePositioned bool
	// RefuseAll fails every open.
	RefuseAll bool
	// FailOpens fails that many opens before behaving normally.
	FailOpens int
	// CloseOnOpen returns windows that are already closed.
	CloseOnOpen bool
	// IgnoreHints opens positioned windows at the origin.
	IgnoreHints bool
	// MoveFailures is how many MoveResize calls fail on each window.
	MoveFailures int
	// TabErr fails OpenTab.
	TabErr error

	mu      sync.Mutex
	opens   []platform.OpenRequest
	tabs    []string
	windows []*Window
}

// Open implements platform.WindowHost.
func (h *Host) Open(_ context.Context, req platform.OpenRequest) (platform.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opens = append(h.opens, req)

	if h.RefuseAll || (h.RefusePositioned && req.Bounds != nil) {
		return nil, ErrRefused
	}
	if h.FailOpens > 0 {
		h.FailOpens--
		return nil, ErrRefused
	}

	w := &Window{
		id:           platform.WindowID(len(h.windows) + 1),
		name:         req.Name,
		closed:       h.CloseOnOpen,
		moveFailures: h.MoveFailures,
	}
	if req.Bounds != nil && !h.IgnoreHints {
		w.bounds = *req.Bounds
	} else if req.Bounds != nil {
		w.bounds = platform.Rect{Width: req.Bounds.Width, Height: req.Bounds.Height}
	} else {
		w.bounds = platform.Rect{Width: 800, Height: 600}
	}
	h.windows = append(h.windows, w)
	return w, nil
}

// OpenTab implements platform.WindowHost.
func (h *Host) OpenTab(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.TabErr != nil {
		return h.TabErr
	}
	h.tabs = append(h.tabs, url)
	return nil
}

// Opens returns every Open request in order.
func (h *Host) Opens() []platform.OpenRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]platform.OpenRequest(nil), h.opens...)
}

// Tabs returns every URL opened as a tab.
func (h *Host) Tabs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.tabs...)
}

// Windows returns every window created.
func (h *Host) Windows() []*Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Window(nil), h.windows...)
}

// Window is a fake window handle.
type Window struct {
	id   platform.WindowID
	name string

	mu           sync.Mutex
	bounds       platform.Rect
	closed       bool
	focused      bool
	moveFailures int
	moves        []platform.Rect
	messages     [][]byte
}

// NewWindow creates a standalone open window.
func NewWindow(name string) *Window {
	return &Window{id: 1, name: name}
}

func (w *Window) ID() platform.WindowID { return w.id }

func (w *Window) Name() string { return w.name }

func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Window) Bounds(context.Context) (platform.Rect, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds, nil
}

func (w *Window) MoveResize(_ context.Context, bounds platform.Rect) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.moves = append(w.moves, bounds)
	if w.moveFailures > 0 {
		w.moveFailures--
		return errors.New("fake window not ready")
	}
	w.bounds = bounds
	return nil
}

func (w *Window) Focus(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused = true
	return nil
}

func (w *Window) PostMessage(_ context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("window closed")
	}
	w.messages = append(w.messages, append([]byte(nil), data...))
	return nil
}

func (w *Window) Close(context.Context) error {
	w.SetClosed()
	return nil
}

// SetClosed simulates the user closing the window.
func (w *Window) SetClosed() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Focused reports whether Focus was called.
func (w *Window) Focused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Moves returns every MoveResize argument.
func (w *Window) Moves() []platform.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]platform.Rect(nil), w.moves...)
}

// Messages returns every posted message.
func (w *Window) Messages() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.messages...)
}

var (
	_ platform.WindowHost        = (*Host)(nil)
	_ platform.Window            = (*Window)(nil)
	_ platform.DisplayEnumerator = (*Displays)(nil)
)
