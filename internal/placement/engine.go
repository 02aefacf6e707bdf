package placement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/screens"
	"github.com/1broseidon/popdeck/internal/tiling"
)

// State is a step of the placement state machine.
type State string

const (
	StateNoTarget        State = "NO_TARGET"
	StateSingleScreenTab State = "SINGLE_SCREEN_TAB"
	StateStrategy1       State = "STRATEGY_1"
	StateStrategy2       State = "STRATEGY_2"
	StateStrategy3       State = "STRATEGY_3"
	StateFailedTab       State = "FAILED_TAB"
	StateOpened          State = "OPENED"
)

// Default timings. They are tunable, not contractual.
var (
	DefaultVerifyDelay = 500 * time.Millisecond
	DefaultMoveDelays  = []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		600 * time.Millisecond,
		1200 * time.Millisecond,
	}
)

// Options configures an Engine.
type Options struct {
	DashboardURL string
	VerifyDelay  time.Duration
	MoveDelays   []time.Duration
	Scheduler    *Scheduler
	Cycler       *tiling.Cycler
}

// Engine runs one independent state machine per Place call. Calls may run
// concurrently; they share only the slot cycler.
type Engine struct {
	host  platform.WindowHost
	opts  Options
	sched *Scheduler
}

// NewEngine creates an engine that opens windows through host.
func NewEngine(host platform.WindowHost, opts Options) *Engine {
	if opts.VerifyDelay <= 0 {
		opts.VerifyDelay = DefaultVerifyDelay
	}
	if len(opts.MoveDelays) == 0 {
		opts.MoveDelays = DefaultMoveDelays
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler(nil)
	}
	if opts.Cycler == nil {
		opts.Cycler = tiling.NewCycler()
	}
	return &Engine{host: host, opts: opts, sched: opts.Scheduler}
}

// Placement is the input of one Place call: the request, the resolved target
// screen (nil when none resolved) and how many screens are currently known.
type Placement struct {
	Request     Request
	Target      *screens.Screen
	ScreenCount int
}

// Result describes how a request ended.
type Result struct {
	URL        string
	WindowName string
	// State is OPENED, SINGLE_SCREEN_TAB or FAILED_TAB.
	State    State
	Strategy int
	// Window is set only when State is OPENED.
	Window platform.Window
	// Bounds is the rectangle the strategies aimed for.
	Bounds *platform.Rect
	Trail  []State
}

// Tab reports whether the view was opened without positioning.
func (r Result) Tab() bool {
	return r.State == StateSingleScreenTab || r.State == StateFailedTab
}

// Place opens the requested view. It returns an error only for invalid
// requests or when even the plain tab could not be opened.
func (e *Engine) Place(ctx context.Context, p Placement) (Result, error) {
	req := p.Request
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	target, err := req.URL(e.opts.DashboardURL)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		URL:        target,
		WindowName: req.WindowName(),
		Trail:      []State{StateNoTarget},
	}

	if p.ScreenCount < 2 || p.Target == nil {
		logger.Debugf(ctx, "no target screen for %s (screens=%d), opening tab", res.WindowName, p.ScreenCount)
		return e.openTab(ctx, res, StateSingleScreenTab)
	}

	bounds := e.targetBounds(ctx, *p.Target, req.Layout)
	res.Bounds = &bounds
	logger.Infof(ctx, "placing %s on %v at %dx%d+%d+%d",
		res.WindowName, *p.Target, bounds.Width, bounds.Height, bounds.X, bounds.Y)

	strategies := []struct {
		state State
		run   func(context.Context, Result, platform.Rect) platform.Window
	}{
		{StateStrategy1, e.directPositioning},
		{StateStrategy2, e.openThenMove},
		{StateStrategy3, e.forceFocus},
	}
	for i, s := range strategies {
		res.Trail = append(res.Trail, s.state)
		w := s.run(ctx, res, bounds)
		if live(w) {
			res.State = StateOpened
			res.Strategy = i + 1
			res.Window = w
			res.Trail = append(res.Trail, StateOpened)
			logger.Infof(ctx, "opened %s with strategy %d", res.WindowName, res.Strategy)
			return res, nil
		}
		logger.Debugf(ctx, "strategy %d did not yield a live window for %s", i+1, res.WindowName)
	}

	logger.Warnf(ctx, "every placement strategy failed for %s, opening tab", res.WindowName)
	return e.openTab(ctx, res, StateFailedTab)
}

func (e *Engine) targetBounds(ctx context.Context, screen screens.Screen, layout *tiling.Options) platform.Rect {
	rect, err := tiling.Resolve(tiling.Rect(screen.Bounds()), layout, e.opts.Cycler)
	if err != nil {
		logger.Warnf(ctx, "layout does not fit %v, using default size: %v", screen, err)
		rect = tiling.TargetRect(tiling.Rect(screen.Bounds()))
	}
	return platform.Rect(rect)
}

func (e *Engine) openTab(ctx context.Context, res Result, state State) (Result, error) {
	res.Trail = append(res.Trail, state)
	res.State = state
	if err := e.host.OpenTab(ctx, res.URL); err != nil {
		return res, fmt.Errorf("unable to open %s: %w", res.URL, err)
	}
	return res, nil
}

// directPositioning opens the window at its final geometry and checks later
// where the host actually put it.
func (e *Engine) directPositioning(ctx context.Context, res Result, bounds platform.Rect) platform.Window {
	w := e.open(ctx, res, &bounds)
	if !live(w) {
		return nil
	}
	e.sched.Schedule(ctx, Task{
		Name:   "verify " + res.WindowName,
		Delay:  e.opts.VerifyDelay,
		Window: w,
		Target: bounds,
		Run:    verifyPosition,
	})
	return w
}

// openThenMove opens the window without a hint and repositions it once the
// host is willing to honor moves. The first successful move cancels the rest.
func (e *Engine) openThenMove(ctx context.Context, res Result, bounds platform.Rect) platform.Window {
	w := e.open(ctx, res, nil)
	if !live(w) {
		return nil
	}

	var (
		mu    sync.Mutex
		moved bool
	)
	for i, delay := range e.opts.MoveDelays {
		e.sched.Schedule(ctx, Task{
			Name:    "move " + res.WindowName,
			Delay:   delay,
			Window:  w,
			Target:  bounds,
			Attempt: i + 1,
			Run: func(ctx context.Context, t Task) {
				mu.Lock()
				defer mu.Unlock()
				if moved {
					return
				}
				if err := t.Window.MoveResize(ctx, t.Target); err != nil {
					logger.Debugf(ctx, "%s attempt %d failed: %v", t.Name, t.Attempt, err)
					return
				}
				logger.Debugf(ctx, "%s succeeded on attempt %d", t.Name, t.Attempt)
				moved = true
			},
		})
	}
	return w
}

// forceFocus retries the positioned open once and raises the window.
func (e *Engine) forceFocus(ctx context.Context, res Result, bounds platform.Rect) platform.Window {
	w := e.open(ctx, res, &bounds)
	if !live(w) {
		return nil
	}
	if err := w.Focus(ctx); err != nil {
		logger.Debugf(ctx, "focus %s: %v", res.WindowName, err)
	}
	return w
}

func (e *Engine) open(ctx context.Context, res Result, bounds *platform.Rect) platform.Window {
	w, err := e.host.Open(ctx, platform.OpenRequest{
		URL:      res.URL,
		Name:     res.WindowName,
		Bounds:   bounds,
		Features: platform.PopupFeatures(),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debugf(ctx, "open %s cancelled", res.WindowName)
		} else {
			logger.Debugf(ctx, "open %s: %v", res.WindowName, err)
		}
		return nil
	}
	return w
}

func verifyPosition(ctx context.Context, t Task) {
	got, err := t.Window.Bounds(ctx)
	if err != nil {
		logger.Debugf(ctx, "%s: unable to read bounds: %v", t.Name, err)
		return
	}
	if got.X != t.Target.X || got.Y != t.Target.Y {
		logger.Infof(ctx, "%s: host placed window at %d,%d instead of %d,%d",
			t.Name, got.X, got.Y, t.Target.X, t.Target.Y)
		return
	}
	logger.Debugf(ctx, "%s: window at requested position", t.Name)
}

func live(w platform.Window) bool {
	return w != nil && !w.Closed()
}
