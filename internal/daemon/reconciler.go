package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/coordinator"
	"github.com/1broseidon/popdeck/internal/screens"
)

// ScreenSource reports the screens currently attached.
type ScreenSource interface {
	Detect(ctx context.Context) []screens.Screen
}

// Target is the state the reconciler keeps in step with the displays.
type Target interface {
	State() coordinator.State
	Screens() []screens.Screen
	Refresh(ctx context.Context) (coordinator.State, error)
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Clock    clock.Clock
}

// Reconciler periodically re-detects displays and refreshes the coordinator
// when the attached screens change.
type Reconciler struct {
	interval time.Duration
	clock    clock.Clock
	source   ScreenSource
	target   Target

	mu sync.Mutex
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, source ScreenSource, target Target) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Reconciler{
		interval: interval,
		clock:    clk,
		source:   source,
		target:   target,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	logger.Debugf(ctx, "display watcher started, interval %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "display watcher stopped")
			return
		case <-ticker.C:
			r.ReconcileNow(ctx)
		}
	}
}

// ReconcileNow performs a single pass and reports whether a refresh ran.
func (r *Reconciler) ReconcileNow(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if err := recover(); err != nil {
			logger.Errorf(ctx, "display watcher panic recovered: %v", err)
		}
	}()

	// Nothing to keep in step until the first pop-out or initialization.
	switch r.target.State() {
	case coordinator.StateUninitialized, coordinator.StateDetecting:
		return false
	}

	known := r.target.Screens()
	current := r.source.Detect(ctx)
	if sameScreens(known, current) {
		return false
	}

	logger.Infof(ctx, "display layout changed (%d -> %d screens), refreshing", len(known), len(current))
	state, err := r.target.Refresh(ctx)
	if err != nil {
		logger.Warnf(ctx, "refresh after display change: %v", err)
	}
	logger.Debugf(ctx, "coordinator state after refresh: %s", state)
	return true
}

func sameScreens(a, b []screens.Screen) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].SameDisplay(b[i]) {
			return false
		}
	}
	return true
}
