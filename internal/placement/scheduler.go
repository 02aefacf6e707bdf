package placement

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/platform"
)

// Task is a deferred action on a window. The scheduler hands the task back to
// Run unchanged, so Run works on the values captured at scheduling time.
type Task struct {
	Name    string
	Delay   time.Duration
	Window  platform.Window
	Target  platform.Rect
	Attempt int
	Run     func(ctx context.Context, t Task)
}

// Scheduler runs deferred tasks on a clock. A task whose window has closed
// by the time it fires is dropped.
type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	seq     uint64
	timers  map[uint64]*clock.Timer
	stopped bool
}

// NewScheduler creates a scheduler; a nil clock means wall time.
func NewScheduler(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.New()
	}
	return &Scheduler{
		clock:  c,
		timers: make(map[uint64]*clock.Timer),
	}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// Schedule arranges for t to run after t.Delay. Tasks without delay run
// before Schedule returns. The context's cancellation is not inherited.
func (s *Scheduler) Schedule(ctx context.Context, t Task) bool {
	ctx = context.WithoutCancel(ctx)

	if t.Delay <= 0 {
		s.fire(ctx, t)
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	id := s.seq
	s.seq++
	s.timers[id] = s.clock.AfterFunc(t.Delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			s.fire(ctx, t)
		}
	})
	return true
}

func (s *Scheduler) fire(ctx context.Context, t Task) {
	if t.Window == nil || t.Window.Closed() {
		logger.Debugf(ctx, "skipping %s: window is gone", t.Name)
		return
	}
	t.Run(ctx, t)
}

// Pending returns the number of tasks that have not fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending task and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
