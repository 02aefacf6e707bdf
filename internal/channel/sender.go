package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/platform"
)

// Default timings. They are tunable, not contractual.
var (
	DefaultResendDelays = []time.Duration{0, 500 * time.Millisecond, 1500 * time.Millisecond}
	DefaultPollInterval = time.Second
)

// SenderOptions configures a Sender.
type SenderOptions struct {
	ResendDelays []time.Duration
	PollInterval time.Duration
	// OnClosed runs once for each window the liveness poll sees closed.
	OnClosed func(ctx context.Context, name string)
}

// Sender posts view data to freshly opened windows. The receiving page may
// not be ready for the first delivery, so the same payload is resent a few
// times; receivers keep the last message, so duplicates are harmless.
type Sender struct {
	sched  *placement.Scheduler
	themes *ThemeSync
	opts   SenderOptions

	done      chan struct{}
	closeOnce sync.Once
}

// NewSender creates a sender whose deferred work runs on sched.
func NewSender(sched *placement.Scheduler, themes *ThemeSync, opts SenderOptions) *Sender {
	if len(opts.ResendDelays) == 0 {
		opts.ResendDelays = DefaultResendDelays
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Sender{
		sched:  sched,
		themes: themes,
		opts:   opts,
		done:   make(chan struct{}),
	}
}

// Close stops every liveness poll.
func (s *Sender) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// SendToWindow delivers data and the current theme to w at every resend
// delay, then watches w until it closes.
func (s *Sender) SendToWindow(ctx context.Context, w platform.Window, data ViewData) error {
	if w == nil {
		return fmt.Errorf("no window to send to")
	}
	now := s.sched.Clock().Now()

	view, err := NewMessage(TypeDetailedViewData, data, now)
	if err != nil {
		return err
	}
	theme, err := NewMessage(TypeThemeChange, ThemePayload{Theme: s.themes.Current()}, now)
	if err != nil {
		return err
	}
	batch := make([][]byte, 0, 2)
	for _, m := range []Message{view, theme} {
		b, err := encode(m)
		if err != nil {
			return err
		}
		batch = append(batch, b)
	}

	s.themes.Track(w)
	for i, delay := range s.opts.ResendDelays {
		s.sched.Schedule(ctx, placement.Task{
			Name:    "send to " + w.Name(),
			Delay:   delay,
			Window:  w,
			Attempt: i + 1,
			Run: func(ctx context.Context, t placement.Task) {
				for _, b := range batch {
					if err := t.Window.PostMessage(ctx, b); err != nil {
						logger.Debugf(ctx, "%s (attempt %d) failed: %v", t.Name, t.Attempt, err)
						return
					}
				}
			},
		})
	}

	s.Watch(ctx, w)
	return nil
}

// Post delivers one message to w immediately.
func (s *Sender) Post(ctx context.Context, w platform.Window, t MessageType, payload any) error {
	msg, err := NewMessage(t, payload, s.sched.Clock().Now())
	if err != nil {
		return err
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}
	return w.PostMessage(ctx, data)
}

// ShowRoleAssignment asks every open window to show the screen role picker
// and returns how many windows were reached.
func (s *Sender) ShowRoleAssignment(ctx context.Context, screenIDs []int, message string) int {
	msg, err := NewMessage(TypeShowRoleAssignment, RoleAssignmentPayload{ScreenIDs: screenIDs, Message: message}, s.sched.Clock().Now())
	if err != nil {
		logger.Warnf(ctx, "unable to build role assignment message: %v", err)
		return 0
	}
	data, err := encode(msg)
	if err != nil {
		logger.Warnf(ctx, "unable to encode role assignment message: %v", err)
		return 0
	}
	return s.themes.broadcast(ctx, data)
}

// Watch polls w's closed state until it closes, then untracks it and runs
// OnClosed. There is no close event to wait on.
func (s *Sender) Watch(ctx context.Context, w platform.Window) {
	ctx = context.WithoutCancel(ctx)
	ticker := s.sched.Clock().Ticker(s.opts.PollInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
			if !w.Closed() {
				continue
			}
			logger.Debugf(ctx, "window %s closed, cleaning up", w.Name())
			s.themes.Untrack(w)
			if s.opts.OnClosed != nil {
				s.opts.OnClosed(ctx, w.Name())
			}
			return
		}
	}()
}

func encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Type, err)
	}
	return data, nil
}
