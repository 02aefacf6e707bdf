package channel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/events"
	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/storage"
)

// Theme is a UI color scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ParseTheme validates s.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return "", fmt.Errorf("invalid theme %q: must be light, dark, or system", s)
	}
}

// ThemeSync holds the current theme and fans changes out to every tracked
// window and to bus subscribers. Setting the current theme again does
// nothing, so a window echoing a change back cannot start a loop.
type ThemeSync struct {
	kv    storage.KV
	bus   *events.Bus
	clock clock.Clock

	mu      sync.Mutex
	current Theme
	windows map[string]platform.Window
}

// NewThemeSync loads the stored theme, falling back to def.
func NewThemeSync(ctx context.Context, kv storage.KV, bus *events.Bus, c clock.Clock, def Theme) *ThemeSync {
	if c == nil {
		c = clock.New()
	}
	if def == "" {
		def = ThemeSystem
	}
	current := def
	if kv != nil {
		if stored, ok, err := kv.Get(storage.KeyTheme); err != nil {
			logger.Warnf(ctx, "unable to read stored theme: %v", err)
		} else if ok {
			if t, err := ParseTheme(stored); err == nil {
				current = t
			}
		}
	}
	return &ThemeSync{
		kv:      kv,
		bus:     bus,
		clock:   c,
		current: current,
		windows: make(map[string]platform.Window),
	}
}

// Current returns the active theme.
func (s *ThemeSync) Current() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Track adds a window to the broadcast set, replacing any window of the same name.
func (s *ThemeSync) Track(w platform.Window) {
	s.mu.Lock()
	s.windows[w.Name()] = w
	s.mu.Unlock()
}

// Untrack removes w from the broadcast set unless it was already replaced by
// a newer window of the same name.
func (s *ThemeSync) Untrack(w platform.Window) {
	s.mu.Lock()
	if cur, ok := s.windows[w.Name()]; ok && cur == w {
		delete(s.windows, w.Name())
	}
	s.mu.Unlock()
}

// IsTracked reports whether a window named name is in the broadcast set.
func (s *ThemeSync) IsTracked(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[name]
	return ok
}

// Tracked returns the names of tracked windows.
func (s *ThemeSync) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.windows))
	for name := range s.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set applies theme. origin names the window the change came from and is
// skipped when broadcasting; empty means the main application. It reports
// whether the theme changed.
func (s *ThemeSync) Set(ctx context.Context, theme Theme, origin string) (bool, error) {
	theme, err := ParseTheme(string(theme))
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if theme == s.current {
		s.mu.Unlock()
		logger.Debugf(ctx, "theme already %s, ignoring", theme)
		return false, nil
	}
	s.current = theme
	targets := s.openWindowsLocked(origin)
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Set(storage.KeyTheme, string(theme)); err != nil {
			logger.Warnf(ctx, "unable to persist theme: %v", err)
		}
	}

	msg, err := NewMessage(TypeThemeChange, ThemePayload{Theme: theme}, s.clock.Now())
	if err != nil {
		return true, err
	}
	data, err := encode(msg)
	if err != nil {
		return true, err
	}
	post(ctx, targets, data)

	events.Publish(ctx, s.bus, events.TopicThemeChanged, events.ThemeChanged{Theme: string(theme), Origin: origin})
	logger.Infof(ctx, "theme set to %s (%d window(s) notified)", theme, len(targets))
	return true, nil
}

// openWindowsLocked drops closed windows and returns the rest, minus skip.
func (s *ThemeSync) openWindowsLocked(skip string) []platform.Window {
	out := make([]platform.Window, 0, len(s.windows))
	for name, w := range s.windows {
		if w.Closed() {
			delete(s.windows, name)
			continue
		}
		if name != skip {
			out = append(out, w)
		}
	}
	return out
}

// broadcast posts data to every open tracked window and returns how many
// accepted it.
func (s *ThemeSync) broadcast(ctx context.Context, data []byte) int {
	s.mu.Lock()
	targets := s.openWindowsLocked("")
	s.mu.Unlock()
	return post(ctx, targets, data)
}

func post(ctx context.Context, targets []platform.Window, data []byte) int {
	n := 0
	for _, w := range targets {
		if err := w.PostMessage(ctx, data); err != nil {
			logger.Debugf(ctx, "broadcast to %s failed: %v", w.Name(), err)
			continue
		}
		n++
	}
	return n
}

// SetThemeFrom applies a theme reported by the window named window.
func (s *ThemeSync) SetThemeFrom(ctx context.Context, theme, window string) (bool, error) {
	return s.Set(ctx, Theme(theme), window)
}
