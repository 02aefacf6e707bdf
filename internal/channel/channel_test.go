package channel

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/events"
	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/platform/fakeplatform"
	"github.com/1broseidon/popdeck/internal/storage"
)

func decodeAll(t *testing.T, raw [][]byte) []Message {
	t.Helper()
	out := make([]Message, len(raw))
	for i, b := range raw {
		require.NoError(t, json.Unmarshal(b, &out[i]))
	}
	return out
}

func newTestSender(t *testing.T, opts SenderOptions) (*Sender, *ThemeSync, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	themes := NewThemeSync(context.Background(), storage.NewMemoryStore(), events.NewBus(), mock, ThemeDark)
	s := NewSender(placement.NewScheduler(mock), themes, opts)
	t.Cleanup(s.Close)
	return s, themes, mock
}

func TestSendToWindow_ResendsAtFixedDelays(t *testing.T) {
	s, _, mock := newTestSender(t, SenderOptions{})
	w := fakeplatform.NewWindow("alerts-dashboard")

	data := ViewData{ViewType: "alerts", ScreenInfo: ScreenInfo{CurrentScreen: 0, TotalScreens: 2, TargetScreen: 1}}
	require.NoError(t, s.SendToWindow(context.Background(), w, data))

	msgs := decodeAll(t, w.Messages())
	require.Len(t, msgs, 2, "first delivery is immediate")
	require.Equal(t, TypeDetailedViewData, msgs[0].Type)
	require.Equal(t, TypeThemeChange, msgs[1].Type)

	var got ViewData
	require.NoError(t, msgs[0].Decode(&got))
	require.Equal(t, data, got)

	var theme ThemePayload
	require.NoError(t, msgs[1].Decode(&theme))
	require.Equal(t, ThemeDark, theme.Theme)

	mock.Add(500 * time.Millisecond)
	require.Eventually(t, func() bool { return len(w.Messages()) == 4 }, time.Second, 5*time.Millisecond)

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return len(w.Messages()) == 6 }, time.Second, 5*time.Millisecond)

	// Every resend carries the same payload.
	all := decodeAll(t, w.Messages())
	require.Equal(t, all[0], all[2])
	require.Equal(t, all[0], all[4])
}

func TestSendToWindow_SkipsResendsAfterClose(t *testing.T) {
	s, _, mock := newTestSender(t, SenderOptions{})
	w := fakeplatform.NewWindow("metrics-dashboard")

	require.NoError(t, s.SendToWindow(context.Background(), w, ViewData{ViewType: "metrics"}))
	w.SetClosed()

	mock.Add(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	require.Len(t, w.Messages(), 2)
}

func TestWatch_ReportsClosedWindowOnce(t *testing.T) {
	var closed atomic.Int32
	s, themes, mock := newTestSender(t, SenderOptions{
		OnClosed: func(_ context.Context, name string) {
			if name == "flight-AA1" {
				closed.Add(1)
			}
		},
	})
	w := fakeplatform.NewWindow("flight-AA1")
	require.NoError(t, s.SendToWindow(context.Background(), w, ViewData{ViewType: "flight", ID: "AA1"}))
	require.True(t, themes.IsTracked("flight-AA1"))

	mock.Add(3 * time.Second)
	require.Zero(t, closed.Load())

	w.SetClosed()
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return closed.Load() == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, themes.IsTracked("flight-AA1"))

	mock.Add(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), closed.Load())
}

func TestThemeSync_EqualThemeIsNoOp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := storage.NewMemoryStore()
	bus := events.NewBus()
	sub, err := events.Subscribe[events.ThemeChanged](ctx, bus, events.TopicThemeChanged)
	require.NoError(t, err)

	themes := NewThemeSync(ctx, kv, bus, clock.NewMock(), ThemeLight)
	w := fakeplatform.NewWindow("alerts-dashboard")
	themes.Track(w)

	changed, err := themes.Set(ctx, ThemeLight, "")
	require.NoError(t, err)
	require.False(t, changed)
	require.Empty(t, w.Messages())
	_, stored, _ := kv.Get(storage.KeyTheme)
	require.False(t, stored)

	select {
	case ev := <-sub:
		t.Fatalf("unexpected theme event %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestThemeSync_BroadcastsChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := storage.NewMemoryStore()
	bus := events.NewBus()
	sub, err := events.Subscribe[events.ThemeChanged](ctx, bus, events.TopicThemeChanged)
	require.NoError(t, err)

	themes := NewThemeSync(ctx, kv, bus, clock.NewMock(), ThemeLight)
	alerts := fakeplatform.NewWindow("alerts-dashboard")
	metrics := fakeplatform.NewWindow("metrics-dashboard")
	gone := fakeplatform.NewWindow("operations-dashboard")
	gone.SetClosed()
	for _, w := range []*fakeplatform.Window{alerts, metrics, gone} {
		themes.Track(w)
	}

	changed, err := themes.Set(ctx, ThemeDark, "alerts-dashboard")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, ThemeDark, themes.Current())

	require.Empty(t, alerts.Messages(), "origin window already has the theme")
	msgs := decodeAll(t, metrics.Messages())
	require.Len(t, msgs, 1)
	require.Equal(t, TypeThemeChange, msgs[0].Type)
	require.False(t, themes.IsTracked("operations-dashboard"))

	stored, ok, err := kv.Get(storage.KeyTheme)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "dark", stored)

	select {
	case ev := <-sub:
		require.Equal(t, events.ThemeChanged{Theme: "dark", Origin: "alerts-dashboard"}, ev)
	case <-time.After(time.Second):
		t.Fatal("theme event not published")
	}

	// Echo from another window does not re-broadcast.
	changed, err = themes.Set(ctx, ThemeDark, "metrics-dashboard")
	require.NoError(t, err)
	require.False(t, changed)
	require.Len(t, metrics.Messages(), 1)
}

func TestThemeSync_LoadsStoredTheme(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(storage.KeyTheme, "dark"))

	themes := NewThemeSync(context.Background(), kv, nil, nil, ThemeLight)
	require.Equal(t, ThemeDark, themes.Current())

	_, err := themes.Set(context.Background(), "sepia", "")
	require.Error(t, err)
}

func TestShowRoleAssignment_ReachesOpenWindows(t *testing.T) {
	s, themes, _ := newTestSender(t, SenderOptions{})
	open := fakeplatform.NewWindow("metrics-dashboard")
	gone := fakeplatform.NewWindow("flight-AA1")
	gone.SetClosed()
	themes.Track(open)
	themes.Track(gone)

	n := s.ShowRoleAssignment(context.Background(), []int{0, 1, 2}, "Assign a role to each screen")
	require.Equal(t, 1, n)
	require.Empty(t, gone.Messages())

	msgs := decodeAll(t, open.Messages())
	require.Len(t, msgs, 1)
	require.Equal(t, TypeShowRoleAssignment, msgs[0].Type)
	var payload RoleAssignmentPayload
	require.NoError(t, msgs[0].Decode(&payload))
	require.Equal(t, []int{0, 1, 2}, payload.ScreenIDs)
	require.Equal(t, "Assign a role to each screen", payload.Message)
}
