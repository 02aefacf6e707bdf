package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/config"
	"github.com/1broseidon/popdeck/internal/coordinator"
	"github.com/1broseidon/popdeck/internal/ipc"
	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/platform/fakeplatform"
	"github.com/1broseidon/popdeck/internal/rolestore"
	"github.com/1broseidon/popdeck/internal/storage"
	"github.com/1broseidon/popdeck/internal/tiling"
)

type fixture struct {
	app      *App
	host     *fakeplatform.Host
	displays *fakeplatform.Displays
	kv       *storage.MemoryStore
}

func newFixture(t *testing.T, rects ...platform.Rect) *fixture {
	t.Helper()
	t.Setenv(config.TokenEnv, "")

	store := rolestore.NewStore()
	srv := httptest.NewServer(rolestore.NewServer(context.Background(), store, []string{"t0k"}).Handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.RoleStore.URL = srv.URL + "/api"
	cfg.RoleStore.Token = "t0k"

	f := &fixture{
		host:     &fakeplatform.Host{},
		displays: fakeplatform.NewDisplays(rects...),
		kv:       storage.NewMemoryStore(),
	}
	capability := platform.Supported(f.displays)
	a, err := New(context.Background(), cfg, Overrides{
		Host:       f.host,
		Capability: &capability,
		KV:         f.kv,
		Clock:      clock.NewMock(),
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	f.app = a
	return f
}

func TestApp_AssignAndPopOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		platform.Rect{Width: 1920, Height: 1080},
		platform.Rect{X: 1920, Width: 1920, Height: 1080},
	)

	state, err := f.app.Coordinator.Initialize(ctx)
	require.NoError(t, err)
	require.Equal(t, coordinator.StateAwaitingAssignment, state)

	status := f.app.Status(ctx)
	require.Equal(t, "AWAITING_ASSIGNMENT", status.State)
	require.Len(t, status.Screens, 2)
	require.Equal(t, "unassigned", status.Screens[1].Role)
	require.NotEmpty(t, status.DeviceID)

	require.Error(t, f.app.AssignRoles(ctx, map[int]string{0: "general", 1: "primary"}))
	require.NoError(t, f.app.AssignRoles(ctx, map[int]string{0: "general", 1: "detailed"}))
	require.Equal(t, "READY", f.app.Status(ctx).State)

	data, err := f.app.PopOut(ctx, ipc.PopOutPayload{Type: "alerts"})
	require.NoError(t, err)
	require.Equal(t, "OPENED", data.State)
	require.False(t, data.Tab)
	require.Equal(t, &platform.Rect{X: 2112, Y: 108, Width: 1536, Height: 864}, data.Bounds)
	require.Equal(t, []string{"alerts-dashboard"}, f.app.Status(ctx).TrackedWindows)

	_, err = f.app.PopOut(ctx, ipc.PopOutPayload{Type: "weather"})
	require.Error(t, err)
}

func TestApp_SingleScreenOpensTab(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, platform.Rect{Width: 2560, Height: 1440})

	data, err := f.app.PopOut(ctx, ipc.PopOutPayload{Type: "flight", ID: "DL42"})
	require.NoError(t, err)
	require.True(t, data.Tab)
	require.Equal(t, "SINGLE_SCREEN_TAB", data.State)
	require.Equal(t, "READY", f.app.Status(ctx).State)
	require.Len(t, f.host.Tabs(), 1)
}

func TestApp_ThemeAndLayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, platform.Rect{Width: 1920, Height: 1080})

	theme, err := f.app.SetTheme(ctx, "dark")
	require.NoError(t, err)
	require.True(t, theme.Changed)
	stored, ok, err := f.kv.Get(storage.KeyTheme)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "dark", stored)

	_, err = f.app.SetTheme(ctx, "sepia")
	require.Error(t, err)

	require.NoError(t, f.app.SetLayout(ctx, ipc.SetLayoutPayload{Layout: &tiling.Options{Mode: tiling.ModeRows, TotalSlots: 2}}))
	require.Equal(t, "rows/2+0px", f.app.Status(ctx).Layout)
	require.NoError(t, f.app.SetLayout(ctx, ipc.SetLayoutPayload{Clear: true}))
	require.Empty(t, f.app.Status(ctx).Layout)
}

func TestApp_ClosedWindowDropsMailbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, platform.Rect{Width: 1920, Height: 1080})

	require.NoError(t, f.app.Mailbox.Post("metrics-dashboard", []byte(`{"type":"THEME_CHANGE","payload":{"theme":"dark"},"timestamp":1}`)))

	srv := httptest.NewServer(f.app.Relay.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/relay/metrics-dashboard")
	require.NoError(t, err)
	var body struct {
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Len(t, body.Messages, 1)

	f.app.windowClosed(ctx, "metrics-dashboard")
	require.Empty(t, f.app.Mailbox.Messages("metrics-dashboard"))
}
