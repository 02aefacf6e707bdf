package mcp

import (
	"context"
	"errors"
	"sort"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/ipc"
	"github.com/1broseidon/popdeck/internal/tiling"
)

type fakeDaemon struct {
	roles   map[int]string
	popouts []ipc.PopOutPayload
	err     error
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.err != nil {
		return nil, f.err
	}
	state := "AWAITING_ASSIGNMENT"
	if f.roles != nil {
		state = "READY"
	}
	return &ipc.StatusData{State: state, Theme: "dark", DaemonRunning: true}, nil
}

func (f *fakeDaemon) GetScreens() (*ipc.ScreensData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.ScreensData{Screens: []ipc.ScreenInfo{{ID: 0, Width: 1920, Height: 1080, Primary: true, Role: "general"}}}, nil
}

func (f *fakeDaemon) PopOut(req ipc.PopOutPayload) (*ipc.PopOutData, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.popouts = append(f.popouts, req)
	return &ipc.PopOutData{WindowName: req.Type + "-dashboard", State: "SINGLE_SCREEN_TAB", Tab: true}, nil
}

func (f *fakeDaemon) AssignRoles(roles map[int]string) error {
	if f.err != nil {
		return f.err
	}
	f.roles = roles
	return nil
}

func (f *fakeDaemon) SetTheme(theme string) (*ipc.ThemeData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.ThemeData{Theme: theme, Changed: true}, nil
}

func TestHandlePopOutView_BuildsLayout(t *testing.T) {
	d := &fakeDaemon{}
	s := NewServer(d)
	slot := 2

	_, out, err := s.handlePopOutView(context.Background(), nil, PopOutViewInput{
		Type: "metrics", Layout: "grid", TotalSlots: 4, SlotIndex: &slot, PaddingPx: 6,
	})
	require.NoError(t, err)
	require.True(t, out.Tab)
	require.Len(t, d.popouts, 1)
	require.Equal(t, &tiling.Options{Mode: tiling.ModeGrid, TotalSlots: 4, SlotIndex: &slot, PaddingPx: 6}, d.popouts[0].Layout)

	_, _, err = s.handlePopOutView(context.Background(), nil, PopOutViewInput{Type: "metrics", Layout: "grid"})
	require.Error(t, err, "grid without slots must be rejected before reaching the daemon")
	_, _, err = s.handlePopOutView(context.Background(), nil, PopOutViewInput{})
	require.Error(t, err)
	require.Len(t, d.popouts, 1)
}

func TestHandleAssignScreenRoles(t *testing.T) {
	d := &fakeDaemon{}
	s := NewServer(d)

	_, out, err := s.handleAssignScreenRoles(context.Background(), nil, AssignScreenRolesInput{Roles: []RoleChoice{
		{ScreenID: 0, Role: "General"},
		{ScreenID: 1, Role: "detailed"},
	}})
	require.NoError(t, err)
	require.Equal(t, "READY", out.State)
	require.Equal(t, map[int]string{0: "general", 1: "detailed"}, d.roles)

	_, _, err = s.handleAssignScreenRoles(context.Background(), nil, AssignScreenRolesInput{Roles: []RoleChoice{
		{ScreenID: 0, Role: "general"},
		{ScreenID: 0, Role: "detailed"},
	}})
	require.ErrorContains(t, err, "listed twice")

	_, _, err = s.handleAssignScreenRoles(context.Background(), nil, AssignScreenRolesInput{})
	require.ErrorContains(t, err, "roles are required")
}

func TestHandlers_PropagateDaemonErrors(t *testing.T) {
	s := NewServer(&fakeDaemon{err: errors.New("failed to connect to daemon")})
	ctx := context.Background()

	_, _, err := s.handleListScreens(ctx, nil, ListScreensInput{})
	require.ErrorContains(t, err, "failed to connect")
	_, _, err = s.handleGetStatus(ctx, nil, GetStatusInput{})
	require.Error(t, err)
	_, _, err = s.handleSetTheme(ctx, nil, SetThemeInput{Theme: "dark"})
	require.Error(t, err)
}

func TestServer_ListsToolsOverTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(&fakeDaemon{})
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	require.Equal(t, []string{"assign_screen_roles", "get_status", "list_screens", "pop_out_view", "set_theme"}, names)

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "set_theme",
		Arguments: map[string]any{"theme": "dark"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
}
