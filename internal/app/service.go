package app

import (
	"context"
	"fmt"

	"github.com/1broseidon/popdeck/internal/channel"
	"github.com/1broseidon/popdeck/internal/coordinator"
	"github.com/1broseidon/popdeck/internal/ipc"
	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/rolestore"
	"github.com/1broseidon/popdeck/internal/tiling"
)

var _ ipc.Service = (*App)(nil)

// Status implements ipc.Service.
func (a *App) Status(ctx context.Context) ipc.StatusData {
	st := a.Coordinator.Status(ctx)
	return ipc.StatusData{
		State:          string(st.State),
		DeviceID:       st.DeviceID,
		SessionID:      st.SessionID,
		Ephemeral:      a.Identity.Ephemeral(),
		Capability:     a.Detector.Capability().String(),
		Theme:          string(a.Themes.Current()),
		Layout:         describeLayout(a.Layouts.Default(ctx)),
		TrackedWindows: a.Themes.Tracked(),
		Screens:        screenInfos(st.Screens),
	}
}

// Screens implements ipc.Service.
func (a *App) Screens(ctx context.Context) ipc.ScreensData {
	st := a.Coordinator.Status(ctx)
	return ipc.ScreensData{Screens: screenInfos(st.Screens), Current: st.Current}
}

// PopOut implements ipc.Service.
func (a *App) PopOut(ctx context.Context, p ipc.PopOutPayload) (ipc.PopOutData, error) {
	viewType, err := placement.ParseViewType(p.Type)
	if err != nil {
		return ipc.PopOutData{}, err
	}
	res, err := a.Coordinator.PopOut(ctx, placement.Request{
		ViewType: viewType,
		EntityID: p.ID,
		Layout:   p.Layout,
	})
	if err != nil {
		return ipc.PopOutData{}, err
	}
	return ipc.PopOutData{
		URL:        res.URL,
		WindowName: res.WindowName,
		State:      string(res.State),
		Strategy:   res.Strategy,
		Tab:        res.Tab(),
		Bounds:     res.Bounds,
	}, nil
}

// AssignRoles implements ipc.Service.
func (a *App) AssignRoles(ctx context.Context, roles map[int]string) error {
	choices := make(map[int]rolestore.Role, len(roles))
	for id, raw := range roles {
		role, err := rolestore.ParseRole(raw)
		if err != nil {
			return fmt.Errorf("screen %d: %w", id, err)
		}
		choices[id] = role
	}
	return a.Coordinator.CompleteAssignment(ctx, choices)
}

// SetTheme implements ipc.Service.
func (a *App) SetTheme(ctx context.Context, theme string) (ipc.ThemeData, error) {
	t, err := channel.ParseTheme(theme)
	if err != nil {
		return ipc.ThemeData{}, err
	}
	changed, err := a.Themes.Set(ctx, t, "")
	if err != nil {
		return ipc.ThemeData{}, err
	}
	return ipc.ThemeData{Theme: string(a.Themes.Current()), Changed: changed}, nil
}

// SetLayout implements ipc.Service.
func (a *App) SetLayout(_ context.Context, req ipc.SetLayoutPayload) error {
	if req.Clear {
		return a.Layouts.Clear()
	}
	if req.Layout == nil {
		return fmt.Errorf("layout is required")
	}
	return a.Layouts.Set(*req.Layout)
}

// Refresh implements ipc.Service.
func (a *App) Refresh(ctx context.Context) (ipc.RefreshData, error) {
	state, err := a.Coordinator.Refresh(ctx)
	return ipc.RefreshData{State: string(state)}, err
}

func screenInfos(list []coordinator.ScreenStatus) []ipc.ScreenInfo {
	out := make([]ipc.ScreenInfo, len(list))
	for i, s := range list {
		out[i] = ipc.ScreenInfo{
			ID:      s.ID,
			Name:    s.Name,
			Left:    s.Left,
			Top:     s.Top,
			Width:   s.Width,
			Height:  s.Height,
			Primary: s.IsPrimary,
			Scale:   s.DevicePixelRatio,
			Role:    string(s.Role),
		}
	}
	return out
}

func describeLayout(opts *tiling.Options) string {
	if opts.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s/%d+%dpx", opts.Mode, opts.TotalSlots, opts.PaddingPx)
}
