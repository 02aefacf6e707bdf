package coordinator

import (
	"context"
	"sort"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/channel"
	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/rolestore"
	"github.com/1broseidon/popdeck/internal/screens"
)

// PopOut opens a detail view on the screen holding the detailed role. Screens
// and roles are fetched fresh for every call. With several screens and no
// detailed role, assignment is requested and the view opens as a plain tab.
func (c *Coordinator) PopOut(ctx context.Context, req placement.Request) (placement.Result, error) {
	if err := req.Validate(); err != nil {
		return placement.Result{}, err
	}
	// Validate accepted the view type, so this only canonicalizes its case.
	req.ViewType, _ = placement.ParseViewType(string(req.ViewType))
	if c.State() == StateUninitialized {
		if _, err := c.Initialize(ctx); err != nil {
			logger.Warnf(ctx, "initialization before pop-out reported errors: %v", err)
		}
	}
	if req.Layout == nil {
		req.Layout = c.deps.Layouts.Default(ctx)
	}

	// The fresh detection only drives this placement. The cached screen set
	// stays owned by initialize so the reconciler still sees display changes.
	current := c.deps.Detector.Detect(ctx)

	p := placement.Placement{Request: req, ScreenCount: len(current)}
	if len(current) > 1 {
		ref, ok := c.detailedReference(ctx)
		if !ok {
			logger.Infof(ctx, "no screen has the detailed role, opening %s as a tab", req.WindowName())
			c.requestAssignment(ctx, current)
		} else if target, found := screens.ResolveAssignedScreen(ref, current); found {
			p.Target = &target
		} else {
			logger.Warnf(ctx, "detailed screen %d is no longer attached", ref.ScreenID)
		}
	}

	res, err := c.deps.Placer.Place(ctx, p)
	if err != nil {
		return res, err
	}
	if res.Window == nil || c.deps.Sender == nil {
		return res, nil
	}

	target := -1
	if p.Target != nil {
		target = p.Target.ID
	}
	data := channel.ViewData{
		ViewType: string(req.ViewType),
		ID:       req.EntityID,
		ScreenInfo: channel.ScreenInfo{
			CurrentScreen: screens.CurrentIndex(current),
			TotalScreens:  len(current),
			TargetScreen:  target,
		},
	}
	if err := c.deps.Sender.SendToWindow(ctx, res.Window, data); err != nil {
		logger.Warnf(ctx, "unable to send view data to %s: %v", res.WindowName, err)
	}
	return res, nil
}

// detailedReference returns the first screen holding the detailed role. A
// fresh read is preferred; the cache is used only when the store fails.
func (c *Coordinator) detailedReference(ctx context.Context) (screens.Reference, bool) {
	records, err := c.deps.Store.RolesForSession(ctx,
		c.deps.Identity.DeviceID(ctx), c.deps.Identity.SessionID(ctx))
	if err != nil {
		logger.Warnf(ctx, "unable to read screen roles, using cached roles: %v", err)
		return c.cachedDetailed()
	}

	c.mu.Lock()
	for _, rec := range records {
		c.roles[int(rec.ScreenID)] = rec.Role
	}
	c.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].ScreenID < records[j].ScreenID })
	for _, rec := range records {
		if rec.Role == rolestore.RoleDetailed {
			return screens.Reference{
				ScreenID: int(rec.ScreenID),
				Left:     rec.Left,
				Top:      rec.Top,
				Width:    rec.Width,
				Height:   rec.Height,
			}, true
		}
	}
	return screens.Reference{}, false
}

func (c *Coordinator) cachedDetailed() (screens.Reference, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.roles))
	for id, role := range c.roles {
		if role == rolestore.RoleDetailed {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return screens.Reference{}, false
	}
	sort.Ints(ids)
	return screens.Reference{ScreenID: ids[0]}, true
}
