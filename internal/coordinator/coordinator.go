// Package coordinator drives the multi-screen flow: detect screens, make
// sure every screen has a role, and send pop-outs to the detailed screen.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"

	"github.com/1broseidon/popdeck/internal/channel"
	"github.com/1broseidon/popdeck/internal/events"
	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/rolestore"
	"github.com/1broseidon/popdeck/internal/screens"
)

var (
	// ErrIncompleteAssignment is returned when role choices do not cover
	// every detected screen with general or detailed.
	ErrIncompleteAssignment = errors.New("role choices must assign general or detailed to every detected screen")
	// ErrNotInitialized is returned when roles are completed before detection.
	ErrNotInitialized = errors.New("coordinator not initialized")
)

// Detector produces the current screens.
type Detector interface {
	Detect(ctx context.Context) []screens.Screen
}

// Identity supplies the keys role records are stored under.
type Identity interface {
	DeviceID(ctx context.Context) string
	SessionID(ctx context.Context) string
}

// RoleStore persists screen roles.
type RoleStore interface {
	LinkScreen(ctx context.Context, req rolestore.LinkRequest) error
	AssignRole(ctx context.Context, req rolestore.RoleRequest) (*rolestore.ScreenRoleAssignment, error)
	RolesForSession(ctx context.Context, deviceID, sessionID string) ([]rolestore.ScreenRoleAssignment, error)
}

// Placer opens pop-out windows.
type Placer interface {
	Place(ctx context.Context, p placement.Placement) (placement.Result, error)
}

// ViewSender delivers view data to an opened window and prompts open windows
// for role assignment.
type ViewSender interface {
	SendToWindow(ctx context.Context, w platform.Window, data channel.ViewData) error
	ShowRoleAssignment(ctx context.Context, screenIDs []int, message string) int
}

// Deps are the collaborators of a Coordinator. Bus, Sender and Layouts are
// optional.
type Deps struct {
	Detector Detector
	Identity Identity
	Store    RoleStore
	Placer   Placer
	Sender   ViewSender
	Bus      *events.Bus
	Layouts  *LayoutPrefs
}

// ScreenStatus is a detected screen with its cached role.
type ScreenStatus struct {
	screens.Screen
	Role rolestore.Role `json:"role"`
}

// Status is a snapshot of the coordinator.
type Status struct {
	State     State          `json:"state"`
	DeviceID  string         `json:"deviceId"`
	SessionID string         `json:"sessionId"`
	Current   int            `json:"currentScreen"`
	Screens   []ScreenStatus `json:"screens"`
}

// Coordinator owns the role assignment state machine. Its methods are safe
// for concurrent use; Initialize and CompleteAssignment are serialized.
type Coordinator struct {
	deps Deps

	flowMu sync.Mutex

	mu      sync.RWMutex
	state   State
	screens []screens.Screen
	roles   map[int]rolestore.Role
}

// New creates a coordinator in the UNINITIALIZED state.
func New(deps Deps) *Coordinator {
	return &Coordinator{
		deps:  deps,
		state: StateUninitialized,
		roles: make(map[int]rolestore.Role),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Screens returns the screens seen by the most recent detection.
func (c *Coordinator) Screens() []screens.Screen {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]screens.Screen(nil), c.screens...)
}

// Status returns a snapshot of the detected screens and cached roles.
func (c *Coordinator) Status(ctx context.Context) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		State:     c.state,
		DeviceID:  c.deps.Identity.DeviceID(ctx),
		SessionID: c.deps.Identity.SessionID(ctx),
		Current:   screens.CurrentIndex(c.screens),
		Screens:   make([]ScreenStatus, len(c.screens)),
	}
	for i, s := range c.screens {
		role, ok := c.roles[s.ID]
		if !ok {
			role = rolestore.RoleUnassigned
		}
		st.Screens[i] = ScreenStatus{Screen: s, Role: role}
	}
	return st
}

// Initialize runs detection and role checks. Once READY it is a no-op. The
// returned error aggregates role store failures; the flow still advances on
// best-effort defaults.
func (c *Coordinator) Initialize(ctx context.Context) (State, error) {
	c.flowMu.Lock()
	defer c.flowMu.Unlock()

	switch st := c.State(); st {
	case StateReady, StateAwaitingAssignment:
		logger.Debugf(ctx, "initialize: already %s", st)
		return st, nil
	}
	return c.initialize(ctx)
}

// Refresh forgets the current state and runs Initialize again, for example
// after displays were attached or removed.
func (c *Coordinator) Refresh(ctx context.Context) (State, error) {
	c.flowMu.Lock()
	defer c.flowMu.Unlock()
	c.transition(ctx, StateUninitialized)
	return c.initialize(ctx)
}

func (c *Coordinator) initialize(ctx context.Context) (State, error) {
	c.transition(ctx, StateDetecting)
	list := c.deps.Detector.Detect(ctx)
	c.mu.Lock()
	c.screens = list
	c.roles = map[int]rolestore.Role{}
	c.mu.Unlock()

	deviceID := c.deps.Identity.DeviceID(ctx)
	sessionID := c.deps.Identity.SessionID(ctx)

	if len(list) == 1 {
		c.transition(ctx, StateSingleScreen)
		err := c.assignSingle(ctx, deviceID, sessionID, list[0])
		c.transition(ctx, StateReady)
		return StateReady, err
	}

	c.transition(ctx, StateMultiScreenUnassigned)
	var result *multierror.Error
	for _, s := range list {
		if err := c.deps.Store.LinkScreen(ctx, linkRequest(deviceID, sessionID, s)); err != nil {
			result = multierror.Append(result, err)
		}
	}

	records, err := c.deps.Store.RolesForSession(ctx, deviceID, sessionID)
	if err != nil {
		logger.Warnf(ctx, "unable to read screen roles, treating screens as unassigned: %v", err)
		result = multierror.Append(result, err)
	}
	c.mu.Lock()
	for _, rec := range records {
		c.roles[int(rec.ScreenID)] = rec.Role
	}
	complete := c.completeLocked()
	c.mu.Unlock()

	if err := result.ErrorOrNil(); err != nil {
		logger.Warnf(ctx, "role store errors during initialization: %v", err)
	}

	if complete {
		c.transition(ctx, StateReady)
		return StateReady, result.ErrorOrNil()
	}
	c.transition(ctx, StateAwaitingAssignment)
	c.requestAssignment(ctx, list)
	return StateAwaitingAssignment, result.ErrorOrNil()
}

func (c *Coordinator) assignSingle(ctx context.Context, deviceID, sessionID string, s screens.Screen) error {
	var result *multierror.Error
	if err := c.deps.Store.LinkScreen(ctx, linkRequest(deviceID, sessionID, s)); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.deps.Store.AssignRole(ctx, rolestore.RoleRequest{
		SessionID: sessionID,
		DeviceID:  deviceID,
		ScreenID:  rolestore.ScreenID(s.ID),
		Role:      rolestore.RoleGeneral,
	}); err != nil {
		result = multierror.Append(result, err)
	}

	// The single screen is general whether or not the store accepted it.
	c.mu.Lock()
	c.roles = map[int]rolestore.Role{s.ID: rolestore.RoleGeneral}
	c.mu.Unlock()

	if err := result.ErrorOrNil(); err != nil {
		logger.Warnf(ctx, "unable to persist general role for the only screen: %v", err)
		return err
	}
	return nil
}

// CompleteAssignment persists one role per detected screen and moves to
// READY. Roles that failed to persist are not cached and are reported in the
// returned error.
func (c *Coordinator) CompleteAssignment(ctx context.Context, choices map[int]rolestore.Role) error {
	c.flowMu.Lock()
	defer c.flowMu.Unlock()

	c.mu.RLock()
	state := c.state
	current := append([]screens.Screen(nil), c.screens...)
	c.mu.RUnlock()

	if state == StateUninitialized || state == StateDetecting {
		return ErrNotInitialized
	}
	if err := validateChoices(current, choices); err != nil {
		return err
	}

	deviceID := c.deps.Identity.DeviceID(ctx)
	sessionID := c.deps.Identity.SessionID(ctx)

	ids := make([]int, 0, len(choices))
	for id := range choices {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var result *multierror.Error
	for _, id := range ids {
		role := choices[id]
		if _, err := c.deps.Store.AssignRole(ctx, rolestore.RoleRequest{
			SessionID: sessionID,
			DeviceID:  deviceID,
			ScreenID:  rolestore.ScreenID(id),
			Role:      role,
		}); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		c.mu.Lock()
		c.roles[id] = role
		c.mu.Unlock()
	}

	c.transition(ctx, StateReady)
	if err := result.ErrorOrNil(); err != nil {
		logger.Warnf(ctx, "some screen roles were not saved: %v", err)
		return err
	}
	logger.Infof(ctx, "screen roles assigned: %v", choices)
	return nil
}

func validateChoices(current []screens.Screen, choices map[int]rolestore.Role) error {
	known := make(map[int]bool, len(current))
	for _, s := range current {
		known[s.ID] = true
		role, ok := choices[s.ID]
		if !ok {
			return fmt.Errorf("%w: screen %d has no role", ErrIncompleteAssignment, s.ID)
		}
		if _, err := rolestore.ParseRole(string(role)); err != nil {
			return err
		}
		if !role.Assigned() {
			return fmt.Errorf("%w: screen %d is %s", ErrIncompleteAssignment, s.ID, role)
		}
	}
	for id := range choices {
		if !known[id] {
			return fmt.Errorf("%w: screen %d is not detected", ErrIncompleteAssignment, id)
		}
	}
	return nil
}

// completeLocked reports whether every current screen has an assigned role.
func (c *Coordinator) completeLocked() bool {
	for _, s := range c.screens {
		if !c.roles[s.ID].Assigned() {
			return false
		}
	}
	return len(c.screens) > 0
}

func (c *Coordinator) requestAssignment(ctx context.Context, list []screens.Screen) {
	ids := make([]int, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	logger.Infof(ctx, "role assignment required for screens %v", ids)
	events.Publish(ctx, c.deps.Bus, events.TopicAssignmentRequired, events.AssignmentRequired{
		ScreenIDs: ids,
		Message:   assignmentMessage,
		At:        time.Now(),
	})
	if c.deps.Sender != nil {
		if n := c.deps.Sender.ShowRoleAssignment(ctx, ids, assignmentMessage); n > 0 {
			logger.Debugf(ctx, "role picker shown in %d window(s)", n)
		}
	}
}

func (c *Coordinator) transition(ctx context.Context, to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	if from == to {
		return
	}
	logger.Debugf(ctx, "coordinator: %s -> %s", from, to)
	events.Publish(ctx, c.deps.Bus, events.TopicStateChanged, events.StateChanged{From: string(from), To: string(to)})
}

func linkRequest(deviceID, sessionID string, s screens.Screen) rolestore.LinkRequest {
	return rolestore.LinkRequest{
		SessionID: sessionID,
		DeviceID:  deviceID,
		ScreenID:  rolestore.ScreenID(s.ID),
		Left:      s.Left,
		Top:       s.Top,
		Width:     s.Width,
		Height:    s.Height,
	}
}
