package hotkeys

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"

	"github.com/1broseidon/popdeck/internal/ipc"
	"github.com/1broseidon/popdeck/internal/placement"
)

// Binder registers global key bindings.
type Binder interface {
	BindKey(keySequence string, callback func()) error
}

// PopOuter opens dashboard views.
type PopOuter interface {
	PopOut(ctx context.Context, req ipc.PopOutPayload) (ipc.PopOutData, error)
}

// Binding maps a key sequence to a view.
type Binding struct {
	Keys string
	View string
	ID   string
}

// Validate checks that the binding names a view that can be opened.
func (b Binding) Validate() error {
	if b.Keys == "" {
		return fmt.Errorf("hotkey has no key sequence")
	}
	vt, err := placement.ParseViewType(b.View)
	if err != nil {
		return err
	}
	return placement.Request{ViewType: vt, EntityID: b.ID}.Validate()
}

// Handler manages global pop-out shortcuts.
type Handler struct {
	ctx    context.Context
	binder Binder
	target PopOuter
}

// NewHandler creates a new hotkey handler.
func NewHandler(ctx context.Context, binder Binder, target PopOuter) *Handler {
	return &Handler{ctx: ctx, binder: binder, target: target}
}

// Register binds every valid binding. Failed bindings are skipped and
// reported together.
func (h *Handler) Register(bindings []Binding) error {
	var result *multierror.Error
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("hotkey %q: %w", b.Keys, err))
			continue
		}
		b := b
		if err := h.binder.BindKey(b.Keys, func() { h.trigger(b) }); err != nil {
			result = multierror.Append(result, fmt.Errorf("hotkey %q: %w", b.Keys, err))
			continue
		}
		logger.Infof(h.ctx, "hotkey %s pops out %s", b.Keys, describe(b))
	}
	return result.ErrorOrNil()
}

// trigger runs off the event loop so a slow launch does not stall key
// handling.
func (h *Handler) trigger(b Binding) {
	go func() {
		logger.Debugf(h.ctx, "hotkey %s triggered", b.Keys)
		res, err := h.target.PopOut(h.ctx, ipc.PopOutPayload{Type: b.View, ID: b.ID})
		if err != nil {
			logger.Warnf(h.ctx, "hotkey %s: pop-out failed: %v", b.Keys, err)
			return
		}
		logger.Debugf(h.ctx, "hotkey %s opened %s (%s)", b.Keys, res.URL, res.State)
	}()
}

func describe(b Binding) string {
	if b.ID == "" {
		return b.View
	}
	return b.View + "/" + b.ID
}
