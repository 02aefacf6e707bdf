package coordinator

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/storage"
	"github.com/1broseidon/popdeck/internal/tiling"
)

// LayoutPrefs resolves the layout used by pop-outs that do not carry one:
// the stored preference, else the configured default, else none.
type LayoutPrefs struct {
	kv       storage.KV
	fallback *tiling.Options
}

// NewLayoutPrefs creates preferences backed by kv. fallback may be nil.
func NewLayoutPrefs(kv storage.KV, fallback *tiling.Options) *LayoutPrefs {
	if fallback.IsZero() {
		fallback = nil
	}
	return &LayoutPrefs{kv: kv, fallback: fallback}
}

// Default returns a copy of the effective layout, or nil for full-screen.
func (p *LayoutPrefs) Default(ctx context.Context) *tiling.Options {
	if p == nil {
		return nil
	}
	if p.kv != nil {
		var stored tiling.Options
		ok, err := storage.GetJSON(p.kv, storage.KeyLayoutPrefs, &stored)
		switch {
		case err != nil:
			logger.Warnf(ctx, "ignoring stored layout preference: %v", err)
		case ok && stored.Validate() == nil && !stored.IsZero():
			return &stored
		}
	}
	if p.fallback == nil {
		return nil
	}
	out := *p.fallback
	return &out
}

// Set stores opts as the preferred layout.
func (p *LayoutPrefs) Set(opts tiling.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if p.kv == nil {
		return storage.ErrUnavailable
	}
	opts.SlotIndex = nil
	return storage.SetJSON(p.kv, storage.KeyLayoutPrefs, opts)
}

// Clear removes the stored preference.
func (p *LayoutPrefs) Clear() error {
	if p.kv == nil {
		return storage.ErrUnavailable
	}
	return p.kv.Delete(storage.KeyLayoutPrefs)
}
