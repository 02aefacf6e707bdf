// Package identity provides the stable device and session identifiers that
// scope screen role assignments.
package identity

import (
	"context"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"

	"github.com/1broseidon/popdeck/internal/storage"
)

// Provider memoizes the device and session identifiers for the lifetime of
// the process. The first call reads client storage; a missing value is
// generated and persisted. When storage is unavailable the generated value is
// kept in memory only.
type Provider struct {
	kv    storage.KV
	newID func() string

	mu        sync.Mutex
	deviceID  string
	sessionID string
	ephemeral bool
}

// NewProvider returns a provider backed by kv. A nil kv behaves as
// unavailable storage.
func NewProvider(kv storage.KV) *Provider {
	return &Provider{
		kv:    kv,
		newID: func() string { return uuid.NewString() },
	}
}

// DeviceID returns the per-profile device identifier.
func (p *Provider) DeviceID(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deviceID == "" {
		p.deviceID = p.load(ctx, storage.KeyDeviceID)
	}
	return p.deviceID
}

// SessionID returns the application session identifier.
func (p *Provider) SessionID(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID == "" {
		p.sessionID = p.load(ctx, storage.KeySessionID)
	}
	return p.sessionID
}

// Ephemeral reports whether any identifier could not be persisted.
func (p *Provider) Ephemeral() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ephemeral
}

func (p *Provider) load(ctx context.Context, key string) string {
	if p.kv == nil {
		p.ephemeral = true
		return p.newID()
	}

	stored, ok, err := p.kv.Get(key)
	if err != nil {
		logger.Warnf(ctx, "client storage unavailable reading %s, using in-memory identifier: %v", key, err)
		p.ephemeral = true
		return p.newID()
	}
	if ok && stored != "" {
		return stored
	}

	id := p.newID()
	if err := p.kv.Set(key, id); err != nil {
		logger.Warnf(ctx, "unable to persist %s, identifier is valid for this process only: %v", key, err)
		p.ephemeral = true
	}
	return id
}
