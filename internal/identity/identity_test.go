package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/storage"
)

type countingKV struct {
	storage.KV
	gets int
}

func (c *countingKV) Get(key string) (string, bool, error) {
	c.gets++
	return c.KV.Get(key)
}

type brokenKV struct{}

func (brokenKV) Get(string) (string, bool, error) { return "", false, storage.ErrUnavailable }
func (brokenKV) Set(string, string) error          { return storage.ErrUnavailable }
func (brokenKV) Delete(string) error               { return storage.ErrUnavailable }

type readOnlyKV struct{}

func (readOnlyKV) Get(string) (string, bool, error) { return "", false, nil }
func (readOnlyKV) Set(string, string) error          { return errors.New("read-only") }
func (readOnlyKV) Delete(string) error               { return errors.New("read-only") }

func TestProvider_IdempotentWithinProcess(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KV: storage.NewMemoryStore()}
	p := NewProvider(kv)

	dev1, sess1 := p.DeviceID(ctx), p.SessionID(ctx)
	dev2, sess2 := p.DeviceID(ctx), p.SessionID(ctx)

	require.NotEmpty(t, dev1)
	require.NotEmpty(t, sess1)
	require.NotEqual(t, dev1, sess1)
	require.Equal(t, dev1, dev2)
	require.Equal(t, sess1, sess2)
	require.Equal(t, 2, kv.gets, "subsequent calls must not re-read storage")
	require.False(t, p.Ephemeral())
}

func TestProvider_ReusesPersistedIdentifiers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	first := NewProvider(storage.NewFileStore(path))
	dev, sess := first.DeviceID(ctx), first.SessionID(ctx)

	second := NewProvider(storage.NewFileStore(path))
	require.Equal(t, dev, second.DeviceID(ctx))
	require.Equal(t, sess, second.SessionID(ctx))
}

func TestProvider_FallsBackToMemoryWhenStorageUnavailable(t *testing.T) {
	ctx := context.Background()

	for name, kv := range map[string]storage.KV{
		"broken":    brokenKV{},
		"read-only": readOnlyKV{},
		"nil":       nil,
	} {
		t.Run(name, func(t *testing.T) {
			p := NewProvider(kv)
			dev := p.DeviceID(ctx)
			require.NotEmpty(t, dev)
			require.Equal(t, dev, p.DeviceID(ctx))
			require.True(t, p.Ephemeral())
		})
	}
}
