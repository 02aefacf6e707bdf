package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGetRoundTripsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s := NewFileStore(path)
	_, ok, err := s.Get(KeyDeviceID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(KeyDeviceID, "dev-1"))
	require.NoError(t, s.Set(KeyTheme, "dark"))

	reopened := NewFileStore(path)
	v, ok, err := reopened.Get(KeyDeviceID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "dev-1", v)

	require.NoError(t, reopened.Delete(KeyTheme))
	_, ok, err = s.Get(KeyTheme)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStore_UnwritableDirectoryIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	s := NewFileStore(filepath.Join(blocker, "state.json"))
	err := s.Set(KeySessionID, "s")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFileStore_EmptyPathIsUnavailable(t *testing.T) {
	_, _, err := NewFileStore("").Get(KeyDeviceID)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestJSONHelpers(t *testing.T) {
	kv := NewMemoryStore()

	type prefs struct {
		Mode  string `json:"mode"`
		Slots int    `json:"slots"`
	}
	var out prefs
	ok, err := GetJSON(kv, KeyLayoutPrefs, &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, SetJSON(kv, KeyLayoutPrefs, prefs{Mode: "grid", Slots: 4}))
	ok, err = GetJSON(kv, KeyLayoutPrefs, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, prefs{Mode: "grid", Slots: 4}, out)
}
