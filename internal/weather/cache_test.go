package weather

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPayload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestCache_PutGet(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)

	require.NoError(t, cache.Put("key-a", cachedPayload{Name: "a", Value: 1.5}))

	var got cachedPayload
	require.True(t, cache.Get("key-a", &got))
	assert.Equal(t, cachedPayload{Name: "a", Value: 1.5}, got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)
	var got cachedPayload
	assert.False(t, cache.Get("never-stored", &got))
}

func TestCache_ExpiredEntryIsMissAndRemoved(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, time.Nanosecond)

	require.NoError(t, cache.Put("key-a", cachedPayload{Name: "a"}))
	time.Sleep(time.Millisecond)

	var got cachedPayload
	assert.False(t, cache.Get("key-a", &got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewCache(t.TempDir(), 0)
	require.NoError(t, cache.Put("key-a", cachedPayload{Name: "a"}))

	var got cachedPayload
	assert.True(t, cache.Get("key-a", &got))
}

func TestCache_CorruptEntryIsMissAndRemoved(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, time.Hour)
	require.NoError(t, cache.Put("key-a", cachedPayload{Name: "a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	path := filepath.Join(dir, entries[0].Name())
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got cachedPayload
	assert.False(t, cache.Get("key-a", &got))
	assert.NoFileExists(t, path)
}

func TestCache_KeysAreIndependent(t *testing.T) {
	cache := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, cache.Put("key-a", cachedPayload{Name: "a"}))
	require.NoError(t, cache.Put("key-b", cachedPayload{Name: "b"}))

	var got cachedPayload
	require.True(t, cache.Get("key-b", &got))
	assert.Equal(t, "b", got.Name)
}
