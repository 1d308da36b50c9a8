package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheSetGet(t *testing.T) {
	cache := NewTTLCache[string](8, time.Minute)

	cache.Set("k", "v")
	got, ok := cache.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", got)

	_, ok = cache.Get("missing")
	require.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	cache := NewTTLCache[int](8, 10*time.Millisecond)

	cache.Set("k", 42)
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
}

func TestTTLCacheEviction(t *testing.T) {
	cache := NewTTLCache[int](2, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	// LRU 容量为 2，最早写入的被淘汰
	_, ok := cache.Get("a")
	require.False(t, ok)
	_, ok = cache.Get("c")
	require.True(t, ok)
}

func TestTTLCacheClear(t *testing.T) {
	cache := NewTTLCache[int](8, time.Minute)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Clear()
	require.Equal(t, 0, cache.Len())
}
