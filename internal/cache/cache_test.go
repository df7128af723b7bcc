package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutGet(t *testing.T) {
	s := New(10)

	require.NoError(t, s.Put("people|abc|0", []byte("page-0"), time.Minute))

	got, ok := s.Get("people|abc|0")
	require.True(t, ok)
	assert.Equal(t, []byte("page-0"), got)

	_, ok = s.Get("people|abc|100")
	assert.False(t, ok)
}

func TestStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	current := now
	s := New(10, WithClock(func() time.Time { return current }))

	require.NoError(t, s.Put("k", []byte("v"), 30*time.Second))

	_, ok := s.Get("k")
	require.True(t, ok)

	current = now.Add(31 * time.Second)
	_, ok = s.Get("k")
	assert.False(t, ok, "expired entry must read as a miss")
	assert.Equal(t, 0, s.Size(), "expired entry is purged on lookup")
}

func TestStoreOverwriteResetsTTL(t *testing.T) {
	now := time.Now()
	current := now
	s := New(10, WithClock(func() time.Time { return current }))

	require.NoError(t, s.Put("k", []byte("old"), 10*time.Second))
	current = now.Add(8 * time.Second)
	require.NoError(t, s.Put("k", []byte("new"), 10*time.Second))

	current = now.Add(15 * time.Second)
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestStoreLRUEviction(t *testing.T) {
	s := New(3)
	require.NoError(t, s.Put("a", []byte("1"), time.Minute))
	require.NoError(t, s.Put("b", []byte("2"), time.Minute))
	require.NoError(t, s.Put("c", []byte("3"), time.Minute))

	// Touch "a" so "b" becomes the least recently accessed.
	_, ok := s.Get("a")
	require.True(t, ok)

	require.NoError(t, s.Put("d", []byte("4"), time.Minute))

	_, ok = s.Get("b")
	assert.False(t, ok, "least recently accessed entry must be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := s.Get(key)
		assert.True(t, ok, "key %q should survive eviction", key)
	}
	assert.Equal(t, 3, s.Size())
}

func TestStoreEvictionOnlyAtCapacity(t *testing.T) {
	s := New(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	assert.Equal(t, 5, s.Size())
	assert.Zero(t, s.Stats().Evictions)

	require.NoError(t, s.Put("k5", []byte("v"), time.Minute))
	assert.Equal(t, 5, s.Size())
	assert.EqualValues(t, 1, s.Stats().Evictions)
}

func TestStoreValueTooLarge(t *testing.T) {
	s := New(10, WithMaxValueBytes(8))

	err := s.Put("k", []byte("way too large for the limit"), time.Minute)
	require.ErrorIs(t, err, ErrValueTooLarge)
	assert.Equal(t, 0, s.Size(), "store is unchanged after a rejected put")

	require.NoError(t, s.Put("k", []byte("tiny"), time.Minute))
}

func TestStoreInvalidateCategory(t *testing.T) {
	s := New(10)
	require.NoError(t, s.Put(Key("people", nil, 0), []byte("p0"), time.Minute))
	require.NoError(t, s.Put(Key("people", nil, 100), []byte("p1"), time.Minute))
	require.NoError(t, s.Put(Key("deals", nil, 0), []byte("d0"), time.Minute))

	removed := s.InvalidateCategory("people")
	assert.Equal(t, 2, removed)

	_, ok := s.Get(Key("people", nil, 0))
	assert.False(t, ok)
	_, ok = s.Get(Key("people", nil, 100))
	assert.False(t, ok)
	_, ok = s.Get(Key("deals", nil, 0))
	assert.True(t, ok, "other categories are unaffected")

	assert.Equal(t, 0, s.InvalidateCategory("nothing"), "no error, no matches")
}

func TestStoreClear(t *testing.T) {
	s := New(10)
	require.NoError(t, s.Put("a", []byte("1"), time.Minute))
	require.NoError(t, s.Put("b", []byte("2"), time.Minute))
	s.Clear()
	assert.Equal(t, 0, s.Size())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestStoreStats(t *testing.T) {
	s := New(10)
	require.NoError(t, s.Put("a", []byte("1"), time.Minute))

	_, _ = s.Get("a")
	_, _ = s.Get("a")
	_, _ = s.Get("missing")

	snap := s.Stats()
	assert.EqualValues(t, 2, snap.Hits)
	assert.EqualValues(t, 1, snap.Misses)
	assert.InDelta(t, 2.0/3.0, snap.HitRate, 1e-9)
	assert.Equal(t, 1, snap.Size)
	assert.Equal(t, 10, snap.MaxEntries)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New(100)
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%50)
				_ = s.Put(key, []byte("v"), time.Minute)
				_, _ = s.Get(key)
				if i%40 == 0 {
					s.InvalidateCategory("k1")
				}
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
