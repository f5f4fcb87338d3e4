package tagbot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStorage counts backend lookups.
type countingStorage struct {
	TagStorage
	finds atomic.Int64
}

func (c *countingStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	c.finds.Add(1)
	return c.TagStorage.FindByName(ctx, guildID, name)
}

func newCountingCache(t *testing.T, config CacheConfig) (*CachedStorage, *countingStorage) {
	t.Helper()
	backend := &countingStorage{TagStorage: NewMemoryStorage()}
	cache := NewCachedStorage(backend, config, nil)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, backend
}

func TestCachedStorage_Hits(t *testing.T) {
	ctx := context.Background()
	cache, backend := newCountingCache(t, DefaultCacheConfig())
	require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))

	for i := 0; i < 3; i++ {
		rec, err := cache.FindByName(ctx, "g1", "faq")
		require.NoError(t, err)
		assert.Equal(t, "faq", rec.Name)
	}

	assert.Equal(t, int64(1), backend.finds.Load())
	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCachedStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCountingCache(t, DefaultCacheConfig())
	require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))

	first, err := cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)
	first.Content = "mutated"

	second, err := cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)
	assert.Equal(t, "content of faq", second.Content)
}

func TestCachedStorage_NegativeCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("miss is cached", func(t *testing.T) {
		cache, backend := newCountingCache(t, CacheConfig{NegativeTTL: time.Minute})

		for i := 0; i < 2; i++ {
			_, err := cache.FindByName(ctx, "g1", "nope")
			assert.True(t, errors.Is(err, ErrTagNotFound))
		}
		assert.Equal(t, int64(1), backend.finds.Load())
	})

	t.Run("insert clears cached miss", func(t *testing.T) {
		cache, _ := newCountingCache(t, CacheConfig{NegativeTTL: time.Minute})

		_, err := cache.FindByName(ctx, "g1", "new")
		require.Error(t, err)

		require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "new")))
		rec, err := cache.FindByName(ctx, "g1", "new")
		require.NoError(t, err)
		assert.Equal(t, "new", rec.Name)
	})

	t.Run("disabled", func(t *testing.T) {
		cache, backend := newCountingCache(t, CacheConfig{})

		for i := 0; i < 2; i++ {
			_, err := cache.FindByName(ctx, "g1", "nope")
			require.Error(t, err)
		}
		assert.Equal(t, int64(2), backend.finds.Load())
	})
}

func TestCachedStorage_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name   string
		mutate func(s *CachedStorage) error
		check  func(t *testing.T, rec *TagRecord, err error)
	}{
		{
			name: "update content",
			mutate: func(s *CachedStorage) error {
				_, err := s.UpdateContent(ctx, "g1", "faq", "fresh", now)
				return err
			},
			check: func(t *testing.T, rec *TagRecord, err error) {
				require.NoError(t, err)
				assert.Equal(t, "fresh", rec.Content)
			},
		},
		{
			name: "update author",
			mutate: func(s *CachedStorage) error {
				_, err := s.UpdateAuthor(ctx, "g1", "faq", "author-2", now)
				return err
			},
			check: func(t *testing.T, rec *TagRecord, err error) {
				require.NoError(t, err)
				assert.Equal(t, "author-2", rec.Author)
			},
		},
		{
			name: "increment",
			mutate: func(s *CachedStorage) error {
				_, err := s.IncrementUses(ctx, "g1", "faq")
				return err
			},
			check: func(t *testing.T, rec *TagRecord, err error) {
				require.NoError(t, err)
				assert.Equal(t, int64(1), rec.Uses)
			},
		},
		{
			name: "delete",
			mutate: func(s *CachedStorage) error {
				return s.Delete(ctx, "g1", "faq")
			},
			check: func(t *testing.T, _ *TagRecord, err error) {
				assert.True(t, errors.Is(err, ErrTagNotFound))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, _ := newCountingCache(t, DefaultCacheConfig())
			require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))

			_, err := cache.FindByName(ctx, "g1", "faq")
			require.NoError(t, err)

			require.NoError(t, tt.mutate(cache))

			rec, err := cache.FindByName(ctx, "g1", "faq")
			tt.check(t, rec, err)
		})
	}
}

func TestCachedStorage_Eviction(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCountingCache(t, CacheConfig{MaxEntries: 2})

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Insert(ctx, newTestRecord("g1", name)))
		_, err := cache.FindByName(ctx, "g1", name)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cache.Stats().Entries)
}

func TestCachedStorage_Expiry(t *testing.T) {
	ctx := context.Background()
	cache, backend := newCountingCache(t, CacheConfig{TTL: time.Millisecond})
	require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))

	_, err := cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)

	assert.Equal(t, int64(2), backend.finds.Load())
}

func TestCachedStorage_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	cache, backend := newCountingCache(t, DefaultCacheConfig())
	require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))

	_, err := cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)
	cache.InvalidateAll()
	assert.Equal(t, 0, cache.Stats().Entries)

	_, err = cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.finds.Load())
}

func TestCachedStorage_Closed(t *testing.T) {
	ctx := context.Background()
	cache := NewCachedStorage(NewMemoryStorage(), DefaultCacheConfig(), nil)
	require.NoError(t, cache.Close())

	_, err := cache.FindByName(ctx, "g1", "faq")
	var storageErr *StorageError
	assert.True(t, errors.As(err, &storageErr))
}

// gatedStorage holds FindByName until released so a write can land mid-read.
type gatedStorage struct {
	TagStorage
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	rec, err := g.TagStorage.FindByName(ctx, guildID, name)
	g.entered <- struct{}{}
	<-g.release
	return rec, err
}

func TestCachedStorage_IncrementKeepsEntryWarm(t *testing.T) {
	ctx := context.Background()
	cache, backend := newCountingCache(t, DefaultCacheConfig())
	require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))

	for i := 1; i <= 3; i++ {
		rec, err := cache.FindByName(ctx, "g1", "faq")
		require.NoError(t, err)
		assert.Equal(t, int64(i-1), rec.Uses)

		uses, err := cache.IncrementUses(ctx, "g1", "faq")
		require.NoError(t, err)
		assert.Equal(t, int64(i), uses)
	}

	rec, err := cache.FindByName(ctx, "g1", "faq")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Uses)
	assert.Equal(t, int64(1), backend.finds.Load())

	t.Run("increment of a missing tag drops the cached miss", func(t *testing.T) {
		_, err := cache.FindByName(ctx, "g1", "ghost")
		require.Error(t, err)
		_, err = cache.IncrementUses(ctx, "g1", "ghost")
		require.Error(t, err)
		assert.Equal(t, 1, cache.Stats().Entries)
	})
}

func TestCachedStorage_WritesDuringRead(t *testing.T) {
	ctx := context.Background()

	newGated := func(t *testing.T) (*CachedStorage, *gatedStorage) {
		backend := &gatedStorage{
			TagStorage: NewMemoryStorage(),
			entered:    make(chan struct{}),
			release:    make(chan struct{}),
		}
		cache := NewCachedStorage(backend, DefaultCacheConfig(), nil)
		t.Cleanup(func() { _ = cache.Close() })
		require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "faq")))
		require.NoError(t, cache.Insert(ctx, newTestRecord("g1", "rules")))
		return cache, backend
	}

	// readAround starts a cache miss for name, runs write while the backend
	// read is in flight, then lets the read finish.
	readAround := func(t *testing.T, cache *CachedStorage, backend *gatedStorage, name string, write func()) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = cache.FindByName(ctx, "g1", name)
		}()
		<-backend.entered
		write()
		backend.release <- struct{}{}
		<-done
	}

	t.Run("increment during a read of the same tag", func(t *testing.T) {
		cache, backend := newGated(t)
		readAround(t, cache, backend, "faq", func() {
			_, err := cache.IncrementUses(ctx, "g1", "faq")
			require.NoError(t, err)
		})
		assert.Equal(t, 0, cache.Stats().Entries)
	})

	t.Run("invalidating another tag keeps the read", func(t *testing.T) {
		cache, backend := newGated(t)
		readAround(t, cache, backend, "faq", func() {
			cache.Invalidate("g1", "rules")
		})
		assert.Equal(t, 1, cache.Stats().Entries)

		rec, err := cache.FindByName(ctx, "g1", "faq")
		require.NoError(t, err)
		assert.Equal(t, "faq", rec.Name)
	})
}
