package tagbot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CachedStorage wraps a TagStorage and caches FindByName results, which the
// dispatcher issues for every prefixed message. Misses are cached too (with a
// shorter TTL) so chatter that merely looks like a command does not hit the
// backend each time. Every mutation invalidates the affected name, except
// IncrementUses, which updates the cached count in place.
type CachedStorage struct {
	storage TagStorage
	config  CacheConfig
	logger  *zap.Logger

	mu     sync.RWMutex
	cache  map[cacheKey]*cacheEntry
	fills  map[cacheKey]*cacheFill // backend reads in flight per key
	closed bool

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheConfig configures CachedStorage.
type CacheConfig struct {
	// TTL is how long found records stay cached.
	// Default: 5 minutes.
	TTL time.Duration

	// MaxEntries caps the cache; the least recently used entry is evicted.
	// Default: 1000.
	MaxEntries int

	// NegativeTTL is how long "not found" results stay cached.
	// 0 disables negative caching.
	// Default: 30 seconds.
	NegativeTTL time.Duration
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:         DefaultCacheTTL,
		MaxEntries:  DefaultCacheMaxEntries,
		NegativeTTL: DefaultCacheNegativeTTL,
	}
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

type cacheKey struct {
	guildID string
	name    string
}

// cacheFill tracks backend reads for one key. A write to the key marks the
// fill stale and detaches it, so reads that started before the write never
// populate the cache.
type cacheFill struct {
	readers int
	stale   bool
}

type cacheEntry struct {
	record     *TagRecord
	notFound   bool
	cachedAt   time.Time
	accessedAt atomic.Int64 // unix nanos
}

// NewCachedStorage wraps storage with caching.
func NewCachedStorage(storage TagStorage, config CacheConfig, logger *zap.Logger) *CachedStorage {
	if config.TTL == 0 {
		config.TTL = DefaultCacheTTL
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = DefaultCacheMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CachedStorage{
		storage: storage,
		config:  config,
		logger:  logger,
		cache:   make(map[cacheKey]*cacheEntry),
		fills:   make(map[cacheKey]*cacheFill),
	}
}

// FindByName serves from cache when possible.
func (s *CachedStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey{guildID: guildID, name: name}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, NewStorageClosedError()
	}
	entry, ok := s.cache[key]
	if ok && s.isValid(entry) {
		entry.accessedAt.Store(time.Now().UnixNano())
		notFound, rec := entry.notFound, copyTagRecord(entry.record)
		s.mu.RUnlock()
		s.hits.Add(1)
		s.logger.Debug(LogMsgCacheHit, zap.String(LogFieldGuild, guildID), zap.String(LogFieldTag, name))

		if notFound {
			return nil, NewTagNotFoundError(guildID, name)
		}
		return rec, nil
	}
	s.mu.RUnlock()
	s.misses.Add(1)

	fill, err := s.beginFill(key)
	if err != nil {
		return nil, err
	}

	rec, err := s.storage.FindByName(ctx, guildID, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.endFill(key, fill)
	if s.closed {
		return nil, NewStorageClosedError()
	}
	if !fill.stale {
		switch {
		case err == nil:
			s.addEntry(key, rec, false)
		case errors.Is(err, ErrTagNotFound) && s.config.NegativeTTL > 0:
			s.addEntry(key, nil, true)
		}
	}
	if err != nil {
		return nil, err
	}
	return copyTagRecord(rec), nil
}

// beginFill registers a backend read for key.
func (s *CachedStorage) beginFill(key cacheKey) (*cacheFill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}
	fill, ok := s.fills[key]
	if !ok {
		fill = &cacheFill{}
		s.fills[key] = fill
	}
	fill.readers++
	return fill, nil
}

// endFill releases a backend read. Caller must hold the write lock.
func (s *CachedStorage) endFill(key cacheKey, fill *cacheFill) {
	fill.readers--
	if fill.readers == 0 && s.fills[key] == fill {
		delete(s.fills, key)
	}
}

// staleFill stops in-flight reads of key from populating the cache.
// Caller must hold the write lock.
func (s *CachedStorage) staleFill(key cacheKey) {
	if fill, ok := s.fills[key]; ok {
		fill.stale = true
		delete(s.fills, key)
	}
}

// Insert writes through and drops any cached miss for the name.
func (s *CachedStorage) Insert(ctx context.Context, rec *TagRecord) error {
	err := s.storage.Insert(ctx, rec)
	s.Invalidate(rec.GuildID, rec.Name)
	return err
}

// UpdateContent writes through and invalidates.
func (s *CachedStorage) UpdateContent(ctx context.Context, guildID, name, content string, updatedAt time.Time) (*TagRecord, error) {
	rec, err := s.storage.UpdateContent(ctx, guildID, name, content, updatedAt)
	s.Invalidate(guildID, name)
	return rec, err
}

// UpdateAuthor writes through and invalidates.
func (s *CachedStorage) UpdateAuthor(ctx context.Context, guildID, name, author string, updatedAt time.Time) (*TagRecord, error) {
	rec, err := s.storage.UpdateAuthor(ctx, guildID, name, author, updatedAt)
	s.Invalidate(guildID, name)
	return rec, err
}

// IncrementUses writes through and refreshes the cached count, keeping the
// entry warm for the next invocation. Failures invalidate.
func (s *CachedStorage) IncrementUses(ctx context.Context, guildID, name string) (int64, error) {
	uses, err := s.storage.IncrementUses(ctx, guildID, name)
	if err != nil {
		s.Invalidate(guildID, name)
		return uses, err
	}

	key := cacheKey{guildID: guildID, name: name}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.staleFill(key)
	if s.cache == nil {
		return uses, nil
	}
	entry, ok := s.cache[key]
	switch {
	case !ok:
	case entry.notFound:
		delete(s.cache, key)
	case uses > entry.record.Uses:
		entry.record.Uses = uses
	}
	return uses, nil
}

// Delete writes through and invalidates.
func (s *CachedStorage) Delete(ctx context.Context, guildID, name string) error {
	err := s.storage.Delete(ctx, guildID, name)
	s.Invalidate(guildID, name)
	return err
}

// List is not cached.
func (s *CachedStorage) List(ctx context.Context, guildID string) ([]*TagRecord, error) {
	return s.storage.List(ctx, guildID)
}

// Close closes the underlying storage and drops the cache.
func (s *CachedStorage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cache = nil
	s.mu.Unlock()

	return s.storage.Close()
}

// Invalidate drops the cached entry for one tag.
func (s *CachedStorage) Invalidate(guildID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cacheKey{guildID: guildID, name: name}
	s.staleFill(key)
	if s.cache == nil {
		return
	}
	delete(s.cache, key)
	s.logger.Debug(LogMsgCacheInvalidated, zap.String(LogFieldGuild, guildID), zap.String(LogFieldTag, name))
}

// InvalidateAll drops every cached entry.
func (s *CachedStorage) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.fills {
		s.staleFill(key)
	}
	if s.cache != nil {
		s.cache = make(map[cacheKey]*cacheEntry)
	}
}

// Stats returns hit/miss counters and the current size.
func (s *CachedStorage) Stats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return CacheStats{
		Entries: len(s.cache),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}

func (s *CachedStorage) isValid(entry *cacheEntry) bool {
	ttl := s.config.TTL
	if entry.notFound {
		ttl = s.config.NegativeTTL
	}
	return time.Since(entry.cachedAt) < ttl
}

// addEntry stores an entry, evicting the least recently used one at capacity.
// Caller must hold the write lock.
func (s *CachedStorage) addEntry(key cacheKey, rec *TagRecord, notFound bool) {
	if _, exists := s.cache[key]; !exists && len(s.cache) >= s.config.MaxEntries {
		s.evictOldest()
	}

	now := time.Now()
	entry := &cacheEntry{
		record:   copyTagRecord(rec),
		notFound: notFound,
		cachedAt: now,
	}
	entry.accessedAt.Store(now.UnixNano())
	s.cache[key] = entry
}

// evictOldest removes the least recently accessed entry.
// Caller must hold the write lock.
func (s *CachedStorage) evictOldest() {
	var (
		oldestKey cacheKey
		oldestAt  int64
		found     bool
	)
	for key, entry := range s.cache {
		at := entry.accessedAt.Load()
		if !found || at < oldestAt {
			oldestKey, oldestAt, found = key, at, true
		}
	}
	if found {
		delete(s.cache, oldestKey)
	}
}
