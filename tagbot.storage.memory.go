package tagbot

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps tags in process memory. It is intended for tests and
// single-process development; everything is lost on exit.
type MemoryStorage struct {
	mu     sync.RWMutex
	guilds map[string]map[string]*TagRecord // guild -> name -> record
	closed bool
}

// MemoryStorageDriver opens MemoryStorage instances.
type MemoryStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameMemory, &MemoryStorageDriver{})
}

// Open ignores the connection string.
func (d *MemoryStorageDriver) Open(connectionString string) (TagStorage, error) {
	return NewMemoryStorage(), nil
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		guilds: make(map[string]map[string]*TagRecord),
	}
}

// Insert stores a new record.
func (s *MemoryStorage) Insert(ctx context.Context, rec *TagRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(rec.GuildID, rec.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	tags, ok := s.guilds[rec.GuildID]
	if !ok {
		tags = make(map[string]*TagRecord)
		s.guilds[rec.GuildID] = tags
	}
	if _, exists := tags[rec.Name]; exists {
		return NewTagExistsError(rec.GuildID, rec.Name)
	}

	tags[rec.Name] = copyTagRecord(rec)
	return nil
}

// FindByName returns a copy of the record.
func (s *MemoryStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	rec, ok := s.guilds[guildID][name]
	if !ok {
		return nil, NewTagNotFoundError(guildID, name)
	}
	return copyTagRecord(rec), nil
}

// UpdateContent sets content and updatedAt.
func (s *MemoryStorage) UpdateContent(ctx context.Context, guildID, name, content string, updatedAt time.Time) (*TagRecord, error) {
	return s.update(ctx, guildID, name, func(rec *TagRecord) {
		rec.Content = content
		rec.UpdatedAt = updatedAt
	})
}

// UpdateAuthor sets author and updatedAt.
func (s *MemoryStorage) UpdateAuthor(ctx context.Context, guildID, name, author string, updatedAt time.Time) (*TagRecord, error) {
	return s.update(ctx, guildID, name, func(rec *TagRecord) {
		rec.Author = author
		rec.UpdatedAt = updatedAt
	})
}

// IncrementUses adds one to the use counter under the write lock.
func (s *MemoryStorage) IncrementUses(ctx context.Context, guildID, name string) (int64, error) {
	rec, err := s.update(ctx, guildID, name, func(rec *TagRecord) {
		rec.Uses++
	})
	if err != nil {
		return 0, err
	}
	return rec.Uses, nil
}

// Delete removes a record.
func (s *MemoryStorage) Delete(ctx context.Context, guildID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	tags := s.guilds[guildID]
	if _, ok := tags[name]; !ok {
		return NewTagNotFoundError(guildID, name)
	}
	delete(tags, name)
	if len(tags) == 0 {
		delete(s.guilds, guildID)
	}
	return nil
}

// List returns copies of every record in the guild.
func (s *MemoryStorage) List(ctx context.Context, guildID string) ([]*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	tags := s.guilds[guildID]
	records := make([]*TagRecord, 0, len(tags))
	for _, rec := range tags {
		records = append(records, copyTagRecord(rec))
	}
	sortRecords(records)
	return records, nil
}

// Close marks the storage closed and drops all data.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.guilds = nil
	return nil
}

func (s *MemoryStorage) update(ctx context.Context, guildID, name string, mutate func(rec *TagRecord)) (*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	rec, ok := s.guilds[guildID][name]
	if !ok {
		return nil, NewTagNotFoundError(guildID, name)
	}
	mutate(rec)
	return copyTagRecord(rec), nil
}
