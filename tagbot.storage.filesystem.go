package tagbot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilesystemStorage stores each guild's tags as one JSON document.
//
// Directory structure:
//
//	<root>/
//	  <hex(guild id)>.json   # {"<name>": {...record...}, ...}
//	  ...
//
// Guild IDs are hex-encoded so any ID maps to a safe file name. Every write
// replaces the whole document through a temp file and a rename.
type FilesystemStorage struct {
	mu     sync.RWMutex
	root   string
	closed bool
}

// FilesystemStorageDriver opens FilesystemStorage instances.
type FilesystemStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameFilesystem, &FilesystemStorageDriver{})
}

// Open treats the connection string as the root directory.
func (d *FilesystemStorageDriver) Open(connectionString string) (TagStorage, error) {
	return NewFilesystemStorage(connectionString)
}

// NewFilesystemStorage creates a filesystem storage rooted at root, creating
// the directory if needed.
func NewFilesystemStorage(root string) (*FilesystemStorage, error) {
	if root == "" {
		return nil, &StorageError{Message: ErrMsgInvalidStorageRoot}
	}
	if err := os.MkdirAll(root, FilesystemDirPermissions); err != nil {
		return nil, &StorageError{Message: ErrMsgCreateStorageDir, Name: root, Cause: err}
	}
	return &FilesystemStorage{root: root}, nil
}

// Insert stores a new record.
func (s *FilesystemStorage) Insert(ctx context.Context, rec *TagRecord) error {
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

	tags, err := s.readGuild(rec.GuildID)
	if err != nil {
		return err
	}
	if _, exists := tags[rec.Name]; exists {
		return NewTagExistsError(rec.GuildID, rec.Name)
	}
	tags[rec.Name] = copyTagRecord(rec)
	return s.writeGuild(rec.GuildID, tags)
}

// FindByName reads the guild document and returns the record.
func (s *FilesystemStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	tags, err := s.readGuild(guildID)
	if err != nil {
		return nil, err
	}
	rec, ok := tags[name]
	if !ok {
		return nil, NewTagNotFoundError(guildID, name)
	}
	return rec, nil
}

// UpdateContent sets content and updatedAt.
func (s *FilesystemStorage) UpdateContent(ctx context.Context, guildID, name, content string, updatedAt time.Time) (*TagRecord, error) {
	return s.update(ctx, guildID, name, func(rec *TagRecord) {
		rec.Content = content
		rec.UpdatedAt = updatedAt
	})
}

// UpdateAuthor sets author and updatedAt.
func (s *FilesystemStorage) UpdateAuthor(ctx context.Context, guildID, name, author string, updatedAt time.Time) (*TagRecord, error) {
	return s.update(ctx, guildID, name, func(rec *TagRecord) {
		rec.Author = author
		rec.UpdatedAt = updatedAt
	})
}

// IncrementUses adds one to the use counter under the write lock.
func (s *FilesystemStorage) IncrementUses(ctx context.Context, guildID, name string) (int64, error) {
	rec, err := s.update(ctx, guildID, name, func(rec *TagRecord) {
		rec.Uses++
	})
	if err != nil {
		return 0, err
	}
	return rec.Uses, nil
}

// Delete removes a record. The guild file is removed with its last tag.
func (s *FilesystemStorage) Delete(ctx context.Context, guildID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	tags, err := s.readGuild(guildID)
	if err != nil {
		return err
	}
	if _, ok := tags[name]; !ok {
		return NewTagNotFoundError(guildID, name)
	}
	delete(tags, name)

	if len(tags) == 0 {
		if err := os.Remove(s.guildPath(guildID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &StorageError{Message: ErrMsgWriteGuildFile, Name: guildID, Cause: err}
		}
		return nil
	}
	return s.writeGuild(guildID, tags)
}

// List returns every record in the guild ordered by name.
func (s *FilesystemStorage) List(ctx context.Context, guildID string) ([]*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	tags, err := s.readGuild(guildID)
	if err != nil {
		return nil, err
	}
	records := make([]*TagRecord, 0, len(tags))
	for _, rec := range tags {
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

// Close marks the storage closed. Files stay on disk.
func (s *FilesystemStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Root returns the storage root directory.
func (s *FilesystemStorage) Root() string {
	return s.root
}

func (s *FilesystemStorage) update(ctx context.Context, guildID, name string, mutate func(rec *TagRecord)) (*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	tags, err := s.readGuild(guildID)
	if err != nil {
		return nil, err
	}
	rec, ok := tags[name]
	if !ok {
		return nil, NewTagNotFoundError(guildID, name)
	}
	mutate(rec)
	if err := s.writeGuild(guildID, tags); err != nil {
		return nil, err
	}
	return copyTagRecord(rec), nil
}

func (s *FilesystemStorage) guildPath(guildID string) string {
	return filepath.Join(s.root, hex.EncodeToString([]byte(guildID))+FilesystemGuildSuffix)
}

// readGuild loads the guild document; a missing file is an empty guild.
// Caller must hold the lock.
func (s *FilesystemStorage) readGuild(guildID string) (map[string]*TagRecord, error) {
	tags := make(map[string]*TagRecord)

	data, err := os.ReadFile(s.guildPath(guildID))
	if errors.Is(err, fs.ErrNotExist) {
		return tags, nil
	}
	if err != nil {
		return nil, &StorageError{Message: ErrMsgReadGuildFile, Name: guildID, Cause: err}
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, &StorageError{Message: ErrMsgStorageUnmarshal, Name: guildID, Cause: err}
	}
	return tags, nil
}

// writeGuild replaces the guild document. Caller must hold the write lock.
func (s *FilesystemStorage) writeGuild(guildID string, tags map[string]*TagRecord) error {
	data, err := json.MarshalIndent(tags, "", "  ")
	if err != nil {
		return &StorageError{Message: ErrMsgStorageMarshal, Name: guildID, Cause: err}
	}

	tmp, err := os.CreateTemp(s.root, FilesystemTempPattern)
	if err != nil {
		return &StorageError{Message: ErrMsgWriteGuildFile, Name: guildID, Cause: err}
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, FilesystemFilePermissions)
	}
	if err == nil {
		err = os.Rename(tmpName, s.guildPath(guildID))
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return &StorageError{Message: ErrMsgWriteGuildFile, Name: guildID, Cause: err}
	}
	return nil
}
