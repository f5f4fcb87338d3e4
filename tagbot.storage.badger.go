package tagbot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStorage stores tags in an embedded Badger database. Each record is a
// JSON value under the key "tag:<guild>\x00<name>", so a guild's tags share a
// scan prefix.
//
// Mutations run in Badger's serializable transactions, so IncrementUses is a
// lossless read-modify-write. Writers within the process are queued on
// writeMu; a commit that still fails with badger.ErrConflict is retried.
type BadgerStorage struct {
	db      *badger.DB
	mu      sync.RWMutex
	writeMu sync.Mutex
	closed  bool
}

// BadgerStorageDriver opens BadgerStorage instances.
type BadgerStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameBadger, &BadgerStorageDriver{})
}

// Open treats the connection string as the database directory.
// ":memory:" opens a non-persistent database.
func (d *BadgerStorageDriver) Open(connectionString string) (TagStorage, error) {
	return NewBadgerStorage(connectionString)
}

// NewBadgerStorage opens (or creates) a Badger database at path.
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	if path == "" {
		return nil, &StorageError{Message: ErrMsgStorageEmptyConnString, Name: StorageDriverNameBadger}
	}

	var opts badger.Options
	if path == InMemoryDSN {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
		opts.SyncWrites = true
		opts.CompactL0OnClose = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &StorageError{Message: ErrMsgStorageOpen, Name: path, Cause: err}
	}
	return &BadgerStorage{db: db}, nil
}

func badgerGuildPrefix(guildID string) []byte {
	return []byte(BadgerKeyPrefix + guildID + BadgerKeySeparator)
}

func badgerKey(guildID, name string) []byte {
	return append(badgerGuildPrefix(guildID), name...)
}

// Insert stores a new record.
func (s *BadgerStorage) Insert(ctx context.Context, rec *TagRecord) error {
	if err := validateKey(rec.GuildID, rec.Name); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return &StorageError{Message: ErrMsgStorageMarshal, Name: rec.Name, Cause: err}
	}

	key := badgerKey(rec.GuildID, rec.Name)
	return s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return NewTagExistsError(rec.GuildID, rec.Name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// FindByName reads one record.
func (s *BadgerStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	var rec *TagRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = badgerGet(txn, guildID, name)
		return err
	})
	if err != nil {
		return nil, wrapBadgerError(err)
	}
	return rec, nil
}

// UpdateContent sets content and updatedAt.
func (s *BadgerStorage) UpdateContent(ctx context.Context, guildID, name, content string, updatedAt time.Time) (*TagRecord, error) {
	return s.modify(ctx, guildID, name, func(rec *TagRecord) {
		rec.Content = content
		rec.UpdatedAt = updatedAt
	})
}

// UpdateAuthor sets author and updatedAt.
func (s *BadgerStorage) UpdateAuthor(ctx context.Context, guildID, name, author string, updatedAt time.Time) (*TagRecord, error) {
	return s.modify(ctx, guildID, name, func(rec *TagRecord) {
		rec.Author = author
		rec.UpdatedAt = updatedAt
	})
}

// IncrementUses adds one to uses inside a conflict-checked transaction.
func (s *BadgerStorage) IncrementUses(ctx context.Context, guildID, name string) (int64, error) {
	rec, err := s.modify(ctx, guildID, name, func(rec *TagRecord) {
		rec.Uses++
	})
	if err != nil {
		return 0, err
	}
	return rec.Uses, nil
}

// Delete removes a record.
func (s *BadgerStorage) Delete(ctx context.Context, guildID, name string) error {
	key := badgerKey(guildID, name)
	return s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return NewTagNotFoundError(guildID, name)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// List scans the guild's key prefix.
func (s *BadgerStorage) List(ctx context.Context, guildID string) ([]*TagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	records := []*TagRecord{}
	prefix := badgerGuildPrefix(guildID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec TagRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return &StorageError{Message: ErrMsgStorageUnmarshal, Name: string(it.Item().Key()), Cause: err}
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, wrapBadgerError(err)
	}

	sortRecords(records)
	return records, nil
}

// Close closes the database.
func (s *BadgerStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// modify applies mutate to an existing record in one transaction and
// returns the stored result.
func (s *BadgerStorage) modify(ctx context.Context, guildID, name string, mutate func(rec *TagRecord)) (*TagRecord, error) {
	var result *TagRecord
	err := s.update(ctx, func(txn *badger.Txn) error {
		rec, err := badgerGet(txn, guildID, name)
		if err != nil {
			return err
		}
		mutate(rec)

		data, err := json.Marshal(rec)
		if err != nil {
			return &StorageError{Message: ErrMsgStorageMarshal, Name: name, Cause: err}
		}
		if err := txn.Set(badgerKey(guildID, name), data); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerStorage) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return NewStorageClosedError()
	}

	for attempt := 0; attempt < BadgerMaxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.writeMu.Lock()
		err := s.db.Update(fn)
		s.writeMu.Unlock()
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return wrapBadgerError(err)
		}
		return nil
	}
	return &StorageError{Message: ErrMsgStorageTxnRetries, Cause: badger.ErrConflict}
}

func badgerGet(txn *badger.Txn, guildID, name string) (*TagRecord, error) {
	item, err := txn.Get(badgerKey(guildID, name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, NewTagNotFoundError(guildID, name)
	}
	if err != nil {
		return nil, err
	}

	var rec TagRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, &StorageError{Message: ErrMsgStorageUnmarshal, Name: name, Cause: err}
	}
	return &rec, nil
}

// wrapBadgerError passes taxonomy and storage errors through and wraps raw
// Badger errors.
func wrapBadgerError(err error) error {
	var storageErr *StorageError
	if IsUserError(err) || errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Message: ErrMsgStorageQuery, Name: StorageDriverNameBadger, Cause: err}
}
