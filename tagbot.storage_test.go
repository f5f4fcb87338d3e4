package tagbot

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storageFactory opens a fresh, empty storage for one test.
type storageFactory func(t *testing.T) TagStorage

func newTestRecord(guildID, name string) *TagRecord {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &TagRecord{
		ID:        "tag_" + guildID + "_" + name,
		GuildID:   guildID,
		Name:      name,
		Content:   "content of " + name,
		Author:    "author-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// runStorageConformance exercises the TagStorage contract shared by every backend.
func runStorageConformance(t *testing.T, open storageFactory) {
	ctx := context.Background()

	t.Run("insert then find", func(t *testing.T) {
		s := open(t)
		rec := newTestRecord("g1", "hello")
		require.NoError(t, s.Insert(ctx, rec))

		got, err := s.FindByName(ctx, "g1", "hello")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "g1", got.GuildID)
		assert.Equal(t, "hello", got.Name)
		assert.Equal(t, rec.Content, got.Content)
		assert.Equal(t, "author-1", got.Author)
		assert.Equal(t, int64(0), got.Uses)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("duplicate insert conflicts and leaves record unchanged", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))

		dup := newTestRecord("g1", "hello")
		dup.ID = "tag_other"
		dup.Content = "other content"
		err := s.Insert(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNameConflict))

		got, err := s.FindByName(ctx, "g1", "hello")
		require.NoError(t, err)
		assert.Equal(t, "content of hello", got.Content)
	})

	t.Run("names are scoped per guild", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))
		require.NoError(t, s.Insert(ctx, newTestRecord("g2", "hello")))

		_, err := s.FindByName(ctx, "g3", "hello")
		assert.True(t, errors.Is(err, ErrTagNotFound))
	})

	t.Run("lookup is exact match", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))

		_, err := s.FindByName(ctx, "g1", "Hello")
		assert.True(t, errors.Is(err, ErrTagNotFound))
	})

	t.Run("find missing", func(t *testing.T) {
		s := open(t)
		_, err := s.FindByName(ctx, "g1", "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTagNotFound))
	})

	t.Run("update content refreshes updated_at", func(t *testing.T) {
		s := open(t)
		rec := newTestRecord("g1", "hello")
		require.NoError(t, s.Insert(ctx, rec))

		later := rec.UpdatedAt.Add(time.Hour)
		got, err := s.UpdateContent(ctx, "g1", "hello", "new content", later)
		require.NoError(t, err)
		assert.Equal(t, "new content", got.Content)
		assert.True(t, later.Equal(got.UpdatedAt))
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, "author-1", got.Author)

		stored, err := s.FindByName(ctx, "g1", "hello")
		require.NoError(t, err)
		assert.Equal(t, "new content", stored.Content)
	})

	t.Run("update author", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))

		got, err := s.UpdateAuthor(ctx, "g1", "hello", "author-2", time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, "author-2", got.Author)
		assert.Equal(t, "content of hello", got.Content)
	})

	t.Run("update missing", func(t *testing.T) {
		s := open(t)
		_, err := s.UpdateContent(ctx, "g1", "nope", "x", time.Now())
		assert.True(t, errors.Is(err, ErrTagNotFound))
		_, err = s.UpdateAuthor(ctx, "g1", "nope", "x", time.Now())
		assert.True(t, errors.Is(err, ErrTagNotFound))
	})

	t.Run("increment uses", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))

		for want := int64(1); want <= 3; want++ {
			uses, err := s.IncrementUses(ctx, "g1", "hello")
			require.NoError(t, err)
			assert.Equal(t, want, uses)
		}

		got, err := s.FindByName(ctx, "g1", "hello")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Uses)
	})

	t.Run("increment missing", func(t *testing.T) {
		s := open(t)
		_, err := s.IncrementUses(ctx, "g1", "nope")
		assert.True(t, errors.Is(err, ErrTagNotFound))
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hot")))

		const n = 50
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.IncrementUses(ctx, "g1", "hot"); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.FindByName(ctx, "g1", "hot")
		require.NoError(t, err)
		assert.Equal(t, int64(n), got.Uses)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))
		require.NoError(t, s.Delete(ctx, "g1", "hello"))

		_, err := s.FindByName(ctx, "g1", "hello")
		assert.True(t, errors.Is(err, ErrTagNotFound))

		err = s.Delete(ctx, "g1", "hello")
		assert.True(t, errors.Is(err, ErrTagNotFound))
	})

	t.Run("name can be reused after delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))
		require.NoError(t, s.Delete(ctx, "g1", "hello"))

		again := newTestRecord("g1", "hello")
		again.ID = "tag_again"
		require.NoError(t, s.Insert(ctx, again))
	})

	t.Run("list is sorted and scoped", func(t *testing.T) {
		s := open(t)
		for _, name := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, s.Insert(ctx, newTestRecord("g1", name)))
		}
		require.NoError(t, s.Insert(ctx, newTestRecord("g2", "other")))

		records, err := s.List(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "alpha", records[0].Name)
		assert.Equal(t, "mid", records[1].Name)
		assert.Equal(t, "zeta", records[2].Name)

		empty, err := s.List(ctx, "g-empty")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))

		got, err := s.FindByName(ctx, "g1", "hello")
		require.NoError(t, err)
		got.Content = "mutated"

		again, err := s.FindByName(ctx, "g1", "hello")
		require.NoError(t, err)
		assert.Equal(t, "content of hello", again.Content)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		s := open(t)
		err := s.Insert(ctx, newTestRecord("", "hello"))
		require.Error(t, err)
		var storageErr *StorageError
		assert.True(t, errors.As(err, &storageErr))
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.FindByName(cctx, "g1", "hello")
		require.Error(t, err)
	})

	t.Run("closed storage", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())

		_, err := s.FindByName(ctx, "g1", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrMsgStorageClosed)
	})
}

func TestMemoryStorage_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) TagStorage {
		return NewMemoryStorage()
	})
}

func TestBadgerStorage_InMemory_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) TagStorage {
		s, err := NewBadgerStorage(InMemoryDSN)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStorage_Disk_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) TagStorage {
		s, err := NewBadgerStorage(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStorage_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) TagStorage {
		config := DefaultSQLConfig()
		config.ConnectionString = filepath.Join(t.TempDir(), "tags.db")
		config.AutoMigrate = true
		s, err := NewSQLiteStorage(config)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestFilesystemStorage_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) TagStorage {
		s, err := NewFilesystemStorage(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestFilesystemStorage_Layout(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "nested", "tags")

	s, err := NewFilesystemStorage(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())

	t.Run("guild IDs with path characters stay inside the root", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, newTestRecord("../escape", "hello")))
		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, hex.EncodeToString([]byte("../escape"))+FilesystemGuildSuffix, entries[0].Name())
	})

	t.Run("deleting the last tag removes the guild file", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "../escape", "hello"))
		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("data survives reopen", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, newTestRecord("g1", "kept")))
		_, err := s.IncrementUses(ctx, "g1", "kept")
		require.NoError(t, err)
		require.NoError(t, s.Close())

		reopened, err := OpenStorage(StorageDriverNameFilesystem, root)
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.FindByName(ctx, "g1", "kept")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Uses)
	})

	t.Run("corrupt guild file", func(t *testing.T) {
		dir := t.TempDir()
		fsStorage, err := NewFilesystemStorage(dir)
		require.NoError(t, err)
		defer fsStorage.Close()

		path := filepath.Join(dir, hex.EncodeToString([]byte("g1"))+FilesystemGuildSuffix)
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err = fsStorage.FindByName(ctx, "g1", "x")
		var storageErr *StorageError
		require.True(t, errors.As(err, &storageErr))
		assert.Equal(t, ErrMsgStorageUnmarshal, storageErr.Message)
	})

	t.Run("empty root", func(t *testing.T) {
		_, err := NewFilesystemStorage("")
		var storageErr *StorageError
		require.True(t, errors.As(err, &storageErr))
		assert.Equal(t, ErrMsgInvalidStorageRoot, storageErr.Message)
	})
}

func TestCachedStorage_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) TagStorage {
		return NewCachedStorage(NewMemoryStorage(), DefaultCacheConfig(), nil)
	})
}

func TestBadgerStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBadgerStorage(dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))
	_, err = s.IncrementUses(ctx, "g1", "hello")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewBadgerStorage(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FindByName(ctx, "g1", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Uses)
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	ctx := context.Background()
	config := DefaultSQLConfig()
	config.ConnectionString = filepath.Join(t.TempDir(), "tags.db")
	config.AutoMigrate = true

	s, err := NewSQLiteStorage(config)
	require.NoError(t, err)
	defer s.Close()

	t.Run("schema version after open", func(t *testing.T) {
		version, err := s.CurrentSchemaVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, version)
	})

	t.Run("running migrations again is a no-op", func(t *testing.T) {
		require.NoError(t, s.RunMigrations(ctx))
		version, err := s.CurrentSchemaVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, version)
	})

	t.Run("driver name", func(t *testing.T) {
		assert.Equal(t, StorageDriverNameSQLite, s.Driver())
	})
}

func TestSQLiteStorage_InMemoryDSN(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStorage(StorageDriverNameSQLite, InMemoryDSN)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(ctx, newTestRecord("g1", "hello")))
	got, err := s.FindByName(ctx, "g1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Name)
}

func TestStorageDriverRegistry(t *testing.T) {
	t.Run("built-in drivers are registered", func(t *testing.T) {
		drivers := ListStorageDrivers()
		assert.Equal(t, []string{
			StorageDriverNameBadger,
			StorageDriverNameFilesystem,
			StorageDriverNameMemory,
			StorageDriverNamePostgres,
			StorageDriverNameSQLite,
		}, drivers)
	})

	t.Run("open memory", func(t *testing.T) {
		s, err := OpenStorage(StorageDriverNameMemory, "")
		require.NoError(t, err)
		assert.IsType(t, &MemoryStorage{}, s)
		require.NoError(t, s.Close())
	})

	t.Run("open badger in memory", func(t *testing.T) {
		s, err := OpenStorage(StorageDriverNameBadger, InMemoryDSN)
		require.NoError(t, err)
		assert.IsType(t, &BadgerStorage{}, s)
		require.NoError(t, s.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStorage("nope", "")
		require.Error(t, err)
		var storageErr *StorageError
		require.True(t, errors.As(err, &storageErr))
		assert.Equal(t, ErrMsgStorageDriverNotFound, storageErr.Message)
		assert.Equal(t, "nope", storageErr.Name)
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		assert.Panics(t, func() {
			RegisterStorageDriver(StorageDriverNameMemory, &MemoryStorageDriver{})
		})
	})

	t.Run("nil driver panics", func(t *testing.T) {
		assert.Panics(t, func() {
			RegisterStorageDriver(fmt.Sprintf("nil-%d", time.Now().UnixNano()), nil)
		})
	})
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name string
		err  *StorageError
		want string
	}{
		{name: "message only", err: &StorageError{Message: "boom"}, want: "boom"},
		{name: "with name", err: &StorageError{Message: "boom", Name: "sqlite"}, want: "boom: sqlite"},
		{name: "with cause", err: &StorageError{Message: "boom", Name: "sqlite", Cause: cause}, want: "boom: sqlite: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	t.Run("unwrap", func(t *testing.T) {
		err := &StorageError{Message: "boom", Cause: cause}
		assert.True(t, errors.Is(err, cause))
	})
}
