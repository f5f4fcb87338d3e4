package tagbot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TagStorage is the document-store boundary for tag records. Every operation
// is scoped to one guild and filters by exact tag name.
// Implementations must be safe for concurrent use, and each call must be
// atomic: a failed call leaves no partial write behind.
type TagStorage interface {
	// Insert stores a new record. Returns an ErrNameConflict error if a tag
	// with the same (GuildID, Name) exists.
	Insert(ctx context.Context, rec *TagRecord) error

	// FindByName returns the record or an ErrTagNotFound error.
	FindByName(ctx context.Context, guildID, name string) (*TagRecord, error)

	// UpdateContent sets content and updatedAt and returns the updated record.
	UpdateContent(ctx context.Context, guildID, name, content string, updatedAt time.Time) (*TagRecord, error)

	// UpdateAuthor sets author and updatedAt and returns the updated record.
	UpdateAuthor(ctx context.Context, guildID, name, author string, updatedAt time.Time) (*TagRecord, error)

	// IncrementUses adds one to uses as a single atomic delta and returns the
	// new count. It does not touch updatedAt.
	IncrementUses(ctx context.Context, guildID, name string) (int64, error)

	// Delete removes the record or returns an ErrTagNotFound error.
	Delete(ctx context.Context, guildID, name string) error

	// List returns every record in the guild ordered by name.
	List(ctx context.Context, guildID string) ([]*TagRecord, error)

	// Close releases resources. The storage must not be used afterwards.
	Close() error
}

// StorageDriver opens a TagStorage from a driver-specific connection string.
type StorageDriver interface {
	Open(connectionString string) (TagStorage, error)
}

var (
	storageDriversMu sync.RWMutex
	storageDrivers   = make(map[string]StorageDriver)
)

// RegisterStorageDriver makes a driver available to OpenStorage. It is called
// from driver init functions and panics on nil or duplicate registration.
func RegisterStorageDriver(name string, driver StorageDriver) {
	storageDriversMu.Lock()
	defer storageDriversMu.Unlock()

	if driver == nil {
		panic(ErrMsgNilStorageDriver)
	}
	if _, exists := storageDrivers[name]; exists {
		panic(ErrMsgDriverAlreadyRegistered + ": " + name)
	}
	storageDrivers[name] = driver
}

// OpenStorage opens storage through a registered driver.
//
//	storage, err := tagbot.OpenStorage("memory", "")
//	storage, err := tagbot.OpenStorage("badger", "/var/lib/tagbot")
//	storage, err := tagbot.OpenStorage("filesystem", "./tags")
//	storage, err := tagbot.OpenStorage("postgres", "postgres://user:pw@host/db?sslmode=disable")
func OpenStorage(driverName, connectionString string) (TagStorage, error) {
	storageDriversMu.RLock()
	driver, ok := storageDrivers[driverName]
	storageDriversMu.RUnlock()

	if !ok {
		return nil, NewStorageDriverNotFoundError(driverName)
	}
	return driver.Open(connectionString)
}

// ListStorageDrivers returns the registered driver names in sorted order.
func ListStorageDrivers() []string {
	storageDriversMu.RLock()
	defer storageDriversMu.RUnlock()

	names := make([]string, 0, len(storageDrivers))
	for name := range storageDrivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Storage error messages
const (
	ErrMsgNilStorageDriver        = "storage driver is nil"
	ErrMsgDriverAlreadyRegistered = "storage driver already registered"
	ErrMsgStorageDriverNotFound   = "storage driver not found"
	ErrMsgStorageClosed           = "storage is closed"
	ErrMsgEmptyGuildID            = "guild ID cannot be empty"
	ErrMsgEmptyTagName            = "tag name cannot be empty"
	ErrMsgStorageMarshal          = "failed to encode tag record"
	ErrMsgStorageUnmarshal        = "failed to decode tag record"
	ErrMsgStorageQuery            = "storage query failed"
	ErrMsgStorageOpen             = "failed to open storage"
	ErrMsgStorageMigration        = "storage migration failed"
	ErrMsgStorageEmptyConnString  = "storage connection string is empty"
	ErrMsgStorageTxnRetries       = "storage transaction retries exhausted"
	ErrMsgInvalidStorageRoot      = "storage root directory is empty"
	ErrMsgCreateStorageDir        = "failed to create storage directory"
	ErrMsgReadGuildFile           = "failed to read guild file"
	ErrMsgWriteGuildFile          = "failed to write guild file"
)

// StorageError is a backend fault (as opposed to a taxonomy error such as
// ErrTagNotFound).
type StorageError struct {
	Message string
	Name    string
	Cause   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	msg := e.Message
	if e.Name != "" {
		msg += ": " + e.Name
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageDriverNotFoundError reports an unknown driver name.
func NewStorageDriverNotFoundError(name string) error {
	return &StorageError{Message: ErrMsgStorageDriverNotFound, Name: name}
}

// NewStorageClosedError reports use of a closed storage.
func NewStorageClosedError() error {
	return &StorageError{Message: ErrMsgStorageClosed}
}

// validateKey checks the (guild, name) pair every storage call filters on.
func validateKey(guildID, name string) error {
	if guildID == "" {
		return &StorageError{Message: ErrMsgEmptyGuildID}
	}
	if name == "" {
		return &StorageError{Message: ErrMsgEmptyTagName}
	}
	return nil
}

// sortRecords orders records by name for List.
func sortRecords(records []*TagRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
}
