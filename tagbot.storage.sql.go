package tagbot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SQLConfig configures the SQL-backed storages (postgres and sqlite).
type SQLConfig struct {
	// ConnectionString is the driver DSN.
	ConnectionString string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 25 (forced to 1 for sqlite).
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime.
	// Default: 5 minutes (unlimited for sqlite).
	ConnMaxLifetime time.Duration

	// TablePrefix prefixes every table name.
	// Default: "tagbot_"
	TablePrefix string

	// AutoMigrate applies pending migrations when the storage opens.
	AutoMigrate bool

	// QueryTimeout bounds every statement.
	// Default: 30 seconds
	QueryTimeout time.Duration
}

// DefaultSQLConfig returns a configuration with defaults filled in.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		MaxOpenConns:    SQLDefaultMaxOpenConns,
		MaxIdleConns:    SQLDefaultMaxIdleConns,
		ConnMaxLifetime: SQLDefaultConnMaxLifetime,
		TablePrefix:     SQLTablePrefix,
		QueryTimeout:    SQLDefaultQueryTimeout,
	}
}

func (c SQLConfig) withDefaults() SQLConfig {
	d := DefaultSQLConfig()
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if c.TablePrefix == "" {
		c.TablePrefix = d.TablePrefix
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	return c
}

// sqlDialect captures what differs between the SQL backends. Queries are
// written with $N placeholders and rebound per dialect.
type sqlDialect struct {
	name       string
	rebind     func(query string) string
	encodeTime func(t time.Time) any
	migrations func(table string) []sqlMigration
}

type sqlMigration struct {
	Version     int
	Description string
	Statements  []string
}

// SQLStorage implements TagStorage on database/sql. Uniqueness is enforced by
// a (guild_id, name) unique constraint, updates use UPDATE ... RETURNING so a
// find-and-modify is one statement, and IncrementUses is "uses = uses + 1".
type SQLStorage struct {
	db      *sql.DB
	dialect sqlDialect
	config  SQLConfig
	mu      sync.RWMutex
	closed  bool
}

func openSQLStorage(driverName string, dialect sqlDialect, config SQLConfig) (*SQLStorage, error) {
	if config.ConnectionString == "" {
		return nil, &StorageError{Message: ErrMsgStorageEmptyConnString, Name: dialect.name}
	}

	db, err := sql.Open(driverName, config.ConnectionString)
	if err != nil {
		return nil, &StorageError{Message: ErrMsgStorageOpen, Name: dialect.name, Cause: err}
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &StorageError{Message: ErrMsgStorageOpen, Name: dialect.name, Cause: err}
	}

	storage := &SQLStorage{
		db:      db,
		dialect: dialect,
		config:  config,
	}

	if config.AutoMigrate {
		if err := storage.RunMigrations(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return storage, nil
}

// Driver returns the dialect name ("postgres" or "sqlite").
func (s *SQLStorage) Driver() string {
	return s.dialect.name
}

func (s *SQLStorage) tableName() string {
	return s.config.TablePrefix + "tags"
}

func (s *SQLStorage) migrationsTableName() string {
	return s.config.TablePrefix + "schema_migrations"
}

const sqlTagColumns = "id, guild_id, name, content, author, created_at, updated_at, uses"

// Insert stores a new record; a unique-key collision inserts nothing.
func (s *SQLStorage) Insert(ctx context.Context, rec *TagRecord) error {
	if err := validateKey(rec.GuildID, rec.Name); err != nil {
		return err
	}

	return s.withConn(ctx, func(ctx context.Context) error {
		query := s.dialect.rebind(fmt.Sprintf(`
			INSERT INTO %s (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (guild_id, name) DO NOTHING`, s.tableName(), sqlTagColumns))

		res, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.GuildID, rec.Name, rec.Content, rec.Author,
			s.dialect.encodeTime(rec.CreatedAt), s.dialect.encodeTime(rec.UpdatedAt), rec.Uses)
		if err != nil {
			return s.queryError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return s.queryError(err)
		}
		if n == 0 {
			return NewTagExistsError(rec.GuildID, rec.Name)
		}
		return nil
	})
}

// FindByName reads one record.
func (s *SQLStorage) FindByName(ctx context.Context, guildID, name string) (*TagRecord, error) {
	var rec *TagRecord
	err := s.withConn(ctx, func(ctx context.Context) error {
		query := s.dialect.rebind(fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE guild_id = $1 AND name = $2`, sqlTagColumns, s.tableName()))

		var err error
		rec, err = s.scanRecord(s.db.QueryRowContext(ctx, query, guildID, name), guildID, name)
		return err
	})
	return rec, err
}

// UpdateContent sets content and updatedAt in one statement.
func (s *SQLStorage) UpdateContent(ctx context.Context, guildID, name, content string, updatedAt time.Time) (*TagRecord, error) {
	return s.updateReturning(ctx, guildID, name, "content", content, updatedAt)
}

// UpdateAuthor sets author and updatedAt in one statement.
func (s *SQLStorage) UpdateAuthor(ctx context.Context, guildID, name, author string, updatedAt time.Time) (*TagRecord, error) {
	return s.updateReturning(ctx, guildID, name, "author", author, updatedAt)
}

// IncrementUses applies the delta in the database.
func (s *SQLStorage) IncrementUses(ctx context.Context, guildID, name string) (int64, error) {
	var uses int64
	err := s.withConn(ctx, func(ctx context.Context) error {
		query := s.dialect.rebind(fmt.Sprintf(`
			UPDATE %s SET uses = uses + 1
			WHERE guild_id = $1 AND name = $2
			RETURNING uses`, s.tableName()))

		err := s.db.QueryRowContext(ctx, query, guildID, name).Scan(&uses)
		if errors.Is(err, sql.ErrNoRows) {
			return NewTagNotFoundError(guildID, name)
		}
		if err != nil {
			return s.queryError(err)
		}
		return nil
	})
	return uses, err
}

// Delete removes a record.
func (s *SQLStorage) Delete(ctx context.Context, guildID, name string) error {
	return s.withConn(ctx, func(ctx context.Context) error {
		query := s.dialect.rebind(fmt.Sprintf(`
			DELETE FROM %s WHERE guild_id = $1 AND name = $2`, s.tableName()))

		res, err := s.db.ExecContext(ctx, query, guildID, name)
		if err != nil {
			return s.queryError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return s.queryError(err)
		}
		if n == 0 {
			return NewTagNotFoundError(guildID, name)
		}
		return nil
	})
}

// List returns all records in the guild ordered by name.
func (s *SQLStorage) List(ctx context.Context, guildID string) ([]*TagRecord, error) {
	records := []*TagRecord{}
	err := s.withConn(ctx, func(ctx context.Context) error {
		query := s.dialect.rebind(fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE guild_id = $1
			ORDER BY name`, sqlTagColumns, s.tableName()))

		rows, err := s.db.QueryContext(ctx, query, guildID)
		if err != nil {
			return s.queryError(err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := s.scanRecord(rows, guildID, "")
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return s.queryError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the connection pool.
func (s *SQLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// RunMigrations applies pending schema migrations, each in its own transaction.
func (s *SQLStorage) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version     INTEGER PRIMARY KEY,
			description VARCHAR(255),
			applied_at  VARCHAR(64)
		)`, s.migrationsTableName())); err != nil {
		return &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range s.dialect.migrations(s.tableName()) {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// appliedMigrations reads the applied versions and releases the connection
// before any migration starts (sqlite runs with a single connection).
func (s *SQLStorage) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT version FROM %s", s.migrationsTableName()))
	if err != nil {
		return nil, &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
	}
	return applied, nil
}

func (s *SQLStorage) applyMigration(ctx context.Context, m sqlMigration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
	}

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &StorageError{
				Message: ErrMsgStorageMigration,
				Name:    s.dialect.name,
				Cause:   fmt.Errorf("migration %d failed: %w", m.Version, err),
			}
		}
	}

	insert := s.dialect.rebind(fmt.Sprintf(
		"INSERT INTO %s (version, description, applied_at) VALUES ($1, $2, $3)", s.migrationsTableName()))
	if _, err := tx.ExecContext(ctx, insert, m.Version, m.Description, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Message: ErrMsgStorageMigration, Name: s.dialect.name, Cause: err}
	}
	return nil
}

// CurrentSchemaVersion returns the highest applied migration version.
func (s *SQLStorage) CurrentSchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(version) FROM %s", s.migrationsTableName())).Scan(&version)
	if err != nil {
		return 0, &StorageError{Message: ErrMsgStorageQuery, Name: s.dialect.name, Cause: err}
	}
	return int(version.Int64), nil
}

func (s *SQLStorage) updateReturning(ctx context.Context, guildID, name, column, value string, updatedAt time.Time) (*TagRecord, error) {
	var rec *TagRecord
	err := s.withConn(ctx, func(ctx context.Context) error {
		query := s.dialect.rebind(fmt.Sprintf(`
			UPDATE %s SET %s = $1, updated_at = $2
			WHERE guild_id = $3 AND name = $4
			RETURNING %s`, s.tableName(), column, sqlTagColumns))

		var err error
		rec, err = s.scanRecord(
			s.db.QueryRowContext(ctx, query, value, s.dialect.encodeTime(updatedAt), guildID, name),
			guildID, name)
		return err
	})
	return rec, err
}

// withConn checks state and applies the query timeout.
func (s *SQLStorage) withConn(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return NewStorageClosedError()
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	return fn(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStorage) scanRecord(row rowScanner, guildID, name string) (*TagRecord, error) {
	var (
		rec       TagRecord
		createdAt sqlTime
		updatedAt sqlTime
	)
	err := row.Scan(&rec.ID, &rec.GuildID, &rec.Name, &rec.Content, &rec.Author, &createdAt, &updatedAt, &rec.Uses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewTagNotFoundError(guildID, name)
	}
	if err != nil {
		return nil, s.queryError(err)
	}
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	return &rec, nil
}

func (s *SQLStorage) queryError(err error) error {
	return &StorageError{Message: ErrMsgStorageQuery, Name: s.dialect.name, Cause: err}
}

// sqlTime scans TIMESTAMPTZ values (postgres) and RFC 3339 text (sqlite).
type sqlTime struct {
	Time time.Time
}

// Scan implements sql.Scanner.
func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("%s: unsupported time type %T", ErrMsgStorageUnmarshal, src)
	}
	return nil
}

func (t *sqlTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrMsgStorageUnmarshal, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// rebindQuestion turns $N placeholders into SQLite's ?N form.
func rebindQuestion(query string) string {
	return strings.ReplaceAll(query, "$", "?")
}

func rebindNone(query string) string {
	return query
}
