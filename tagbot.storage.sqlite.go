package tagbot

import (
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// SQLite connection pragmas appended to file DSNs without their own query.
const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// SQLiteStorageDriver opens SQLite-backed storage.
type SQLiteStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameSQLite, &SQLiteStorageDriver{})
}

// Open treats the connection string as a database file path (or ":memory:")
// and migrates the schema.
func (d *SQLiteStorageDriver) Open(connectionString string) (TagStorage, error) {
	config := DefaultSQLConfig()
	config.ConnectionString = connectionString
	config.AutoMigrate = true
	return NewSQLiteStorage(config)
}

// NewSQLiteStorage opens a SQLite database. The pool is pinned to a single
// connection that never expires: SQLite serializes writers anyway, and an
// in-memory database lives exactly as long as its connection.
func NewSQLiteStorage(config SQLConfig) (*SQLStorage, error) {
	config = config.withDefaults()
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1
	config.ConnMaxLifetime = 0
	config.ConnectionString = sqliteDSN(config.ConnectionString)
	return openSQLStorage(SQLiteDriverName, sqliteDialect, config)
}

func sqliteDSN(dsn string) string {
	if dsn == "" || dsn == InMemoryDSN || strings.Contains(dsn, "?") {
		return dsn
	}
	return "file:" + dsn + sqlitePragmas
}

var sqliteDialect = sqlDialect{
	name:   StorageDriverNameSQLite,
	rebind: rebindQuestion,
	encodeTime: func(t time.Time) any {
		return t.UTC().Format(time.RFC3339Nano)
	},
	migrations: func(table string) []sqlMigration {
		return []sqlMigration{
			{
				Version:     1,
				Description: "create tags table",
				Statements: []string{
					fmt.Sprintf(`
						CREATE TABLE IF NOT EXISTS %s (
							id         TEXT    PRIMARY KEY,
							guild_id   TEXT    NOT NULL,
							name       TEXT    NOT NULL,
							content    TEXT    NOT NULL,
							author     TEXT    NOT NULL,
							created_at TEXT    NOT NULL,
							updated_at TEXT    NOT NULL,
							uses       INTEGER NOT NULL DEFAULT 0 CHECK (uses >= 0),
							UNIQUE (guild_id, name)
						)`, table),
					fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_author ON %s (guild_id, author)`, table, table),
				},
			},
		}
	},
}
