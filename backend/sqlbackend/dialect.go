package sqlbackend

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect captures what differs between the SQL engines the backend runs on.
type Dialect struct {
	// Name selects the embedded migration directory.
	Name string
	// DriverName is passed to sql.Open.
	DriverName string

	createMigrationTable string
	recordMigration      string

	// isDuplicate reports a primary key violation.
	isDuplicate func(err error) bool
	// isContention reports a lost lock or serialization race that must be
	// surfaced as a condition failure.
	isContention func(err error) bool
}

// SQLite uses the pure Go modernc.org/sqlite driver.
var SQLite = Dialect{
	Name:       "sqlite",
	DriverName: "sqlite",
	createMigrationTable: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`,
	recordMigration: "INSERT OR IGNORE INTO schema_migrations (name, applied_at) VALUES (?, ?)",
	isDuplicate: func(err error) bool {
		var sqliteErr *msqlite.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.Code() {
			case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
				return true
			}
		}
		return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
	},
	isContention: func(err error) bool {
		return false
	},
}

// MySQL uses github.com/go-sql-driver/mysql with InnoDB tables.
var MySQL = Dialect{
	Name:       "mysql",
	DriverName: "mysql",
	createMigrationTable: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name VARCHAR(255) PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`,
	recordMigration: "INSERT IGNORE INTO schema_migrations (name, applied_at) VALUES (?, ?)",
	isDuplicate: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
	},
	isContention: func(err error) bool {
		var mysqlErr *mysql.MySQLError
		// 1213: deadlock found, the transaction was rolled back
		return errors.As(err, &mysqlErr) && mysqlErr.Number == 1213
	},
}
