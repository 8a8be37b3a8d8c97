// internal/output/sqlite.go
package output

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// NewSQLiteWriter opens (creating if needed) a SQLite database file.
func NewSQLiteWriter(databasePath string) (*SQLWriter, error) {
	if databasePath == "" {
		return nil, fmt.Errorf("SQLite database path is required")
	}
	if dir := filepath.Dir(databasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return newSQLWriter(db, sqliteDialect)
}

var sqliteDialect = sqlDialect{
	driver: "sqlite3",
	createTable: func(table string, keyed bool) string {
		keyConstraint := ""
		if keyed {
			keyConstraint = " UNIQUE"
		}
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				record_key TEXT NOT NULL%s,
				payload TEXT NOT NULL,
				ingest_time TEXT NOT NULL
			)`, table, keyConstraint)
	},
	insert: func(table string, keyed bool) string {
		if keyed {
			return fmt.Sprintf(
				"INSERT OR REPLACE INTO %s (record_key, payload, ingest_time) VALUES (?, ?, ?)", table)
		}
		return fmt.Sprintf(
			"INSERT INTO %s (record_key, payload, ingest_time) VALUES (?, ?, ?)", table)
	},
}
