// internal/output/mysql.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// NewMySQLWriter connects to MySQL using a DSN
// ("user:pass@tcp(host:3306)/db?parseTime=true").
func NewMySQLWriter(dsn string) (*SQLWriter, error) {
	if dsn == "" {
		return nil, fmt.Errorf("MySQL DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLWriter(db, mysqlDialect)
}

var mysqlDialect = sqlDialect{
	driver: "mysql",
	createTable: func(table string, keyed bool) string {
		keyConstraint := ""
		if keyed {
			// Prefix length keeps the unique index under MySQL's key limit
			// for long URLs.
			keyConstraint = ", UNIQUE KEY record_key_idx (record_key(255))"
		}
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				record_key TEXT NOT NULL,
				payload JSON NOT NULL,
				ingest_time DATETIME NOT NULL%s
			)`, table, keyConstraint)
	},
	insert: func(table string, keyed bool) string {
		if keyed {
			return fmt.Sprintf(`
				INSERT INTO %s (record_key, payload, ingest_time) VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE payload = VALUES(payload), ingest_time = VALUES(ingest_time)`, table)
		}
		return fmt.Sprintf(
			"INSERT INTO %s (record_key, payload, ingest_time) VALUES (?, ?, ?)", table)
	},
}
