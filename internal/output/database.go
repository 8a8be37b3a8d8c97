// internal/output/database.go
package output

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/openshelf/bookscraper/pkg/types"
)

// tableNames maps each record variant to its table. Books, authors and
// profiles are keyed by their natural identity and upserted; reviews are
// append-only because one user contributes many of them.
var tableNames = map[types.RecordVariant]string{
	types.VariantBook:        "books",
	types.VariantAuthor:      "authors",
	types.VariantUserProfile: "user_profiles",
	types.VariantUserReview:  "user_reviews",
}

func keyedVariant(variant types.RecordVariant) bool {
	return variant != types.VariantUserReview
}

// sqlDialect captures the statement shapes that differ between engines.
type sqlDialect struct {
	driver string
	// createTable renders the DDL for a variant table.
	createTable func(table string, keyed bool) string
	// insert renders the insert (or upsert, when keyed) statement with
	// three parameters: key, payload, ingest_time.
	insert func(table string, keyed bool) string
}

// SQLWriter persists records into one table per variant, storing the full
// record as a JSON payload beside its key and ingest time. Safe for
// concurrent use; writes are serialized so each batch commits alone.
type SQLWriter struct {
	db      *sql.DB
	dialect sqlDialect

	mu     sync.Mutex
	ready  map[string]bool
	closed bool
}

func newSQLWriter(db *sql.DB, dialect sqlDialect) (*SQLWriter, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.driver, err)
	}
	return &SQLWriter{
		db:      db,
		dialect: dialect,
		ready:   make(map[string]bool),
	}, nil
}

// Write inserts a mixed batch inside one transaction.
func (w *SQLWriter) Write(records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	grouped := splitByVariant(records)
	for variant := range grouped {
		if err := w.ensureTable(variant); err != nil {
			return err
		}
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, variant := range types.ValidVariants() {
		batch := grouped[variant]
		if len(batch) == 0 {
			continue
		}
		table := tableNames[variant]
		stmt, err := tx.Prepare(w.dialect.insert(table, keyedVariant(variant)))
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", table, err)
		}
		for _, record := range batch {
			doc, err := document(record)
			if err != nil {
				stmt.Close()
				return err
			}
			ingestTime := doc["ingest_time"]
			payload, err := json.Marshal(doc)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("encode %s payload: %w", variant, err)
			}
			if _, err := stmt.Exec(record.Key(), string(payload), ingestTime); err != nil {
				stmt.Close()
				return fmt.Errorf("insert into %s: %w", table, err)
			}
		}
		stmt.Close()
	}

	return tx.Commit()
}

func (w *SQLWriter) ensureTable(variant types.RecordVariant) error {
	table := tableNames[variant]
	if w.ready[table] {
		return nil
	}
	ddl := w.dialect.createTable(table, keyedVariant(variant))
	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	w.ready[table] = true
	return nil
}

// Flush is a no-op; every Write commits its own transaction.
func (w *SQLWriter) Flush() error { return nil }

// Close closes the database connection.
func (w *SQLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db != nil && !w.closed {
		err := w.db.Close()
		w.closed = true
		return err
	}
	return nil
}
