// internal/output/jsonlines.go
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openshelf/bookscraper/pkg/types"
)

// JSONLinesWriter appends records to one JSON-lines file per variant, so a
// crawl that yields books, authors and reviews lands each in its own file.
// Files are named "<variant>_<suffix>.jl" under the output directory.
// Safe for concurrent use; one sink may be shared by several sessions.
type JSONLinesWriter struct {
	dir    string
	suffix string

	mu      sync.Mutex
	files   map[types.RecordVariant]*os.File
	writers map[types.RecordVariant]*bufio.Writer
}

// NewJSONLinesWriter creates a segregating JSON-lines writer. Files are
// opened lazily, so variants that never occur leave no empty files behind.
func NewJSONLinesWriter(dir, suffix string) (*JSONLinesWriter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &JSONLinesWriter{
		dir:     dir,
		suffix:  suffix,
		files:   make(map[types.RecordVariant]*os.File),
		writers: make(map[types.RecordVariant]*bufio.Writer),
	}, nil
}

// Write appends each record to its variant's file.
func (w *JSONLinesWriter) Write(records []types.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, record := range records {
		doc, err := document(record)
		if err != nil {
			return err
		}
		line, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s line: %w", record.Variant(), err)
		}
		out, err := w.writerFor(record.Variant())
		if err != nil {
			return err
		}
		if _, err := out.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("append %s line: %w", record.Variant(), err)
		}
	}
	return nil
}

// FileName returns the path a variant's records are written to.
func (w *JSONLinesWriter) FileName(variant types.RecordVariant) string {
	name := string(variant)
	if w.suffix != "" {
		name += "_" + w.suffix
	}
	return filepath.Join(w.dir, name+".jl")
}

func (w *JSONLinesWriter) writerFor(variant types.RecordVariant) (*bufio.Writer, error) {
	if out, ok := w.writers[variant]; ok {
		return out, nil
	}
	file, err := os.OpenFile(w.FileName(variant), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s output: %w", variant, err)
	}
	w.files[variant] = file
	w.writers[variant] = bufio.NewWriter(file)
	return w.writers[variant], nil
}

// Flush drains buffered lines to disk.
func (w *JSONLinesWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *JSONLinesWriter) flushLocked() error {
	for variant, out := range w.writers {
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flush %s output: %w", variant, err)
		}
	}
	return nil
}

// Close flushes and closes every open file.
func (w *JSONLinesWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	var firstErr error
	for variant, file := range w.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s output: %w", variant, err)
		}
	}
	w.files = make(map[types.RecordVariant]*os.File)
	w.writers = make(map[types.RecordVariant]*bufio.Writer)
	return firstErr
}
