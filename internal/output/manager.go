// internal/output/manager.go
package output

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/internal/config"
	"github.com/openshelf/bookscraper/pkg/types"
)

// Manager fans records out to every configured sink.
type Manager struct {
	sinks []Sink
	log   *logrus.Logger
}

// NewManager builds the sinks named in the output configuration.
func NewManager(cfg *config.OutputConfig, log *logrus.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("output configuration is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Manager{log: log}
	for _, format := range cfg.Formats {
		sink, err := buildSink(format, cfg)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("configure %s output: %w", format, err)
		}
		m.sinks = append(m.sinks, sink)
	}
	if len(m.sinks) == 0 {
		return nil, fmt.Errorf("no output formats configured")
	}
	return m, nil
}

func buildSink(format string, cfg *config.OutputConfig) (Sink, error) {
	switch format {
	case "jsonlines":
		return NewJSONLinesWriter(cfg.Directory, cfg.FileSuffix)
	case "sqlite":
		return NewSQLiteWriter(cfg.SQLitePath)
	case "postgres":
		return NewPostgreSQLWriter(cfg.PostgresURL)
	case "mysql":
		return NewMySQLWriter(cfg.MySQLDSN)
	case "mongodb":
		return NewMongoDBWriter(cfg.MongoURI, cfg.MongoDatabase)
	case "excel":
		file := cfg.ExcelFile
		if file == "" {
			file = filepath.Join(cfg.Directory, "records.xlsx")
		}
		return NewExcelWriter(file)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Write delivers the batch to every sink. The first failure aborts the
// batch; sinks already written keep their copy.
func (m *Manager) Write(records []types.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, sink := range m.sinks {
		if err := sink.Write(records); err != nil {
			return err
		}
	}
	m.log.WithField("records", len(records)).Debug("persisted batch")
	return nil
}

// Flush flushes every sink.
func (m *Manager) Flush() error {
	for _, sink := range m.sinks {
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, returning the first error seen.
func (m *Manager) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.sinks = nil
	return firstErr
}
