// internal/output/excel.go
package output

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/openshelf/bookscraper/pkg/types"
)

// ExcelWriter collects records into one worksheet per variant and saves the
// workbook on Close. Intended for small exports that get eyeballed, not for
// full crawl dumps. Safe for concurrent use.
type ExcelWriter struct {
	filename string

	mu       sync.Mutex
	workbook *excelize.File
	rows     map[types.RecordVariant]int
	closed   bool
}

// NewExcelWriter creates an Excel workbook writer.
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("Excel filename is required")
	}
	return &ExcelWriter{
		filename: filename,
		workbook: excelize.NewFile(),
		rows:     make(map[types.RecordVariant]int),
	}, nil
}

// Write appends each record as a row on its variant's sheet.
func (w *ExcelWriter) Write(records []types.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, record := range records {
		variant := record.Variant()
		sheet := tableNames[variant]

		if w.rows[variant] == 0 {
			if _, err := w.workbook.NewSheet(sheet); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet, err)
			}
			if err := w.writeRow(sheet, 1, headerCells(variant)); err != nil {
				return err
			}
			w.rows[variant] = 1
		}

		doc, err := document(record)
		if err != nil {
			return err
		}
		cells := make([]interface{}, 0, len(variantColumns[variant]))
		for _, column := range variantColumns[variant] {
			cells = append(cells, cellValue(doc[column]))
		}
		w.rows[variant]++
		if err := w.writeRow(sheet, w.rows[variant], cells); err != nil {
			return err
		}
	}
	return nil
}

func (w *ExcelWriter) writeRow(sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("address row %d: %w", row, err)
	}
	if err := w.workbook.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d on %s: %w", row, sheet, err)
	}
	return nil
}

func headerCells(variant types.RecordVariant) []interface{} {
	columns := variantColumns[variant]
	cells := make([]interface{}, len(columns))
	for i, column := range columns {
		cells[i] = column
	}
	return cells
}

// cellValue flattens nested values (genres, histograms) into JSON text so
// every cell holds a scalar.
func cellValue(value interface{}) interface{} {
	switch value.(type) {
	case nil, string, bool, float64, int, int64:
		return value
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(raw)
	}
}

// Flush saves the workbook in its current state.
func (w *ExcelWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveLocked()
}

func (w *ExcelWriter) saveLocked() error {
	if err := w.workbook.SaveAs(w.filename); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// Close saves the workbook and releases it.
func (w *ExcelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.saveLocked(); err != nil {
		return err
	}
	return w.workbook.Close()
}
