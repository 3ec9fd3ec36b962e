// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/realyield/auctionwatch/pkg/types"
)

// CSVWriter writes records to a CSV artifact. The header row is always
// written, so a run with zero records still produces a valid artifact.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates the artifact file.
func NewCSVWriter(path string) (*CSVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
	}, nil
}

// Write writes the header followed by one row per record.
func (w *CSVWriter) Write(records []types.Record) error {
	if err := w.writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := w.writer.Write(Row(rec)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes and closes the artifact.
func (w *CSVWriter) Close() error {
	if w.writer != nil {
		w.writer.Flush()
		w.writer = nil
	}
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
