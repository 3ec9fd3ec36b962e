// internal/output/excel.go
package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/realyield/auctionwatch/pkg/types"
)

const excelSheet = "Auctions"

// ExcelWriter writes records to an Excel workbook with a single sheet.
type ExcelWriter struct {
	path string
	file *excelize.File
}

// NewExcelWriter creates the workbook in memory; it is saved on Close.
func NewExcelWriter(path string) (*ExcelWriter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", excelSheet); err != nil {
		file.Close()
		return nil, err
	}
	return &ExcelWriter{path: path, file: file}, nil
}

// Write writes the header row followed by one row per record.
func (w *ExcelWriter) Write(records []types.Record) error {
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, rec := range records {
		cells := Row(rec)
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(excelSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// Close saves the workbook to disk.
func (w *ExcelWriter) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() {
		w.file.Close()
		w.file = nil
	}()
	return w.file.SaveAs(w.path)
}
