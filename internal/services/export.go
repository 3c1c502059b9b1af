package services

import (
	"fmt"
	"io"

	"pnldash/internal/sheets/xlsx"
	"pnldash/internal/table"
)

// ExportCSV writes t as CSV with its header row.
func ExportCSV(w io.Writer, t *table.Table) error {
	if err := t.WriteCSV(w); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

// ExportXLSX writes t as a single-sheet workbook.
func ExportXLSX(w io.Writer, sheet string, t *table.Table) error {
	f, err := xlsx.Build(sheet, t)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	return nil
}
