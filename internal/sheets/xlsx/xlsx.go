// Package xlsx reads tabs from local Excel workbooks.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

// Reader treats sourceID as a workbook path and subRange as a sheet name.
// An empty sheet name selects the first sheet.
type Reader struct{}

var _ ports.TableFetcher = Reader{}

// Fetch opens the workbook and returns the formatted cell values of a sheet.
func (Reader) Fetch(ctx context.Context, sourceID, subRange string) (table.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrSourceUnavailable, err)
	}
	if _, err := os.Stat(sourceID); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: workbook %s not found", ports.ErrRangeNotFound, sourceID)
	}
	f, err := excelize.OpenFile(sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook %s: %v", ports.ErrSourceUnavailable, sourceID, err)
	}
	defer f.Close()

	sheet := strings.TrimSpace(subRange)
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: sheet %q in %s", ports.ErrRangeNotFound, sheet, sourceID)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ports.ErrSourceUnavailable, sheet, err)
	}
	return table.Raw(rows), nil
}

// Write saves a table as a single-sheet workbook.
func Write(path, sheet string, t *table.Table) error {
	f, err := Build(sheet, t)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// Build renders a table into a new workbook.
func Build(sheet string, t *table.Table) (*excelize.File, error) {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Sheet1"
	}
	f := excelize.NewFile()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	header := make([]any, t.NumCols())
	for i, c := range t.Columns() {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r := 0; r < t.NumRows(); r++ {
		cells := t.Row(r)
		out := make([]any, len(cells))
		for i, c := range cells {
			out[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &out); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	return f, nil
}
