package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "pnl.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestFetch(t *testing.T) {
	path := writeWorkbook(t, "P&L", [][]any{
		{"Pioneer Broadband P&L"},
		{"Month", "Revenue", "Expense"},
		{"Jan", "$10,000", "$4,000"},
		{"Feb", "$12,000", "$5,000"},
	})

	raw, err := Reader{}.Fetch(context.Background(), path, "P&L")
	require.NoError(t, err)
	require.Len(t, raw, 4)
	assert.Equal(t, []string{"Pioneer Broadband P&L"}, raw[0])
	assert.Equal(t, []string{"Feb", "$12,000", "$5,000"}, raw[3])

	first, err := Reader{}.Fetch(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, raw, first)
}

func TestFetch_Errors(t *testing.T) {
	path := writeWorkbook(t, "Data", [][]any{{"a", "b", "c"}})

	_, err := Reader{}.Fetch(context.Background(), path, "Missing")
	assert.ErrorIs(t, err, ports.ErrRangeNotFound)

	_, err = Reader{}.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), "")
	assert.ErrorIs(t, err, ports.ErrRangeNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Reader{}.Fetch(ctx, path, "")
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestWriteRoundTrip(t *testing.T) {
	tbl := table.New([]string{"Month", "Revenue"}, [][]string{
		{"Jan", "10000"},
		{"Feb", "12000"},
	})
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, Write(path, "Export", tbl))

	raw, err := Reader{}.Fetch(context.Background(), path, "Export")
	require.NoError(t, err)
	assert.Equal(t, table.Raw{
		{"Month", "Revenue"},
		{"Jan", "10000"},
		{"Feb", "12000"},
	}, raw)
}
