// Package table turns loosely structured spreadsheet exports into clean,
// rectangular tables with unique column names.
package table

import (
	"errors"
	"strconv"
	"strings"
)

// Raw is a tabular source payload: ordered rows of cell strings. Rows may be
// ragged.
type Raw [][]string

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrNoHeaderFound = errors.New("no header row found")
)

// Table is a normalized, immutable table. Every row has exactly
// len(Columns()) cells.
type Table struct {
	columns   []string
	index     map[string]int
	rows      [][]string
	headerRow int
}

// Columns returns a copy of the column names in sheet order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// HeaderRow is the zero-based index of the raw row used as header.
func (t *Table) HeaderRow() int { return t.headerRow }

// Cell returns the cell at (row, col) and whether the coordinates exist.
func (t *Table) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.columns) {
		return "", false
	}
	return t.rows[row][col], true
}

// Get returns the cell in the named column of the given row.
func (t *Table) Get(row int, column string) (string, bool) {
	col, ok := t.index[column]
	if !ok {
		return "", false
	}
	return t.Cell(row, col)
}

// ColumnIndex returns the position of a column by exact name.
func (t *Table) ColumnIndex(column string) (int, bool) {
	i, ok := t.index[column]
	return i, ok
}

// Row returns a copy of the row at position i.
func (t *Table) Row(i int) []string {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return append([]string(nil), t.rows[i]...)
}

// Record returns the row at position i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	rec := make(map[string]string, len(t.columns))
	for c, name := range t.columns {
		rec[name] = t.rows[i][c]
	}
	return rec
}

// Rows returns a deep copy of all data rows.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Select returns a new table holding only the given rows, in the given order.
// Out of range indexes are skipped.
func (t *Table) Select(rows []int) *Table {
	out := &Table{columns: t.columns, index: t.index, headerRow: t.headerRow}
	for _, i := range rows {
		if i >= 0 && i < len(t.rows) {
			out.rows = append(out.rows, t.rows[i])
		}
	}
	return out
}

// Normalize locates the header row of raw according to policy, names and
// deduplicates the columns and materializes every following row.
func Normalize(raw Raw, policy HeaderPolicy) (*Table, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}
	h, err := policy.Locate(raw)
	if err != nil {
		return nil, err
	}

	columns := ColumnNames(raw[h])
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	rows := make([][]string, 0, len(raw)-h-1)
	for _, r := range raw[h+1:] {
		rows = append(rows, fit(r, len(columns)))
	}

	return &Table{columns: columns, index: index, rows: rows, headerRow: h}, nil
}

// New builds a table from already clean columns and rows. Column names go
// through the same naming rules as Normalize.
func New(columns []string, rows [][]string) *Table {
	names := ColumnNames(columns)
	index := make(map[string]int, len(names))
	for i, c := range names {
		index[c] = i
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = fit(r, len(names))
	}
	return &Table{columns: names, index: index, rows: out}
}

// ColumnNames derives unique column names from a header row. Blank cells
// become Column_<position>; repeated names get _2, _3, ... suffixes in
// left-to-right order.
func ColumnNames(header []string) []string {
	names := make([]string, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = "Column_" + strconv.Itoa(i+1)
		}
		names[i] = name
	}

	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		seen[n]++
		if seen[n] == 1 {
			out[i] = n
			continue
		}
		k := seen[n]
		candidate := n + "_" + strconv.Itoa(k)
		for taken[candidate] {
			k++
			candidate = n + "_" + strconv.Itoa(k)
		}
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

// fit pads short rows with empty cells and truncates long ones.
func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
