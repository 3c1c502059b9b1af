package services

import (
	"strings"

	"pnldash/internal/kpi"
	"pnldash/internal/table"
)

// Filter keeps the rows whose cells contain query, case-insensitively.
// With a column only that column is searched; a column that does not exist
// matches nothing. An empty query keeps every row.
func Filter(t *table.Table, query, column string) *table.Table {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return t
	}

	cols := make([]int, 0, t.NumCols())
	if column = strings.TrimSpace(column); column != "" {
		c, ok := columnByName(t, column)
		if !ok {
			return t.Select(nil)
		}
		cols = append(cols, c)
	} else {
		for c := 0; c < t.NumCols(); c++ {
			cols = append(cols, c)
		}
	}

	var keep []int
	for r := 0; r < t.NumRows(); r++ {
		for _, c := range cols {
			cell, _ := t.Cell(r, c)
			if strings.Contains(strings.ToLower(cell), query) {
				keep = append(keep, r)
				break
			}
		}
	}
	return t.Select(keep)
}

// columnByName prefers an exact, case-insensitive name match and falls back
// to pattern matching.
func columnByName(t *table.Table, name string) (int, bool) {
	for i, c := range t.Columns() {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return kpi.FindColumn(t, name)
}
