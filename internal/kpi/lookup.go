package kpi

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pnldash/internal/table"
)

// fold lowercases s and strips diacritics so "Receita Líquida" matches
// "receita liquida".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(strings.TrimSpace(out))
}

// ValueAt coerces the cell at (row, col) to a number. Out of range
// coordinates are unavailable.
func ValueAt(t *table.Table, row, col int) Value {
	if t == nil {
		return Unavailable
	}
	cell, ok := t.Cell(row, col)
	if !ok {
		return Unavailable
	}
	return ToNumber(cell)
}

// PercentAt is ValueAt for percentage cells.
func PercentAt(t *table.Table, row, col int) Value {
	if t == nil {
		return Unavailable
	}
	cell, ok := t.Cell(row, col)
	if !ok {
		return Unavailable
	}
	return ToPercent(cell)
}

// FindRow returns the first row whose first-column label contains one of the
// keywords, case-insensitively. Keywords are tried in priority order: a match
// for an earlier keyword wins even if a later keyword matches a higher row.
func FindRow(t *table.Table, keywords ...string) (int, bool) {
	if t == nil || t.NumCols() == 0 {
		return -1, false
	}
	labels := make([]string, t.NumRows())
	for i := range labels {
		cell, _ := t.Cell(i, 0)
		labels[i] = fold(cell)
	}
	for _, kw := range keywords {
		kw = fold(kw)
		if kw == "" {
			continue
		}
		for i, label := range labels {
			if strings.Contains(label, kw) {
				return i, true
			}
		}
	}
	return -1, false
}

// FindColumn returns the leftmost column whose name matches pattern,
// case-insensitively. Pattern is a regular expression; if it does not
// compile it is used as a plain substring.
func FindColumn(t *table.Table, pattern string) (int, bool) {
	if t == nil || strings.TrimSpace(pattern) == "" {
		return -1, false
	}
	match := columnMatcher(pattern)
	for i, name := range t.Columns() {
		if match(name) {
			return i, true
		}
	}
	return -1, false
}

// FindColumns returns every column whose name contains one of the keywords.
func FindColumns(t *table.Table, keywords ...string) []int {
	if t == nil {
		return nil
	}
	var out []int
	for i, name := range t.Columns() {
		name = fold(name)
		for _, kw := range keywords {
			if kw = fold(kw); kw != "" && strings.Contains(name, kw) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func columnMatcher(pattern string) func(string) bool {
	if re, err := regexp.Compile("(?i)" + pattern); err == nil {
		return func(name string) bool {
			return re.MatchString(name) || re.MatchString(fold(name))
		}
	}
	p := fold(pattern)
	return func(name string) bool {
		return strings.Contains(fold(name), p)
	}
}
