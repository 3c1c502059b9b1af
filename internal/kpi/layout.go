package kpi

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"pnldash/internal/table"
)

// SheetRef addresses a cell of the raw sheet, zero-based. Row 0 is the first
// row of the sheet, before header detection.
type SheetRef struct {
	Row int
	Col int
}

// ParseSheetRef parses an A1-style reference such as "B59".
func ParseSheetRef(s string) (SheetRef, error) {
	col, row, err := excelize.CellNameToCoordinates(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return SheetRef{}, fmt.Errorf("parse cell %q: %w", s, err)
	}
	return SheetRef{Row: row - 1, Col: col - 1}, nil
}

// ParseSheetRefs parses a comma separated list of A1 references.
func ParseSheetRefs(s string) ([]SheetRef, error) {
	var out []SheetRef
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ref, err := ParseSheetRef(part)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// String renders the reference in A1 notation.
func (r SheetRef) String() string {
	name, err := excelize.CoordinatesToCellName(r.Col+1, r.Row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", r.Row+1, r.Col+1)
	}
	return name
}

// In converts the sheet reference to table coordinates, given the raw row
// index of the table's header.
func (r SheetRef) In(t *table.Table) Coord {
	return Coord{Row: r.Row - t.HeaderRow() - 1, Col: r.Col}
}

// EbitdaMode selects how EBITDA is obtained.
type EbitdaMode string

const (
	// EbitdaRow reads EBITDA from a single labeled row or cell.
	EbitdaRow EbitdaMode = "row"
	// EbitdaSum adds designated line items.
	EbitdaSum EbitdaMode = "sum"
)

// Layout tells the extractor where KPIs live. Fixed cells take precedence
// over keyword search.
type Layout struct {
	MRRCell         *SheetRef
	SubscribersCell *SheetRef
	EbitdaCells     []SheetRef
	EbitdaMode      EbitdaMode

	MRRKeywords        []string
	SubscriberKeywords []string
	EbitdaKeywords     []string
	RevenueKeywords    []string

	// ValueColumn is a pattern naming the column that holds values for
	// labeled rows. When empty the rightmost numeric cell of the row is used.
	ValueColumn string
}

// DefaultLayout uses keyword search only.
func DefaultLayout() Layout {
	return Layout{
		EbitdaMode:         EbitdaRow,
		MRRKeywords:        []string{"mrr", "monthly recurring revenue", "recurring revenue"},
		SubscriberKeywords: []string{"subscriber", "active customers", "customers", "subs"},
		EbitdaKeywords:     []string{"ebitda"},
		RevenueKeywords:    []string{"total revenue", "revenue", "total income", "sales"},
	}
}

// ParseEbitdaMode validates a mode name; empty means EbitdaRow.
func ParseEbitdaMode(s string) (EbitdaMode, error) {
	switch EbitdaMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", EbitdaRow:
		return EbitdaRow, nil
	case EbitdaSum:
		return EbitdaSum, nil
	default:
		return "", fmt.Errorf("unknown ebitda mode %q", s)
	}
}
