package kpi

import (
	"fmt"

	"pnldash/internal/table"
)

// Set is the KPI record shown on the dashboard.
type Set struct {
	MRR                 Value `json:"mrr"`
	Subscribers         Value `json:"subscribers"`
	ARPU                Value `json:"arpu"`
	Ebitda              Value `json:"ebitda"`
	EbitdaMarginPercent Value `json:"ebitda_margin_percent"`
	TotalRevenue        Value `json:"total_revenue"`
	TotalIncome         Value `json:"total_income"`
	TotalExpense        Value `json:"total_expense"`
	NetProfit           Value `json:"net_profit"`

	Warnings []string `json:"warnings,omitempty"`
}

// Extract computes the KPI set for t using layout.
func Extract(t *table.Table, layout Layout) Set {
	var s Set

	s.MRR = locate(t, layout.MRRCell, layout.MRRKeywords, layout.ValueColumn, Latest)
	s.Subscribers = locate(t, layout.SubscribersCell, layout.SubscriberKeywords, layout.ValueColumn, Latest)
	s.ARPU = ARPU(s.MRR, s.Subscribers)

	totals := ComputeTotals(t, nil)
	s.TotalIncome = totals.Income
	s.TotalExpense = totals.Expense
	s.NetProfit = totals.Net

	s.TotalRevenue = locate(t, nil, layout.RevenueKeywords, layout.ValueColumn, nil)
	if !s.TotalRevenue.Valid {
		s.TotalRevenue = totals.Income
	}

	switch {
	case layout.EbitdaMode == EbitdaSum:
		items := make([]Coord, len(layout.EbitdaCells))
		for i, ref := range layout.EbitdaCells {
			items[i] = ref.In(t)
		}
		s.Ebitda = EbitdaFromLineItems(t, items)
	case len(layout.EbitdaCells) > 0:
		ref := layout.EbitdaCells[0]
		s.Ebitda = locate(t, &ref, nil, "", nil)
	default:
		s.Ebitda = locate(t, nil, layout.EbitdaKeywords, layout.ValueColumn, Sum)
	}
	s.EbitdaMarginPercent = EbitdaMargin(s.Ebitda, s.TotalRevenue)

	for _, m := range []struct {
		name string
		v    Value
	}{
		{"MRR", s.MRR},
		{"Subscriber count", s.Subscribers},
		{"ARPU", s.ARPU},
		{"EBITDA", s.Ebitda},
	} {
		if m.v.IsZeroOrMissing() {
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s may be missing or zero", m.name))
		}
	}
	return s
}

// Aggregate reduces a column to one value.
type Aggregate func(t *table.Table, col int) Value

// Latest is the last numeric value in the column.
func Latest(t *table.Table, col int) Value {
	for row := t.NumRows() - 1; row >= 0; row-- {
		if v := ValueAt(t, row, col); v.Valid {
			return v
		}
	}
	return Unavailable
}

// Sum adds every numeric value in the column. A column with no numbers is
// unavailable.
func Sum(t *table.Table, col int) Value {
	out := Unavailable
	for row := 0; row < t.NumRows(); row++ {
		if v := ValueAt(t, row, col); v.Valid {
			out = out.Add(v)
		}
	}
	return out
}

// locate resolves a KPI by fixed cell first, then by row label, then, when
// agg is set, by a column whose name matches one of the keywords.
func locate(t *table.Table, cell *SheetRef, keywords []string, valueColumn string, agg Aggregate) Value {
	if t == nil {
		return Unavailable
	}
	if cell != nil {
		c := cell.In(t)
		return ValueAt(t, c.Row, c.Col)
	}
	if len(keywords) == 0 {
		return Unavailable
	}
	if row, ok := FindRow(t, keywords...); ok {
		return RowValue(t, row, valueColumn)
	}
	if agg == nil {
		return Unavailable
	}
	cols := FindColumns(t, keywords...)
	if len(cols) == 0 {
		return Unavailable
	}
	return agg(t, cols[0])
}

// RowValue returns the value of a labeled row: the cell in the column
// matching valueColumn, or the rightmost numeric cell after the label.
func RowValue(t *table.Table, row int, valueColumn string) Value {
	if valueColumn != "" {
		col, ok := FindColumn(t, valueColumn)
		if !ok {
			return Unavailable
		}
		return ValueAt(t, row, col)
	}
	for col := t.NumCols() - 1; col >= 1; col-- {
		if v := ValueAt(t, row, col); v.Valid {
			return v
		}
	}
	return Unavailable
}
