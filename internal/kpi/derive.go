package kpi

import (
	"github.com/shopspring/decimal"

	"pnldash/internal/table"
)

var hundred = decimal.NewFromInt(100)

// Keyword sets used to classify columns for the income statement totals.
var (
	IncomeKeywords  = []string{"income", "revenue", "sales"}
	ExpenseKeywords = []string{"expense", "cost", "spend", "opex", "cogs"}
	ProfitKeywords  = []string{"profit"}
)

// ARPU is MRR divided by subscribers. It is unavailable when either input is
// unavailable or there are no subscribers.
func ARPU(mrr, subscribers Value) Value {
	if !mrr.Valid || !subscribers.Valid || !subscribers.Amount.IsPositive() {
		return Unavailable
	}
	return Of(mrr.Amount.DivRound(subscribers.Amount, 8))
}

// EbitdaMargin is EBITDA as a percentage of revenue. A zero or missing
// revenue yields a valid 0.
func EbitdaMargin(ebitda, revenue Value) Value {
	if revenue.IsZeroOrMissing() {
		return Of(decimal.Zero)
	}
	return Of(ebitda.Display().Mul(hundred).DivRound(revenue.Display(), 8))
}

// Coord is a zero-based (row, column) position in a normalized table.
type Coord struct {
	Row int
	Col int
}

// EbitdaFromLineItems sums the values at the given coordinates. Missing or
// unparseable addends count as zero.
func EbitdaFromLineItems(t *table.Table, items []Coord) Value {
	sum := decimal.Zero
	for _, c := range items {
		sum = sum.Add(ValueAt(t, c.Row, c.Col).Display())
	}
	return Of(sum)
}

// Totals holds income statement totals computed over classified columns.
type Totals struct {
	Income  Value
	Expense Value
	Net     Value
	// Columns that contributed to each total, by name.
	IncomeColumns  []string
	ExpenseColumns []string
	ProfitColumns  []string
}

// ComputeTotals sums every income-like and expense-like column across rows.
// A nil rows slice means all rows. When neither kind of column exists the
// net falls back to the sum of profit columns.
func ComputeTotals(t *table.Table, rows []int) Totals {
	var out Totals
	if t == nil {
		return out
	}
	if rows == nil {
		rows = make([]int, t.NumRows())
		for i := range rows {
			rows[i] = i
		}
	}
	names := t.Columns()

	income := FindColumns(t, IncomeKeywords...)
	expense := FindColumns(t, ExpenseKeywords...)
	for _, c := range income {
		out.IncomeColumns = append(out.IncomeColumns, names[c])
	}
	for _, c := range expense {
		out.ExpenseColumns = append(out.ExpenseColumns, names[c])
	}

	if len(income) > 0 {
		out.Income = Of(sumColumns(t, income, rows))
	}
	if len(expense) > 0 {
		out.Expense = Of(sumColumns(t, expense, rows))
	}
	if len(income) > 0 || len(expense) > 0 {
		out.Net = Of(out.Income.Display().Sub(out.Expense.Display()))
		return out
	}

	profit := FindColumns(t, ProfitKeywords...)
	for _, c := range profit {
		out.ProfitColumns = append(out.ProfitColumns, names[c])
	}
	if len(profit) > 0 {
		out.Net = Of(sumColumns(t, profit, rows))
	}
	return out
}

func sumColumns(t *table.Table, cols, rows []int) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range cols {
		for _, r := range rows {
			sum = sum.Add(ValueAt(t, r, c).Display())
		}
	}
	return sum
}
