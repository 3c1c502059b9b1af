package http

import (
	"time"

	"pnldash/internal/kpi"
	"pnldash/internal/services"
	"pnldash/internal/table"
)

// metricCard is one KPI tile on the dashboard.
type metricCard struct {
	Label   string
	Value   string
	Missing bool
	Tone    string
}

type tableView struct {
	Columns   []string
	Rows      [][]string
	Total     int
	Shown     int
	Query     TableQuery
	ExportCSV string
	ExportXLS string
	Totals    []metricCard
	// OOB marks a partial response that also swaps the totals cards.
	OOB bool
}

type dashboardView struct {
	Theme     string
	SourceID  string
	SubRange  string
	Cards     []metricCard
	Warnings  []string
	Table     tableView
	HeaderRow int
	FetchedAt string
	Cached    bool
	HasSeries bool
}

type errorView struct {
	Theme    string
	Status   int
	Title    string
	Message  string
	SourceID string
	SubRange string
}

func card(label string, v kpi.Value, format func(kpi.Value) string) metricCard {
	c := metricCard{Label: label, Value: format(v), Missing: !v.Valid}
	switch {
	case !v.Valid:
		c.Tone = "missing"
	case v.Amount.IsNegative():
		c.Tone = "negative"
	}
	return c
}

func kpiCards(s kpi.Set) []metricCard {
	return []metricCard{
		card("MRR", s.MRR, formatAmount),
		card("Subscribers", s.Subscribers, formatCount),
		card("ARPU", s.ARPU, formatAmount),
		card("EBITDA", s.Ebitda, formatAmount),
		card("EBITDA margin", s.EbitdaMarginPercent, formatPercent),
		card("Total revenue", s.TotalRevenue, formatAmount),
	}
}

func totalCards(s kpi.Set) []metricCard {
	return []metricCard{
		card("Total income", s.TotalIncome, formatAmount),
		card("Total expense", s.TotalExpense, formatAmount),
		card("Net profit", s.NetProfit, formatSigned),
	}
}

func newTableView(full *table.Table, shown *services.Report, q TableQuery) tableView {
	links := q.Values()
	suffix := ""
	if enc := links.Encode(); enc != "" {
		suffix = "?" + enc
	}
	return tableView{
		Columns:   shown.Table.Columns(),
		Rows:      shown.Table.Rows(),
		Total:     full.NumRows(),
		Shown:     shown.Table.NumRows(),
		Query:     q,
		ExportCSV: "/export.csv" + suffix,
		ExportXLS: "/export.xlsx" + suffix,
		Totals:    totalCards(shown.KPIs),
	}
}

func newDashboardView(r *services.Report, q TableQuery, theme string) dashboardView {
	_, hasPeriod := services.DetectPeriodColumn(r.Table)
	shown := r.Filtered(q.Q, q.Column)
	return dashboardView{
		Theme:     theme,
		SourceID:  r.SourceID,
		SubRange:  r.SubRange,
		Cards:     kpiCards(r.KPIs),
		Warnings:  r.KPIs.Warnings,
		Table:     newTableView(r.Table, shown, q),
		HeaderRow: r.Table.HeaderRow() + 1,
		FetchedAt: r.FetchedAt.Format(time.RFC3339),
		Cached:    r.Cached,
		HasSeries: hasPeriod,
	}
}
