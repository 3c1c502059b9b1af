// Command pnldash-inspect prints a window of normalized rows with every
// column index, name and value, for checking fixed KPI coordinates.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"pnldash/internal/cli"
	"pnldash/internal/config"
	"pnldash/internal/kpi"
	"pnldash/internal/log"
	"pnldash/internal/table"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	source := flag.String("source", cfg.SourceID, "source id (spreadsheet id, export id, workbook path or memory source)")
	tab := flag.String("tab", cfg.SourceTab, "sheet tab or A1 range")
	from := flag.Int("from", 0, "first data row to print (0-based)")
	to := flag.Int("to", 10, "last data row to print (inclusive)")
	showKPIs := flag.Bool("kpis", true, "print the extracted KPIs")
	flag.Parse()

	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	cfg.SourceID = *source
	cfg.SourceTab = *tab
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reports, err := cli.BuildReports(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer reports.Close()

	rep, err := reports.Service.Build(ctx, cfg.SourceID, cfg.SourceTab)
	if err != nil {
		logger.Error("Failed to build report", log.FieldError, err, log.FieldSourceID, cfg.SourceID)
		os.Exit(1)
	}

	fmt.Printf("source %s  header row %d  rows %d  columns %d\n\n",
		rep.SourceID, rep.Table.HeaderRow(), rep.Table.NumRows(), rep.Table.NumCols())
	if err := printRows(os.Stdout, rep.Table, *from, *to); err != nil {
		logger.Error("Failed to print rows", log.FieldError, err)
		os.Exit(1)
	}
	if *showKPIs {
		fmt.Println()
		printKPIs(os.Stdout, rep.KPIs)
	}
}

// printRows writes rows from..to of t, one line per cell.
func printRows(w io.Writer, t *table.Table, from, to int) error {
	if from < 0 {
		from = 0
	}
	if to >= t.NumRows() {
		to = t.NumRows() - 1
	}
	if from > to {
		return fmt.Errorf("no rows in range %d..%d (table has %d rows)", from, to, t.NumRows())
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tCOL\tNAME\tVALUE")
	names := t.Columns()
	for r := from; r <= to; r++ {
		for c, name := range names {
			v, _ := t.Cell(r, c)
			fmt.Fprintf(tw, "%d\t%d\t%s\t%q\n", r, c, name, v)
		}
	}
	return tw.Flush()
}

func printKPIs(w io.Writer, s kpi.Set) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KPI\tVALUE")
	for _, row := range []struct {
		name string
		v    kpi.Value
	}{
		{"mrr", s.MRR},
		{"subscribers", s.Subscribers},
		{"arpu", s.ARPU},
		{"ebitda", s.Ebitda},
		{"ebitda_margin_percent", s.EbitdaMarginPercent},
		{"total_revenue", s.TotalRevenue},
		{"total_income", s.TotalIncome},
		{"total_expense", s.TotalExpense},
		{"net_profit", s.NetProfit},
	} {
		fmt.Fprintf(tw, "%s\t%s\n", row.name, row.v)
	}
	_ = tw.Flush()
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
