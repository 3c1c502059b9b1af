package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"pnldash/internal/kpi"
	"pnldash/internal/log"
	"pnldash/internal/services"
	"pnldash/internal/table"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 500
)

var templateFuncs = template.FuncMap{
	"amount":  formatAmount,
	"count":   formatCount,
	"percent": formatPercent,
	"signed":  formatSigned,
	"add":     func(a, b int) int { return a + b },
	"isDark":  func(theme string) bool { return theme == ThemeDark },
}

type totalsResponse struct {
	Income         kpi.Value `json:"income"`
	Expense        kpi.Value `json:"expense"`
	Net            kpi.Value `json:"net"`
	IncomeColumns  []string  `json:"income_columns"`
	ExpenseColumns []string  `json:"expense_columns"`
}

type kpiResponse struct {
	SourceID  string         `json:"source_id"`
	SubRange  string         `json:"sub_range"`
	HeaderRow int            `json:"header_row"`
	Rows      int            `json:"rows"`
	Columns   []string       `json:"columns"`
	KPIs      kpi.Set        `json:"kpis"`
	Totals    totalsResponse `json:"totals"`
	FetchedAt time.Time      `json:"fetched_at"`
	Cached    bool           `json:"cached"`
}

func newKPIResponse(r *services.Report) kpiResponse {
	return kpiResponse{
		SourceID:  r.SourceID,
		SubRange:  r.SubRange,
		HeaderRow: r.Table.HeaderRow(),
		Rows:      r.Table.NumRows(),
		Columns:   r.Table.Columns(),
		KPIs:      r.KPIs,
		Totals: totalsResponse{
			Income:         r.Totals.Income,
			Expense:        r.Totals.Expense,
			Net:            r.Totals.Net,
			IncomeColumns:  r.Totals.IncomeColumns,
			ExpenseColumns: r.Totals.ExpenseColumns,
		},
		FetchedAt: r.FetchedAt,
		Cached:    r.Cached,
	}
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	q := ParseTableQuery(r.URL.Query())
	rep, err := s.report(r.Context(), q)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "KPI request failed", log.FieldError, err)
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newKPIResponse(rep.Filtered(q.Q, q.Column)))
}

// handleSeries returns a metric column keyed by period. ?metric= picks the
// column by name fragment.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	q := ParseTableQuery(r.URL.Query())
	rep, err := s.report(r.Context(), q)
	if err != nil {
		writeJSONError(w, err)
		return
	}

	series, err := services.BuildSeries(services.Filter(rep.Table, q.Q, q.Column), clip(r.URL.Query().Get("metric")))
	if err != nil {
		if errors.Is(err, services.ErrNoPeriodColumn) || errors.Is(err, services.ErrNoMetricColumn) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSONError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	query := r.URL.Query()
	subRange := s.opts.SubRange
	if tab := ParseTableQuery(query).Tab; tab != "" {
		subRange = tab
	}
	limit := ParseLimit(query, "limit", defaultHistoryLimit, maxHistoryLimit)

	snaps, err := s.reports.History(r.Context(), s.opts.SourceID, subRange, limit)
	if err != nil {
		if errors.Is(err, services.ErrHistoryDisabled) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "History query failed", log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id": s.opts.SourceID,
		"sub_range": subRange,
		"snapshots": snaps,
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", "text/csv; charset=utf-8", func(w io.Writer, _ string, t *table.Table) error {
		return services.ExportCSV(w, t)
	})
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", services.ExportXLSX)
}

// export writes the filtered table as an attachment.
func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, string, *table.Table) error) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	q := ParseTableQuery(r.URL.Query())
	rep, err := s.report(r.Context(), q)
	if err != nil {
		status, title := errorStatus(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed", log.FieldError, err)
		http.Error(w, title, status)
		return
	}

	name := exportName(rep.SubRange)
	var buf bytes.Buffer
	if err := write(&buf, name, services.Filter(rep.Table, q.Q, q.Column)); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.appMetrics.exportsServed.Add(1)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// exportName turns a sub-range like "P&L 2024!A1:F40" into a file name.
func exportName(subRange string) string {
	if i := strings.IndexByte(subRange, '!'); i >= 0 {
		subRange = subRange[:i]
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(subRange) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "pnl"
	}
	// Workbook sheet names are limited to 31 characters.
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
