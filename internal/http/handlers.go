package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pnldash/internal/log"
	"pnldash/internal/services"
)

// report builds the report for the configured source, or the tab named in
// the query.
func (s *Server) report(ctx context.Context, q TableQuery) (*services.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	subRange := s.opts.SubRange
	if q.Tab != "" {
		subRange = q.Tab
	}
	r, err := s.reports.Build(ctx, s.opts.SourceID, subRange)
	if err != nil {
		s.appMetrics.renderErrors.Add(1)
		return nil, err
	}
	s.appMetrics.reportsServed.Add(1)
	return r, nil
}

// errorStatus maps report errors to HTTP status codes: upstream failures are
// 502, sheets that cannot be read as a table are 422.
func errorStatus(err error) (int, string) {
	switch {
	case services.IsFetchError(err):
		return http.StatusBadGateway, "The data source could not be reached"
	case services.IsStructuralError(err):
		return http.StatusUnprocessableEntity, "The sheet could not be read as a table"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The data source took too long to answer"
	default:
		return http.StatusInternalServerError, "Unexpected error"
	}
}

// renderError shows the error page. No partial dashboard is rendered.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := errorStatus(err)
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Report failed",
		log.FieldSourceID, s.opts.SourceID,
		log.FieldStatusCode, status,
		log.FieldError, err)

	if s.templates == nil {
		http.Error(w, title, status)
		return
	}
	s.render(w, r, status, "error_page", errorView{
		Theme:    themeFromRequest(r),
		Status:   status,
		Title:    title,
		Message:  err.Error(),
		SourceID: s.opts.SourceID,
		SubRange: s.opts.SubRange,
	})
}

// render executes a template into a buffer so failures never leave a half
// written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			"template", name,
			log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, err error) {
	status, title := errorStatus(err)
	writeJSON(w, status, map[string]string{"error": title, "detail": err.Error()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	q := ParseTableQuery(r.URL.Query())
	rep, err := s.report(r.Context(), q)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard_page", newDashboardView(rep, q, themeFromRequest(r)))
}

// handleTablePartial renders the filtered table for HTMX swaps.
func (s *Server) handleTablePartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	q := ParseTableQuery(r.URL.Query())
	rep, err := s.report(r.Context(), q)
	if err != nil {
		status, title := errorStatus(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Table partial failed", log.FieldError, err)
		ErrorResponse(status, title).Write(w)
		return
	}
	view := newTableView(rep.Table, rep.Filtered(q.Q, q.Column), q)
	view.OOB = true
	s.render(w, r, http.StatusOK, "table_partial", view)
}

// handleTheme stores the theme choice in a cookie. The form value "theme"
// selects light or dark; without it the current theme is toggled.
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	theme := r.PostForm.Get("theme")
	if theme == "" {
		if themeFromRequest(r) == ThemeDark {
			theme = ThemeLight
		} else {
			theme = ThemeDark
		}
	}
	theme = normalizeTheme(theme)
	setThemeCookie(w, theme)

	if r.Header.Get("HX-Request") == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		Status(http.StatusNoContent).
		TriggerThemeChanged(theme).
		Write(w)
}

// handleRefresh drops cached data for the source, rebuilds the report and
// announces the refresh to other processes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	subRange := s.opts.SubRange
	if tab := clip(body.Get("tab")); tab != "" {
		subRange = tab
	}

	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	rep, err := s.refresher.Refresh(ctx, s.opts.SourceID, subRange)
	if err != nil {
		status, title := errorStatus(err)
		log.FromContext(ctx).ErrorContext(ctx, "Refresh failed", log.FieldSourceID, s.opts.SourceID, log.FieldError, err)
		if body.IsJSON() {
			writeJSONError(w, err)
			return
		}
		ErrorResponse(status, title).TriggerErrorNotification(title).Write(w)
		return
	}
	s.appMetrics.refreshes.Add(1)

	log.FromContext(ctx).InfoContext(ctx, "Report refreshed",
		log.FieldOperation, log.OpRefresh,
		log.FieldSourceID, rep.SourceID,
		log.FieldSubRange, rep.SubRange,
		log.FieldRows, rep.Table.NumRows())

	if body.IsJSON() {
		writeJSON(w, http.StatusOK, newKPIResponse(rep))
		return
	}
	NewHTMXResponse().
		TriggerReportRefreshed(rep.SourceID, rep.SubRange).
		TriggerSuccessNotification(fmt.Sprintf("Refreshed %d rows", rep.Table.NumRows())).
		Header("HX-Refresh", "true").
		BodyHTML(`<div class="success">Refreshed</div>`).
		Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", errors.New("templates not loaded"))
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.report(ctx, TableQuery{}); err != nil {
		fail("source", err)
	} else {
		checks["source"] = "ok"
	}

	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			fail(name, err)
		} else {
			checks[name] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	cacheEntries := 0
	if s.opts.CacheEntries != nil {
		cacheEntries = s.opts.CacheEntries()
	}

	w.WriteHeader(http.StatusOK)
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("reports_served_total", "counter", "Reports built for requests", s.appMetrics.reportsServed.Load())
	metric("report_errors_total", "counter", "Reports that failed to build", s.appMetrics.renderErrors.Load())
	metric("exports_total", "counter", "CSV and XLSX exports served", s.appMetrics.exportsServed.Load())
	metric("refreshes_total", "counter", "Successful manual refreshes", s.appMetrics.refreshes.Load())
	metric("cache_entries", "gauge", "Cached source tables", cacheEntries)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", s.securityDetector.SuspiciousRequests())
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}
