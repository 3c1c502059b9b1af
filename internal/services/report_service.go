package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pnldash/internal/kpi"
	"pnldash/internal/log"
	"pnldash/internal/sheets"
	"pnldash/internal/storage"
	"pnldash/internal/table"
)

// ErrHistoryDisabled is returned by history queries when no store is wired.
var ErrHistoryDisabled = errors.New("snapshot history disabled")

// Report is one fetch, normalize and extract cycle.
type Report struct {
	SourceID  string
	SubRange  string
	Table     *table.Table
	KPIs      kpi.Set
	Totals    kpi.Totals
	FetchedAt time.Time
	Cached    bool
}

// Filtered returns r restricted to the rows matching query, optionally in a
// single column, with the income, expense and net figures summed over those
// rows only. Cell-addressed KPIs keep their full-table values. An empty query
// returns r itself.
func (r *Report) Filtered(query, column string) *Report {
	t := Filter(r.Table, query, column)
	if t == r.Table {
		return r
	}
	out := *r
	out.Table = t
	out.Totals = kpi.ComputeTotals(t, nil)
	out.KPIs.TotalIncome = out.Totals.Income
	out.KPIs.TotalExpense = out.Totals.Expense
	out.KPIs.NetProfit = out.Totals.Net
	return &out
}

// SnapshotStore persists KPI snapshots.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, s storage.Snapshot) (storage.Snapshot, error)
	ListSnapshots(ctx context.Context, sourceID, subRange string, limit int) ([]storage.Snapshot, error)
}

// infoFetcher is implemented by fetchers that report cache hits.
type infoFetcher interface {
	FetchWithInfo(ctx context.Context, sourceID, subRange string) (table.Raw, bool, error)
}

// ReportConfig controls how sheets are interpreted.
type ReportConfig struct {
	Policy table.HeaderPolicy
	Layout kpi.Layout
}

// DefaultReportConfig uses heuristic header detection and keyword KPIs.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{Policy: table.DefaultPolicy(), Layout: kpi.DefaultLayout()}
}

// ReportService turns a tabular source into a KPI report.
type ReportService struct {
	fetcher sheets.TableFetcher
	config  ReportConfig
	history SnapshotStore
	logger  *log.Logger
	now     func() time.Time
}

// NewReportService creates the service. history may be nil.
func NewReportService(fetcher sheets.TableFetcher, config ReportConfig, history SnapshotStore, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReportService{
		fetcher: fetcher,
		config:  config,
		history: history,
		logger:  logger.WithComponent(log.ComponentReport),
		now:     time.Now,
	}
}

// Build fetches and normalizes the source and extracts its KPIs. Fetch and
// normalization failures are returned wrapped; value problems only show up
// as warnings in the KPI set. Fresh (uncached) reports are recorded in the
// history store when one is configured.
func (s *ReportService) Build(ctx context.Context, sourceID, subRange string) (*Report, error) {
	var (
		raw    table.Raw
		cached bool
		err    error
	)
	if f, ok := s.fetcher.(infoFetcher); ok {
		raw, cached, err = f.FetchWithInfo(ctx, sourceID, subRange)
	} else {
		raw, err = s.fetcher.Fetch(ctx, sourceID, subRange)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", sheets.Key(sourceID, subRange), err)
	}

	t, err := table.Normalize(raw, s.config.Policy)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", sheets.Key(sourceID, subRange), err)
	}

	r := &Report{
		SourceID:  sourceID,
		SubRange:  subRange,
		Table:     t,
		KPIs:      kpi.Extract(t, s.config.Layout),
		Totals:    kpi.ComputeTotals(t, nil),
		FetchedAt: s.now().UTC(),
		Cached:    cached,
	}

	s.logger.DebugContext(ctx, "Report built",
		log.FieldSourceID, sourceID,
		log.FieldSubRange, subRange,
		log.FieldHeaderRow, t.HeaderRow(),
		log.FieldRows, t.NumRows(),
		log.FieldColumns, t.NumCols(),
		log.FieldCacheHit, cached,
		log.FieldWarnings, len(r.KPIs.Warnings))

	if !cached {
		s.record(ctx, r)
	}
	return r, nil
}

func (s *ReportService) record(ctx context.Context, r *Report) {
	if s.history == nil {
		return
	}
	_, err := s.history.RecordSnapshot(ctx, storage.Snapshot{
		SourceID:  r.SourceID,
		SubRange:  r.SubRange,
		TakenAt:   r.FetchedAt,
		HeaderRow: r.Table.HeaderRow(),
		RowCount:  r.Table.NumRows(),
		KPIs:      r.KPIs,
	})
	if err != nil {
		// The report is still valid without its history entry.
		s.logger.ErrorContext(ctx, "Failed to record snapshot", log.FieldSourceID, r.SourceID, log.FieldError, err)
	}
}

// History lists recorded snapshots, newest first.
func (s *ReportService) History(ctx context.Context, sourceID, subRange string, limit int) ([]storage.Snapshot, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListSnapshots(ctx, sourceID, subRange, limit)
}

// Invalidate drops cached data for a source when the fetcher caches.
// It reports whether anything could be invalidated.
func (s *ReportService) Invalidate(sourceID, subRange string) bool {
	inv, ok := s.fetcher.(sheets.Invalidator)
	if !ok {
		return false
	}
	if sourceID == "" {
		inv.InvalidateAll()
	} else {
		inv.Invalidate(sourceID, subRange)
	}
	return true
}

// IsFetchError reports whether err came from the upstream source.
func IsFetchError(err error) bool {
	return errors.Is(err, sheets.ErrSourceUnavailable) || errors.Is(err, sheets.ErrRangeNotFound)
}

// IsStructuralError reports whether err means the sheet could not be
// interpreted as a table.
func IsStructuralError(err error) bool {
	return errors.Is(err, table.ErrEmptyInput) || errors.Is(err, table.ErrNoHeaderFound)
}
