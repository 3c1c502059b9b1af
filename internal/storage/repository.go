package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"pnldash/internal/kpi"
	"pnldash/internal/log"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// DefaultListLimit caps history queries without an explicit limit.
const DefaultListLimit = 100

// Snapshot is one recorded KPI computation.
type Snapshot struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	SubRange  string    `json:"sub_range"`
	TakenAt   time.Time `json:"taken_at"`
	HeaderRow int       `json:"header_row"`
	RowCount  int       `json:"row_count"`
	KPIs      kpi.Set   `json:"kpis"`
}

type snapshotRow struct {
	ID           string              `db:"id"`
	SourceID     string              `db:"source_id"`
	SubRange     string              `db:"sub_range"`
	TakenAtMs    int64               `db:"taken_at_ms"`
	HeaderRow    int                 `db:"header_row"`
	RowCount     int                 `db:"row_count"`
	MRR          decimal.NullDecimal `db:"mrr"`
	Subscribers  decimal.NullDecimal `db:"subscribers"`
	ARPU         decimal.NullDecimal `db:"arpu"`
	Ebitda       decimal.NullDecimal `db:"ebitda"`
	EbitdaMargin decimal.NullDecimal `db:"ebitda_margin"`
	TotalRevenue decimal.NullDecimal `db:"total_revenue"`
	TotalIncome  decimal.NullDecimal `db:"total_income"`
	TotalExpense decimal.NullDecimal `db:"total_expense"`
	NetProfit    decimal.NullDecimal `db:"net_profit"`
	Warnings     string              `db:"warnings"`
}

func toNull(v kpi.Value) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v.Amount, Valid: v.Valid}
}

func fromNull(d decimal.NullDecimal) kpi.Value {
	if !d.Valid {
		return kpi.Unavailable
	}
	return kpi.Of(d.Decimal)
}

func (s Snapshot) row() (snapshotRow, error) {
	warnings := s.KPIs.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	w, err := json.Marshal(warnings)
	if err != nil {
		return snapshotRow{}, fmt.Errorf("encode warnings: %w", err)
	}
	return snapshotRow{
		ID:           s.ID,
		SourceID:     s.SourceID,
		SubRange:     s.SubRange,
		TakenAtMs:    s.TakenAt.UnixMilli(),
		HeaderRow:    s.HeaderRow,
		RowCount:     s.RowCount,
		MRR:          toNull(s.KPIs.MRR),
		Subscribers:  toNull(s.KPIs.Subscribers),
		ARPU:         toNull(s.KPIs.ARPU),
		Ebitda:       toNull(s.KPIs.Ebitda),
		EbitdaMargin: toNull(s.KPIs.EbitdaMarginPercent),
		TotalRevenue: toNull(s.KPIs.TotalRevenue),
		TotalIncome:  toNull(s.KPIs.TotalIncome),
		TotalExpense: toNull(s.KPIs.TotalExpense),
		NetProfit:    toNull(s.KPIs.NetProfit),
		Warnings:     string(w),
	}, nil
}

func (r snapshotRow) snapshot() Snapshot {
	var warnings []string
	_ = json.Unmarshal([]byte(r.Warnings), &warnings)
	if len(warnings) == 0 {
		warnings = nil
	}
	return Snapshot{
		ID:        r.ID,
		SourceID:  r.SourceID,
		SubRange:  r.SubRange,
		TakenAt:   time.UnixMilli(r.TakenAtMs).UTC(),
		HeaderRow: r.HeaderRow,
		RowCount:  r.RowCount,
		KPIs: kpi.Set{
			MRR:                 fromNull(r.MRR),
			Subscribers:         fromNull(r.Subscribers),
			ARPU:                fromNull(r.ARPU),
			Ebitda:              fromNull(r.Ebitda),
			EbitdaMarginPercent: fromNull(r.EbitdaMargin),
			TotalRevenue:        fromNull(r.TotalRevenue),
			TotalIncome:         fromNull(r.TotalIncome),
			TotalExpense:        fromNull(r.TotalExpense),
			NetProfit:           fromNull(r.NetProfit),
			Warnings:            warnings,
		},
	}
}

// SQLiteRepository stores KPI snapshots in SQLite.
type SQLiteRepository struct {
	db     *sqlx.DB
	logger *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordSnapshot stores s, assigning an id and timestamp when missing, and
// returns the stored snapshot.
func (r *SQLiteRepository) RecordSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now().UTC()
	}
	row, err := s.row()
	if err != nil {
		return Snapshot{}, err
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO kpi_snapshots (
			id, source_id, sub_range, taken_at_ms, header_row, row_count,
			mrr, subscribers, arpu, ebitda, ebitda_margin,
			total_revenue, total_income, total_expense, net_profit, warnings
		) VALUES (
			:id, :source_id, :sub_range, :taken_at_ms, :header_row, :row_count,
			:mrr, :subscribers, :arpu, :ebitda, :ebitda_margin,
			:total_revenue, :total_income, :total_expense, :net_profit, :warnings
		)`, row)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "KPI snapshot recorded",
		"id", s.ID,
		log.FieldSourceID, s.SourceID,
		log.FieldSubRange, s.SubRange,
		log.FieldRows, s.RowCount)
	return row.snapshot(), nil
}

const selectSnapshot = `
	SELECT id, source_id, sub_range, taken_at_ms, header_row, row_count,
		mrr, subscribers, arpu, ebitda, ebitda_margin,
		total_revenue, total_income, total_expense, net_profit, warnings
	FROM kpi_snapshots`

// ListSnapshots returns the newest snapshots for a source and sub-range.
// An empty sourceID lists every source.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, sourceID, subRange string, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	var rows []snapshotRow
	var err error
	if sourceID == "" {
		err = r.db.SelectContext(ctx, &rows, selectSnapshot+`
			ORDER BY taken_at_ms DESC, id LIMIT ?`, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, selectSnapshot+`
			WHERE source_id = ? AND sub_range = ?
			ORDER BY taken_at_ms DESC, id LIMIT ?`, sourceID, subRange, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make([]Snapshot, len(rows))
	for i, row := range rows {
		out[i] = row.snapshot()
	}
	return out, nil
}

// LatestSnapshot returns the newest snapshot for a source and sub-range.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, sourceID, subRange string) (Snapshot, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, selectSnapshot+`
		WHERE source_id = ? AND sub_range = ?
		ORDER BY taken_at_ms DESC, id LIMIT 1`, sourceID, subRange)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return row.snapshot(), nil
}

// PruneBefore deletes snapshots older than cutoff and returns how many went.
func (r *SQLiteRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kpi_snapshots WHERE taken_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
