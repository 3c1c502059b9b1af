package services

import (
	"errors"
	"strings"

	"github.com/montanaflynn/stats"

	"pnldash/internal/kpi"
	"pnldash/internal/table"
)

var (
	ErrNoPeriodColumn = errors.New("no period column")
	ErrNoMetricColumn = errors.New("no metric column")
)

// PeriodKeywords name columns that hold a date or period label.
var PeriodKeywords = []string{"month", "period", "date", "quarter", "year", "week"}

// Point is one period of a series.
type Point struct {
	Label string    `json:"label"`
	Value kpi.Value `json:"value"`
}

// Summary describes the numeric points of a series.
type Summary struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Series is a metric column keyed by the period column.
type Series struct {
	PeriodColumn string  `json:"period_column"`
	MetricColumn string  `json:"metric_column"`
	Points       []Point `json:"points"`
	Summary      Summary `json:"summary"`
}

// DetectPeriodColumn returns the leftmost column named like a period.
func DetectPeriodColumn(t *table.Table) (int, bool) {
	cols := kpi.FindColumns(t, PeriodKeywords...)
	if len(cols) == 0 {
		return -1, false
	}
	return cols[0], true
}

// BuildSeries extracts the metric column matching pattern, or the first
// income column when pattern is empty, against the detected period column.
// Rows without a period label are skipped.
func BuildSeries(t *table.Table, pattern string) (Series, error) {
	period, ok := DetectPeriodColumn(t)
	if !ok {
		return Series{}, ErrNoPeriodColumn
	}

	metric := -1
	if strings.TrimSpace(pattern) != "" {
		if c, ok := columnByName(t, pattern); ok {
			metric = c
		}
	} else if cols := kpi.FindColumns(t, kpi.IncomeKeywords...); len(cols) > 0 {
		metric = cols[0]
	}
	if metric < 0 || metric == period {
		return Series{}, ErrNoMetricColumn
	}

	names := t.Columns()
	s := Series{PeriodColumn: names[period], MetricColumn: names[metric], Points: []Point{}}
	var values stats.Float64Data
	for r := 0; r < t.NumRows(); r++ {
		label, _ := t.Cell(r, period)
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		v := kpi.ValueAt(t, r, metric)
		s.Points = append(s.Points, Point{Label: label, Value: v})
		if v.Valid {
			f, _ := v.Amount.Float64()
			values = append(values, f)
		}
	}
	s.Summary = summarize(values)
	return s, nil
}

func summarize(values stats.Float64Data) Summary {
	out := Summary{Count: values.Len()}
	if out.Count == 0 {
		return out
	}
	out.Sum, _ = values.Sum()
	out.Mean, _ = values.Mean()
	out.Median, _ = values.Median()
	out.StdDev, _ = values.StandardDeviation()
	out.Min, _ = values.Min()
	out.Max, _ = values.Max()
	return out
}
