package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pioneer() Raw {
	return Raw{
		{"Pioneer Broadband P&L"},
		{"Month", "Revenue", "Expense"},
		{"Jan", "$10,000", "$4,000"},
		{"Feb", "$12,000", "$5,000"},
	}
}

func TestNormalize_TitleRowSkipped(t *testing.T) {
	tbl, err := Normalize(pioneer(), DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.HeaderRow())
	assert.Equal(t, []string{"Month", "Revenue", "Expense"}, tbl.Columns())
	require.Equal(t, 2, tbl.NumRows())

	v, ok := tbl.Get(0, "Month")
	assert.True(t, ok)
	assert.Equal(t, "Jan", v)
	v, ok = tbl.Cell(1, 1)
	assert.True(t, ok)
	assert.Equal(t, "$12,000", v)
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize(nil, DefaultPolicy())
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Normalize(Raw{{"a", "b"}, {"c"}}, DefaultPolicy())
	assert.ErrorIs(t, err, ErrNoHeaderFound)

	_, err = Normalize(Raw{{"a", "b", "c"}}, FixedPolicy(3))
	assert.ErrorIs(t, err, ErrNoHeaderFound)
}

func TestNormalize_HeuristicSkipsBanners(t *testing.T) {
	raw := Raw{
		{"", "  ", ""},
		{"Quarterly report", "draft"},
		{"Line", "Q1", "Q2", "Q3"},
		{"Revenue", "1", "2", "3"},
	}
	tbl, err := Normalize(raw, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.HeaderRow())
	assert.Equal(t, 1, tbl.NumRows())
}

func TestNormalize_ThresholdIsConfigurable(t *testing.T) {
	raw := Raw{
		{"", ""},
		{"Label", "Value"},
		{"MRR", "50000"},
	}
	_, err := Normalize(raw, DefaultPolicy())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoHeaderFound))

	tbl, err := Normalize(raw, HeaderPolicy{Mode: HeaderHeuristic, MinCells: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Label", "Value"}, tbl.Columns())
}

func TestNormalize_SingleColumnEscape(t *testing.T) {
	raw := Raw{
		{"", "FY2024 Profit and Loss", ""},
		{"Line", "Amount"},
		{"EBITDA", "12"},
	}
	tbl, err := Normalize(raw, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.HeaderRow())
	assert.Equal(t, []string{"Line", "Amount"}, tbl.Columns())
	assert.Equal(t, 1, tbl.NumRows())
}

func TestNormalize_FixedPolicy(t *testing.T) {
	tbl, err := Normalize(pioneer(), FixedPolicy(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Pioneer Broadband P&L"}, tbl.Columns())
	assert.Equal(t, 3, tbl.NumRows())
	// Long rows are truncated to the header width.
	assert.Equal(t, []string{"Month"}, tbl.Row(0))
}

func TestNormalize_PaddingInvariant(t *testing.T) {
	raw := Raw{
		{"a", "b", "c", "d"},
		{"1"},
		{},
		{"1", "2", "3", "4", "5", "6"},
	}
	tbl, err := Normalize(raw, DefaultPolicy())
	require.NoError(t, err)
	for i := 0; i < tbl.NumRows(); i++ {
		assert.Len(t, tbl.Row(i), len(tbl.Columns()), "row %d", i)
	}
	assert.Equal(t, []string{"1", "", "", ""}, tbl.Row(0))
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := Raw{
		{"x", "", "x", "Amount", "Amount"},
		{"1", "2", "3", "4", "5"},
	}
	first, err := Normalize(raw, DefaultPolicy())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Normalize(raw, DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, first.Columns(), again.Columns())
		assert.Equal(t, first.NumRows(), again.NumRows())
	}
}

func TestColumnNames(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"duplicates", []string{"Amount", "Amount", "Month"}, []string{"Amount", "Amount_2", "Month"}},
		{"blanks", []string{"", " Month ", ""}, []string{"Column_1", "Month", "Column_3"}},
		{"triple", []string{"a", "a", "a"}, []string{"a", "a_2", "a_3"}},
		{"suffix collision", []string{"a", "a_2", "a"}, []string{"a", "a_2", "a_3"}},
		{"blank collides with literal", []string{"Column_2", ""}, []string{"Column_2", "Column_2_2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ColumnNames(tc.in)
			assert.Equal(t, tc.want, got)

			seen := map[string]bool{}
			for _, n := range got {
				assert.False(t, seen[n], "duplicate %q", n)
				seen[n] = true
			}
		})
	}
}

func TestTable_AccessorsAreCopies(t *testing.T) {
	tbl, err := Normalize(pioneer(), DefaultPolicy())
	require.NoError(t, err)

	cols := tbl.Columns()
	cols[0] = "mutated"
	row := tbl.Row(0)
	row[0] = "mutated"

	assert.Equal(t, "Month", tbl.Columns()[0])
	v, _ := tbl.Cell(0, 0)
	assert.Equal(t, "Jan", v)

	rec := tbl.Record(1)
	assert.Equal(t, "Feb", rec["Month"])

	_, ok := tbl.Cell(5, 0)
	assert.False(t, ok)
	_, ok = tbl.Get(0, "Nope")
	assert.False(t, ok)
}

func TestTable_Select(t *testing.T) {
	tbl, err := Normalize(pioneer(), DefaultPolicy())
	require.NoError(t, err)

	sub := tbl.Select([]int{1, 7})
	assert.Equal(t, 1, sub.NumRows())
	v, _ := sub.Get(0, "Month")
	assert.Equal(t, "Feb", v)
}

func TestParseHeaderMode(t *testing.T) {
	m, err := ParseHeaderMode("")
	require.NoError(t, err)
	assert.Equal(t, HeaderHeuristic, m)

	m, err = ParseHeaderMode(" Fixed ")
	require.NoError(t, err)
	assert.Equal(t, HeaderFixed, m)

	_, err = ParseHeaderMode("magic")
	assert.Error(t, err)
}
