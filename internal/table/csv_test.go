package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_RaggedAndBOM(t *testing.T) {
	in := "\ufeffPioneer Broadband P&L\nMonth,Revenue,Expense\nJan,\"$10,000\",\"$4,000\"\nFeb,\"$12,000\"\n"

	raw, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, Raw{
		{"Pioneer Broadband P&L"},
		{"Month", "Revenue", "Expense"},
		{"Jan", "$10,000", "$4,000"},
		{"Feb", "$12,000"},
	}, raw)

	tbl, err := Normalize(raw, DefaultPolicy())
	require.NoError(t, err)
	v, _ := tbl.Get(1, "Expense")
	assert.Equal(t, "", v)
}

func TestReadCSV_Empty(t *testing.T) {
	raw, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestWriteCSV(t *testing.T) {
	tbl := New([]string{"Month", "Note"}, [][]string{
		{"Jan", "ok"},
		{"Feb", "has, comma"},
	})

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t, "Month,Note\nJan,ok\nFeb,\"has, comma\"\n", buf.String())
}
