package csvexport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

const pioneerCSV = "Pioneer Broadband P&L,,\nMonth,Revenue,Expense\nJan,\"$10,000\",\"$4,000\"\nFeb,\"$12,000\",\"$5,000\"\n"

func TestFetch(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(pioneerCSV))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil, time.Second)
	raw, err := c.Fetch(context.Background(), "abc123", "P&L 2024")
	require.NoError(t, err)

	assert.Equal(t, "/abc123/export", gotPath)
	assert.Equal(t, "format=csv&sheet=P%26L+2024", gotQuery)
	require.Len(t, raw, 4)
	assert.Equal(t, []string{"Jan", "$10,000", "$4,000"}, raw[2])

	tbl, err := table.Normalize(raw, table.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, []string{"Month", "Revenue", "Expense"}, tbl.Columns())
}

func TestFetch_Latin1(t *testing.T) {
	body, err := charmap.ISO8859_1.NewEncoder().String("Mês,Receita,Despesa\nJan,1,2\n")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=ISO-8859-1")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	raw, err := New(srv.URL, srv.Client(), 0).Fetch(context.Background(), "abc", "")
	require.NoError(t, err)
	assert.Equal(t, "Mês", raw[0][0])
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ports.ErrRangeNotFound},
		{http.StatusUnauthorized, ports.ErrSourceUnavailable},
		{http.StatusBadGateway, ports.ErrSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(srv.URL, nil, time.Second).Fetch(context.Background(), "abc", "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pioneerCSV))
	}))
	defer srv.Close()

	c := New(srv.URL, nil, time.Second)
	c.maxBody = int64(len(pioneerCSV)) - 1
	_, err := c.Fetch(context.Background(), "abc", "")
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "exceeds")

	c.maxBody = int64(len(pioneerCSV))
	raw, err := c.Fetch(context.Background(), "abc", "")
	require.NoError(t, err)
	assert.Len(t, raw, 4)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil, time.Second).Fetch(context.Background(), "abc", "")
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestExportURL_Default(t *testing.T) {
	c := New("", nil, time.Second)
	assert.Equal(t, DefaultBaseURL+"/abc/export?format=csv", c.ExportURL(" abc ", ""))
}
