package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "pnldash/internal/sheets"
	"pnldash/internal/table"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return New(svc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetch_Values(t *testing.T) {
	var gotPath, gotRender string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRender = r.URL.Query().Get("valueRenderOption")
		writeJSON(w, http.StatusOK, map[string]any{
			"range": "P&L!A1:C4",
			"values": [][]any{
				{"Pioneer Broadband P&L"},
				{"Month", "Revenue", "Expense"},
				{"Jan", "$10,000", " $4,000 "},
				{"Feb", 12000, nil},
			},
		})
	})

	raw, err := c.Fetch(context.Background(), "sheet-123", "P&L")
	require.NoError(t, err)

	assert.Contains(t, gotPath, "/v4/spreadsheets/sheet-123/values/")
	assert.Equal(t, "FORMATTED_VALUE", gotRender)
	assert.Equal(t, table.Raw{
		{"Pioneer Broadband P&L"},
		{"Month", "Revenue", "Expense"},
		{"Jan", "$10,000", "$4,000"},
		{"Feb", "12000", ""},
	}, raw)
}

func TestFetch_DefaultRange(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]any{"values": [][]any{}})
	})

	raw, err := c.Fetch(context.Background(), "sheet-123", "  ")
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.True(t, strings.HasSuffix(gotPath, "/values/"+defaultRange), gotPath)
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{"not found", http.StatusNotFound, "Requested entity was not found.", ports.ErrRangeNotFound},
		{"bad range", http.StatusBadRequest, "Unable to parse range: Nope!A1", ports.ErrRangeNotFound},
		{"forbidden", http.StatusForbidden, "The caller does not have permission", ports.ErrSourceUnavailable},
		{"server", http.StatusInternalServerError, "Internal error", ports.ErrSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{
					"error": map[string]any{"code": tt.status, "message": tt.message},
				})
			})
			_, err := c.Fetch(context.Background(), "sheet-123", "Nope")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_Unconfigured(t *testing.T) {
	_, err := (&Client{}).Fetch(context.Background(), "x", "")
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err = c.Fetch(context.Background(), " ", "")
	assert.ErrorIs(t, err, ports.ErrRangeNotFound)
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNewFromEnv_UnreadableFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/does/not/exist.json")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
