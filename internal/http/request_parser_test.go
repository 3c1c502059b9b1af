package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseTableQuery(t *testing.T) {
	q := ParseTableQuery(url.Values{"q": {"  jan\x00 "}, "column": {"Month"}, "tab": {"P&L"}})

	if q.Q != "jan" {
		t.Errorf("Q = %q, want jan", q.Q)
	}
	if q.Column != "Month" || q.Tab != "P&L" {
		t.Errorf("ParseTableQuery() = %+v", q)
	}
	if got := q.Values().Encode(); got != "column=Month&q=jan&tab=P%26L" {
		t.Errorf("Values() = %q", got)
	}

	long := ParseTableQuery(url.Values{"q": {strings.Repeat("x", 500)}})
	if len(long.Q) != maxQueryLen {
		t.Errorf("Q length = %d, want %d", len(long.Q), maxQueryLen)
	}

	// Two-byte runes starting at odd offsets put byte 200 mid-rune.
	multi := ParseTableQuery(url.Values{"q": {"x" + strings.Repeat("é", 300)}})
	if !utf8.ValidString(multi.Q) || len(multi.Q) != maxQueryLen-1 {
		t.Errorf("Q = %d bytes, valid=%v", len(multi.Q), utf8.ValidString(multi.Q))
	}

	if got := (TableQuery{}).Values().Encode(); got != "" {
		t.Errorf("empty Values() = %q", got)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"missing", "", 50},
		{"valid", "10", 10},
		{"clamped", "5000", 500},
		{"negative", "-1", 50},
		{"garbage", "ten", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			if tt.value != "" {
				q.Set("limit", tt.value)
			}
			if got := ParseLimit(q, "limit", 50, 500); got != tt.want {
				t.Errorf("ParseLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		wantTab     string
	}{
		{"json", `{"tab":"Q1","force":true}`, "application/json", true, "Q1"},
		{"form", "tab=Q2", "application/x-www-form-urlencoded", false, "Q2"},
		{"empty", "", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			p := NewRequestBodyParser(r)
			if err := p.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if got := p.Get("tab"); got != tt.wantTab {
				t.Errorf("Get(tab) = %q, want %q", got, tt.wantTab)
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{"tab":`))
	if err := NewRequestBodyParser(r).Parse(); err == nil {
		t.Error("Parse() should fail on truncated JSON")
	}
}

func TestRequireMethod(t *testing.T) {
	if RequireGET(httptest.NewRequest(http.MethodHead, "/", nil)) != nil {
		t.Error("HEAD should satisfy RequireGET")
	}
	resp := RequirePOST(httptest.NewRequest(http.MethodGet, "/refresh", nil))
	if resp == nil {
		t.Fatal("GET should not satisfy RequirePOST")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "POST" {
		t.Errorf("got %d Allow=%q", w.Code, w.Header().Get("Allow"))
	}
}
