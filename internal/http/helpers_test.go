package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pnldash/internal/kpi"
)

func TestFormatters(t *testing.T) {
	v := kpi.Of(decimal.RequireFromString("1234567.891"))

	assert.Equal(t, "1,234,567.89", formatAmount(v))
	assert.Equal(t, "1,234,568", formatCount(v))
	assert.Equal(t, "+1,234,567.89", formatSigned(v))
	assert.Equal(t, "-950.00", formatAmount(kpi.Of(decimal.NewFromInt(-950))))
	assert.Equal(t, "-1,000.00", formatSigned(kpi.Of(decimal.NewFromInt(-1000))))
	assert.Equal(t, "0.00", formatAmount(kpi.Unavailable))
	assert.Equal(t, "0", formatCount(kpi.Unavailable))
	assert.Equal(t, "62.5%", formatPercent(kpi.Float(62.5)))
	assert.Equal(t, "100", groupThousands("100"))
	assert.Equal(t, "100,000", groupThousands("100000"))
}

func TestThemeCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, ThemeLight, themeFromRequest(r))

	r.AddCookie(&http.Cookie{Name: themeCookie, Value: "DARK"})
	assert.Equal(t, ThemeDark, themeFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: themeCookie, Value: "neon"})
	assert.Equal(t, ThemeLight, themeFromRequest(r))

	w := httptest.NewRecorder()
	setThemeCookie(w, ThemeDark)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "theme=dark")
}
