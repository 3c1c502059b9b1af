package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pnldash/internal/kpi"
)

// Theme cookie values.
const (
	themeCookie = "theme"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// themeFromRequest reads the theme cookie; anything unknown is light.
func themeFromRequest(r *http.Request) string {
	c, err := r.Cookie(themeCookie)
	if err != nil {
		return ThemeLight
	}
	return normalizeTheme(c.Value)
}

func normalizeTheme(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

func setThemeCookie(w http.ResponseWriter, theme string) {
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    theme,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// formatAmount renders a value with thousands separators and two decimals.
// Unavailable values render as 0.
func formatAmount(v kpi.Value) string {
	return groupThousands(v.Display().StringFixed(2))
}

// formatCount renders a value as a whole number.
func formatCount(v kpi.Value) string {
	return groupThousands(v.Display().Round(0).String())
}

// formatPercent renders a percentage with one decimal.
func formatPercent(v kpi.Value) string {
	return v.Display().StringFixed(1) + "%"
}

// formatSigned is formatAmount with an explicit sign for positive values.
func formatSigned(v kpi.Value) string {
	s := formatAmount(v)
	if v.Display().GreaterThan(decimal.Zero) {
		return "+" + s
	}
	return s
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
