package kpi

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ToNumber coerces a spreadsheet cell to a number. Thousands separators, a
// leading $ and accounting parentheses are accepted; anything else that does
// not parse is unavailable.
func ToNumber(cell string) Value {
	return coerce(cell, false)
}

// ToPercent is ToNumber that also strips a trailing %. "12%" yields 12.
func ToPercent(cell string) Value {
	return coerce(cell, true)
}

func coerce(cell string, percent bool) Value {
	s := strings.TrimSpace(cell)
	if s == "" {
		return Unavailable
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	neg, signed, s := cutSign(s)
	if strings.HasPrefix(s, "$") {
		s = strings.TrimSpace(s[1:])
		if !signed {
			neg, _, s = cutSign(s)
		}
	}
	if neg {
		negative = !negative
	}
	if percent {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return Unavailable
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Unavailable
	}
	if negative {
		d = d.Neg()
	}
	return Of(d)
}

// cutSign removes one leading + or - from s.
func cutSign(s string) (negative, signed bool, rest string) {
	switch {
	case strings.HasPrefix(s, "-"):
		return true, true, strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		return false, true, strings.TrimSpace(s[1:])
	}
	return false, false, s
}
