// Package kpi extracts financial KPIs from normalized tables.
//
// Every lookup here is total: a missing cell, an unknown label or a value
// that does not parse yields an unavailable Value instead of an error.
package kpi

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Value is a nullable decimal. The zero Value is unavailable.
type Value struct {
	Amount decimal.Decimal
	Valid  bool
}

// Unavailable is the value used when no number could be determined.
var Unavailable = Value{}

// Of wraps a known amount.
func Of(d decimal.Decimal) Value { return Value{Amount: d, Valid: true} }

// Float wraps a float64 amount.
func Float(f float64) Value { return Of(decimal.NewFromFloat(f)) }

// Display returns the amount shown to users. Unavailable values display as
// zero, which makes them indistinguishable from a real zero on screen.
func (v Value) Display() decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Amount
}

// OrZero is Display as a float64.
func (v Value) OrZero() float64 {
	f, _ := v.Display().Float64()
	return f
}

// IsZeroOrMissing reports whether the displayed value is 0.
func (v Value) IsZeroOrMissing() bool {
	return v.Display().IsZero()
}

// Add sums two values. Unavailable operands contribute zero; the result is
// valid if either operand is.
func (v Value) Add(o Value) Value {
	if !v.Valid && !o.Valid {
		return Unavailable
	}
	return Of(v.Display().Add(o.Display()))
}

// String formats the amount with two decimals, or "n/a".
func (v Value) String() string {
	if !v.Valid {
		return "n/a"
	}
	return v.Amount.StringFixed(2)
}

// MarshalJSON encodes unavailable values as null and amounts as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Amount.String())
}

// UnmarshalJSON accepts null, numbers and numeric strings.
func (v *Value) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*v = Unavailable
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*v = Of(d)
	return nil
}
