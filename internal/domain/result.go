package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Result is the outcome of a damage estimate: either a percentage with one
// decimal or NotApplicable. The zero value is Percentage(0).
type Result struct {
	value         float64
	notApplicable bool
}

// Percentage returns a result holding v rounded to one decimal.
func Percentage(v float64) Result {
	return Result{value: roundTo(v, 1)}
}

// NotApplicable returns the result of a formula whose precondition does not hold.
func NotApplicable() Result {
	return Result{notApplicable: true}
}

// Value returns the percentage and true, or 0 and false for NotApplicable.
func (r Result) Value() (float64, bool) {
	if r.notApplicable {
		return 0, false
	}
	return r.value, true
}

// Applicable reports whether r holds a percentage.
func (r Result) Applicable() bool {
	return !r.notApplicable
}

// String renders the percentage with a comma separator, e.g. "10,5".
// NotApplicable renders as an empty string.
func (r Result) String() string {
	if r.notApplicable {
		return ""
	}
	return FormatDecimal(r.value, 1)
}

// MarshalJSON encodes a percentage as a number and NotApplicable as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.notApplicable {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(r.value, 'f', 1, 64)), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = NotApplicable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode damage result: %w", err)
	}
	*r = Percentage(v)
	return nil
}

// clamped limits a percentage to [0, 100].
func (r Result) clamped() Result {
	if r.notApplicable {
		return r
	}
	switch {
	case r.value < 0:
		return Percentage(0)
	case r.value > 100:
		return Percentage(100)
	}
	return r
}
