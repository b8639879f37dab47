package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingNumberRe matches the numeric prefix a hand-typed field starts with,
// e.g. "12.5 plantas" -> "12.5", ".5" -> ".5", "3e2x" -> "3e2".
var leadingNumberRe = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseDecimal parses a hand-typed number permissively. The first comma is read
// as the decimal separator, trailing garbage after a numeric prefix is ignored,
// and anything unparseable yields 0.
func ParseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.Replace(s, ",", ".", 1)

	prefix := leadingNumberRe.FindString(s)
	if prefix == "" {
		return 0
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatDecimal renders v with a fixed number of decimals and a comma
// separator: 10.5 -> "10,5".
func FormatDecimal(v float64, decimals int) string {
	s := strconv.FormatFloat(roundTo(v, decimals), 'f', decimals, 64)
	return strings.Replace(s, ".", ",", 1)
}

// exactDigits is enough fraction digits to print any float64 exactly.
const exactDigits = 1074

// roundTo rounds to a fixed number of decimals on the exact decimal expansion
// of v, halves away from zero: 27.25 -> 27.3 at one decimal, while 1.005 ->
// 1.00 at two because it is stored as 1.00499....
func roundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', exactDigits, 64)
	dot := strings.IndexByte(s, '.')
	n, err := strconv.ParseUint(s[:dot]+s[dot+1:dot+1+decimals], 10, 64)
	if err != nil || n >= 1<<53 {
		// Beyond 2^53 there is no fraction left to round.
		return v
	}
	if s[dot+1+decimals] >= '5' {
		n++
	}
	r := float64(n) / math.Pow10(decimals)
	if r == 0 {
		// Drop negative zero so it never renders as "-0,0".
		return 0
	}
	if v < 0 {
		return -r
	}
	return r
}

// roundHalfUp rounds halves toward positive infinity: 2.5 -> 3, -2.5 -> -2.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
