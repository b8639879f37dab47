package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Measurement holds the raw "dato_N" fields of one field sample exactly as they
// were typed. Values are parsed on read, so a missing or malformed field is 0.
type Measurement map[string]string

// NewMeasurement builds a Measurement whose dato_1..dato_N are the given values.
func NewMeasurement(values ...float64) Measurement {
	m := make(Measurement, len(values))
	for i, v := range values {
		m[datoKey(i+1)] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return m
}

// Dato returns field n (1-based) parsed with ParseDecimal.
func (m Measurement) Dato(n int) float64 {
	return ParseDecimal(m[datoKey(n)])
}

// Sum adds up the given 1-based fields.
func (m Measurement) Sum(fields ...int) float64 {
	var total float64
	for _, n := range fields {
		total += m.Dato(n)
	}
	return total
}

// UnmarshalJSON accepts field values as JSON strings or numbers. Any other value
// kind reads back as 0.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode measurement: %w", err)
	}

	out := make(Measurement, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(value, &n); err == nil {
			out[key] = n.String()
		}
	}
	*m = out
	return nil
}

func datoKey(n int) string {
	return "dato_" + strconv.Itoa(n)
}
