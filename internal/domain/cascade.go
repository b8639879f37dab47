package domain

import "math"

// Bucketing turns a metric into a table bucket.
type Bucketing int

const (
	// Floor truncates toward negative infinity.
	Floor Bucketing = iota
	// RoundHalfUp rounds to the nearest integer, halves up.
	RoundHalfUp
)

// maxBucket bounds bucket conversion; anything larger cannot match a table row.
const maxBucket = 1 << 20

func (b Bucketing) bucket(v float64) int {
	if b == RoundHalfUp {
		v = roundHalfUp(v)
	} else {
		v = math.Floor(v)
	}
	if math.IsNaN(v) || v < -maxBucket || v > maxBucket {
		return -1
	}
	return int(v)
}

// Metric extracts one damage metric, usually a percentage, from a measurement.
type Metric func(Measurement) float64

// Step is one factor of a cascade. When Table is set, the metric is bucketed
// and the table value is the factor's gross damage; otherwise the metric
// itself is. A compounded step only applies to what earlier steps left intact.
// ZeroBucketIsZero pins bucket 0 to no damage whatever the table row holds.
type Step struct {
	Name             string
	Metric           Metric
	Table            Family
	Bucketing        Bucketing
	Compounded       bool
	ZeroBucketIsZero bool
}

// Formula is the damage calculation for one growth-phase group.
type Formula struct {
	Group  Group
	Fields int
	// Applicable, when set, must hold for the formula to produce a percentage.
	Applicable func(Measurement) bool
	Steps      []Step
}

// Factor is the contribution of one step, in step order.
type Factor struct {
	Name      string  `json:"name"`
	Metric    float64 `json:"metric"`
	Table     Family  `json:"table,omitempty"`
	Bucket    *int    `json:"bucket,omitempty"`
	Gross     float64 `json:"gross"`
	Remaining float64 `json:"remaining"`
	Net       float64 `json:"net"`
}

// Evaluate runs the cascade for a stage label. Each step sees remaining =
// 100 - the sum of earlier net contributions; a direct step contributes its
// gross value, a compounded one gross * remaining / 100. The total is rounded
// to one decimal but not clamped.
func (f Formula) Evaluate(m Measurement, stageLabel string, tables *TableStore) (Result, []Factor) {
	if f.Applicable != nil && !f.Applicable(m) {
		return NotApplicable(), nil
	}

	factors := make([]Factor, 0, len(f.Steps))
	var lost float64
	for _, step := range f.Steps {
		fc := Factor{
			Name:      step.Name,
			Metric:    finite(step.Metric(m)),
			Table:     step.Table,
			Remaining: 100 - lost,
		}
		fc.Gross = fc.Metric
		if step.Table != "" {
			b := step.Bucketing.bucket(fc.Metric)
			fc.Bucket = &b
			fc.Gross = tables.Lookup(step.Table, stageLabel, b)
			if b == 0 && step.ZeroBucketIsZero {
				fc.Gross = 0
			}
		}
		fc.Net = fc.Gross
		if step.Compounded {
			fc.Net = fc.Gross * fc.Remaining / 100
		}
		lost += fc.Net
		factors = append(factors, fc)
	}
	return Percentage(lost), factors
}

func field(n int) Metric {
	return func(m Measurement) float64 { return m.Dato(n) }
}

// shareOf returns part / (part + rest) * 100 over the given fields, or 0 when
// the total is not positive.
func shareOf(part []int, rest ...int) Metric {
	return func(m Measurement) float64 {
		p := m.Sum(part...)
		return ratio(p, p+m.Sum(rest...))
	}
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func fields(first, last, step int) []int {
	var out []int
	for n := first; n <= last; n += step {
		out = append(out, n)
	}
	return out
}
