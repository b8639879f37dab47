// Command validate performs end-to-end integrity checks on the mock data: the
// CSV field sheet, the raw sample JSON fixture and, when given, the assessed
// sample fixture written by genmock. It re-runs the damage engine over every
// raw sample and checks the estimate invariants.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/field_samples.csv \
//	  -raw-json data/mock/raw_field_samples.json \
//	  -assessed-json data/mock/assessed_field_samples.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

var (
	baseDate    = time.Date(2024, time.December, 3, 0, 0, 0, 0, time.UTC)
	processedAt = time.Date(2024, time.December, 4, 9, 0, 0, 0, time.UTC)
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "CSV field sheet")
	rawJSON := flag.String("raw-json", "", "path to the raw sample JSON fixture")
	assessedJSON := flag.String("assessed-json", "", "path to the assessed sample JSON fixture (optional)")
	strict := flag.Bool("strict-stages", false, "validate with strict stage routing")
	flag.Parse()

	if *csvPath == "" || *rawJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *rawJSON, *assessedJSON, *strict); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, rawJSONPath, assessedJSONPath string, strict bool) int {
	// Set a fixed clock matching genmock.
	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	fmt.Println("=== Crop Damage Data Integrity Validation ===")
	fmt.Println()

	sheet, err := loadSheet(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load field sheet: %v\n", err)
		return 1
	}

	raw, err := loadJSON[domain.RawSampleRecord](rawJSONPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw JSON: %v\n", err)
		return 1
	}

	var fixture []domain.FieldSample
	if assessedJSONPath != "" {
		fixture, err = loadJSON[domain.FieldSample](assessedJSONPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load assessed JSON: %v\n", err)
			return 1
		}
	}

	engine := domain.NewEngine(nil,
		domain.WithStrictStages(strict),
		domain.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	assessed, parsePhase := assessAll(engine, raw)

	phases := []*phase{
		validateSheetParity(sheet, raw),
		parsePhase,
		validateInvariants(engine, assessed),
		validateFixture(assessed, fixture, assessedJSONPath == ""),
		validateRecompute(engine, assessed),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d sheet rows, %d raw JSON, %d assessed fixture\n", len(sheet), len(raw), len(fixture))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadSheet(path string) ([]domain.RawSampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return domain.ParseFieldSheet(f)
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// assessAll runs each raw record through parsing and the engine, the same way
// the pipeline and genmock do.
func assessAll(engine *domain.Engine, raw []domain.RawSampleRecord) ([]domain.FieldSample, *phase) {
	p := &phase{name: "Phase 2: Raw Parsing"}
	out := make([]domain.FieldSample, 0, len(raw))
	for i := range raw {
		payload, err := json.Marshal(raw[i])
		if err != nil {
			p.errorf("record %d: marshal: %v", i, err)
			continue
		}
		sample, err := domain.ParseRawSample(domain.RawEvent{Value: payload, Timestamp: baseDate})
		if err != nil {
			p.errorf("record %d (%s): %v", i, raw[i].SampleID, err)
			continue
		}
		if raw[i].Coordinate != "" && sample.Geo == nil && raw[i].Coordinate != "Error obteniendo coordenadas" {
			p.errorf("record %d (%s): unreadable coordinate %q", i, raw[i].SampleID, raw[i].Coordinate)
		}
		out = append(out, domain.AssessSample(engine, sample))
	}
	return out, p
}

// ── Phase 1: Sheet Parity ──
// Validates that the raw JSON fixture carries exactly the field sheet rows.

func validateSheetParity(sheet, raw []domain.RawSampleRecord) *phase {
	p := &phase{name: "Phase 1: Sheet Parity (CSV vs raw JSON)"}

	if len(sheet) != len(raw) {
		p.errorf("count: sheet has %d rows, raw JSON has %d", len(sheet), len(raw))
		return p
	}
	for i := range sheet {
		s, r := sheet[i], raw[i]
		line := i + 2
		if s.SampleID != r.SampleID {
			p.errorf("line %d: sample_id sheet=%q json=%q", line, s.SampleID, r.SampleID)
			continue
		}
		if s.Crop != r.Crop || s.Stage != r.Stage {
			p.errorf("line %d (%s): crop/stage sheet=%s/%s json=%s/%s", line, s.SampleID, s.Crop, s.Stage, r.Crop, r.Stage)
		}
		if s.LotID != r.LotID || s.OperationID != r.OperationID || s.Number != r.Number {
			p.errorf("line %d (%s): identity fields differ", line, s.SampleID)
		}
		if !maps.Equal(s.Datos, r.Datos) {
			p.errorf("line %d (%s): datos sheet=%v json=%v", line, s.SampleID, s.Datos, r.Datos)
		}
	}
	return p
}

// ── Phase 3: Estimate Invariants ──

func validateInvariants(engine *domain.Engine, samples []domain.FieldSample) *phase {
	p := &phase{name: "Phase 3: Estimate Invariants"}

	ids := map[string]string{}
	for i := range samples {
		s := &samples[i]
		if prev, dup := ids[s.ID]; dup {
			p.errorf("%s: ID %s already used by %s", s.SampleID, s.ID, prev)
		}
		ids[s.ID] = s.SampleID

		v, ok := s.Damage.Value()
		switch {
		case !ok && s.Stage.Group != domain.GroupSoybeanLateReproductive:
			p.errorf("%s: not applicable outside soybean R8 (%s)", s.SampleID, s.Stage.Group)
		case ok && (v < 0 || v > 100):
			p.errorf("%s: damage %g out of range", s.SampleID, v)
		case ok && math.Abs(v*10-math.Round(v*10)) > 1e-9:
			p.errorf("%s: damage %g has more than one decimal", s.SampleID, v)
		}
		if s.DamageDisplay != s.Damage.String() {
			p.errorf("%s: display %q does not match %q", s.SampleID, s.DamageDisplay, s.Damage.String())
		}
		if s.Diagnostic == "" && s.SampleType != string(s.Stage.Group) {
			p.errorf("%s: sample_type %q but stage group %q", s.SampleID, s.SampleType, s.Stage.Group)
		}
		if s.Outcome() == "error" {
			p.errorf("%s: %s", s.SampleID, s.Diagnostic)
		}

		again := engine.Estimate(s.Datos, s.StageCode, string(s.Crop))
		if again != s.Damage {
			p.errorf("%s: estimate not idempotent: %s then %s", s.SampleID, s.Damage, again)
		}
	}
	return p
}

// ── Phase 4: Assessed Fixture ──
// Validates that the assessed fixture matches a fresh assessment.

func validateFixture(assessed, fixture []domain.FieldSample, skip bool) *phase {
	p := &phase{name: "Phase 4: Assessed Fixture (genmock output)", skipped: skip}
	if skip {
		return p
	}

	byID := make(map[string]*domain.FieldSample, len(fixture))
	for i := range fixture {
		if fixture[i].ID == "" {
			p.errorf("fixture record %d: missing ID", i)
			continue
		}
		byID[fixture[i].ID] = &fixture[i]
	}
	if len(fixture) != len(assessed) {
		p.errorf("count: fixture has %d samples, expected %d", len(fixture), len(assessed))
	}

	for i := range assessed {
		want := &assessed[i]
		got, ok := byID[want.ID]
		if !ok {
			p.errorf("%s: ID %s not found in fixture", want.SampleID, want.ID)
			continue
		}
		compareSamples(p, want, got)
	}
	return p
}

func compareSamples(p *phase, want, got *domain.FieldSample) {
	id := want.SampleID
	if want.Damage != got.Damage {
		p.errorf("%s: damage want %q got %q", id, want.Damage, got.Damage)
	}
	if want.Stage != got.Stage {
		p.errorf("%s: stage want %+v got %+v", id, want.Stage, got.Stage)
	}
	if want.StageFallback != got.StageFallback {
		p.errorf("%s: stage fallback want %t got %t", id, want.StageFallback, got.StageFallback)
	}
	if len(want.Factors) != len(got.Factors) {
		p.errorf("%s: %d factors, fixture has %d", id, len(want.Factors), len(got.Factors))
	}
	if want.CoordinateDMS != got.CoordinateDMS {
		p.errorf("%s: coordinate want %q got %q", id, want.CoordinateDMS, got.CoordinateDMS)
	}
	if !want.ProcessedAt.Equal(got.ProcessedAt) {
		p.errorf("%s: processed_at want %s got %s", id, want.ProcessedAt.Format(time.RFC3339), got.ProcessedAt.Format(time.RFC3339))
	}
}

// ── Phase 5: Recompute ──
// Re-selecting a sample's own stage must reproduce its estimate.

func validateRecompute(engine *domain.Engine, samples []domain.FieldSample) *phase {
	p := &phase{name: "Phase 5: Recompute Consistency"}

	for i := range samples {
		s := samples[i]
		if s.Diagnostic != "" {
			continue
		}
		updated, n := engine.Recompute([]domain.FieldSample{s}, s.StageCode, string(s.Crop))
		switch {
		case !s.Open() && n != 0:
			p.errorf("%s: sample in lot %s was recomputed", s.SampleID, s.LotID)
		case s.Open() && n != 1:
			p.errorf("%s: open sample was not recomputed", s.SampleID)
		case updated[0].Damage != s.Damage:
			p.errorf("%s: recompute changed damage %s -> %s", s.SampleID, s.Damage, updated[0].Damage)
		}
	}
	return p
}
