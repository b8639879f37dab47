// Command genmock reads a CSV field sheet and generates the mock data fixtures
// used by the pipeline tests: the raw sample records as the capture app
// publishes them, and the assessed samples the service produces. It runs the
// real domain package so the fixtures match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/field_samples.csv \
//	  -raw-out data/mock/raw_field_samples.json \
//	  -assessed-out data/mock/assessed_field_samples.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// baseDate stands in for the Kafka message timestamp of samples without a
// capture date.
var baseDate = time.Date(2024, time.December, 3, 0, 0, 0, 0, time.UTC)

// processedAt is the fixed assessment time, shared with cmd/validate.
var processedAt = time.Date(2024, time.December, 4, 9, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "CSV field sheet")
	rawOut := flag.String("raw-out", "", "output path for the raw sample JSON fixture")
	assessedOut := flag.String("assessed-out", "", "output path for the assessed sample JSON fixture")
	strict := flag.Bool("strict-stages", false, "reject unmapped stage codes instead of using the crop default")
	flag.Parse()

	if *csvPath == "" || *rawOut == "" || *assessedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -raw-out, -assessed-out")
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	f, err := os.Open(*csvPath)
	if err != nil {
		return fmt.Errorf("open field sheet: %w", err)
	}
	defer f.Close()

	records, err := domain.ParseFieldSheet(f)
	if err != nil {
		return err
	}
	log.Printf("field sheet: %d samples", len(records))

	engine := domain.NewEngine(nil,
		domain.WithStrictStages(*strict),
		domain.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	assessed := make([]domain.FieldSample, 0, len(records))
	for i := range records {
		payload, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", records[i].SampleID, err)
		}
		sample, err := domain.ParseRawSample(domain.RawEvent{Value: payload, Timestamp: baseDate})
		if err != nil {
			return fmt.Errorf("sample %s: %w", records[i].SampleID, err)
		}
		assessed = append(assessed, domain.AssessSample(engine, sample))
	}

	if err := writeJSON(*rawOut, records); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*assessedOut, assessed); err != nil {
		return fmt.Errorf("writing assessed fixture: %w", err)
	}
	log.Printf("wrote assessed fixture: %s", *assessedOut)

	printStats(assessed)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// statsResult holds aggregated counts for printStats reporting.
type statsResult struct {
	cropCounts    map[domain.Crop]int
	groupCounts   map[domain.Group]int
	outcomeCounts map[string]int
	damageSum     map[domain.Crop]float64
	damageMax     map[domain.Crop]float64
	estimated     map[domain.Crop]int
	withGeo       int
	inLot         int
}

func collectStats(samples []domain.FieldSample) statsResult {
	s := statsResult{
		cropCounts:    map[domain.Crop]int{},
		groupCounts:   map[domain.Group]int{},
		outcomeCounts: map[string]int{},
		damageSum:     map[domain.Crop]float64{},
		damageMax:     map[domain.Crop]float64{},
		estimated:     map[domain.Crop]int{},
	}
	for i := range samples {
		smp := &samples[i]
		s.cropCounts[smp.Crop]++
		s.groupCounts[smp.Stage.Group]++
		s.outcomeCounts[smp.Outcome()]++
		if smp.Geo != nil {
			s.withGeo++
		}
		if !smp.Open() {
			s.inLot++
		}
		if v, ok := smp.Damage.Value(); ok {
			s.damageSum[smp.Crop] += v
			s.damageMax[smp.Crop] = max(s.damageMax[smp.Crop], v)
			s.estimated[smp.Crop]++
		}
	}
	return s
}

func printStats(samples []domain.FieldSample) {
	stats := collectStats(samples)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d (with coordinates: %d, in a lot: %d)\n", len(samples), stats.withGeo, stats.inLot)

	fmt.Println("\nBy crop:")
	for _, c := range domain.Crops() {
		mean := 0.0
		if n := stats.estimated[c]; n > 0 {
			mean = stats.damageSum[c] / float64(n)
		}
		fmt.Printf("  %-8s n=%-3d mean=%s max=%s\n", c, stats.cropCounts[c],
			domain.FormatDecimal(mean, 1), domain.FormatDecimal(stats.damageMax[c], 1))
	}

	fmt.Println("\nBy group:")
	groups := make([]string, 0, len(stats.groupCounts))
	for g := range stats.groupCounts {
		groups = append(groups, string(g))
	}
	sort.Strings(groups)
	for _, g := range groups {
		label := g
		if label == "" {
			label = "(unroutable)"
		}
		fmt.Printf("  %-28s %d\n", label, stats.groupCounts[domain.Group(g)])
	}

	fmt.Printf("\nOutcomes: estimated=%d not_applicable=%d fallback=%d unroutable=%d error=%d\n",
		stats.outcomeCounts["estimated"], stats.outcomeCounts["not_applicable"],
		stats.outcomeCounts["fallback"], stats.outcomeCounts["unroutable"], stats.outcomeCounts["error"])

	printKnownSamples(samples)
}

// printKnownSamples lists the hand-picked "k-" samples the tests pin values for.
func printKnownSamples(samples []domain.FieldSample) {
	fmt.Println("\nPinned samples:")
	for i := range samples {
		smp := &samples[i]
		if !strings.HasPrefix(smp.SampleID, "k-") {
			continue
		}
		display := smp.DamageDisplay
		if display == "" {
			display = "n/a"
		}
		fmt.Printf("  %-16s %-8s %-24s %s\n", smp.SampleID, smp.Crop, smp.Stage.Label, display)
	}
}
