package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/couchcryptid/crop-damage-etl/internal/observability"
	"github.com/couchcryptid/crop-damage-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	mu     sync.Mutex
	events []domain.RawEvent
	next   int
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	if m.next < len(m.events) {
		end := min(m.next+batchSize, len(m.events))
		batch := m.events[m.next:end]
		m.next = end
		m.mu.Unlock()
		return batch, nil
	}
	m.mu.Unlock()

	// block until context cancelled to simulate waiting for messages
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu      sync.Mutex
	err     error
	batches int
	loaded  []domain.OutputEvent
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches++
	m.loaded = append(m.loaded, events...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawEvent(t, "s-1", "soja", "3", 10, 90, 0, 0)

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, quietLogger(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, raw.Value, ldr.loaded[0].Value)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_SplitsIntoBatches(t *testing.T) {
	events := make([]domain.RawEvent, 5)
	for i := range events {
		events[i] = makeRawEvent(t, "s-"+string(rune('a'+i)), "trigo", "1", 10, 0, 90)
	}

	ext := &mockExtractor{events: events}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, quietLogger(), newTestMetrics(), 2)
	runFor(t, p, 300*time.Millisecond)

	assert.Len(t, ldr.loaded, 5)
	assert.Equal(t, 3, ldr.batches)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no events, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, quietLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	committed := false
	raw := makeRawEvent(t, "s-2", "soja", "3")
	raw.Commit = func(_ context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, quietLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.True(t, committed, "poison messages are committed so they are not redelivered")
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	commitCalled := false

	raw := makeRawEvent(t, "s-5", "girasol", "11", 10, 0, 90, 10, 0)
	raw.Topic = "raw-field-samples"
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, quietLogger(), newTestMetrics(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.True(t, commitCalled)
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commitCalled := false
	raw := makeRawEvent(t, "s-6", "maiz", "1", 0, 0, 50)
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, quietLogger(), newTestMetrics(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.False(t, commitCalled)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestSampleTransformer_Transform(t *testing.T) {
	fixed := time.Date(2024, time.December, 3, 15, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	metrics := newTestMetrics()
	engine := domain.NewEngine(nil, domain.WithLogger(quietLogger()))
	tfm := pipeline.NewTransformer(engine, nil, quietLogger(), metrics)

	out, err := tfm.Transform(context.Background(), makeRawEvent(t, "s-3", "Soja", "3", 25, 75, 20, 50))
	require.NoError(t, err)

	assert.Equal(t, "soja", out.Headers["crop"])
	assert.Equal(t, "v9-vn", out.Headers["stage"])
	assert.Equal(t, "17,2", out.Headers["damage"])
	assert.Equal(t, "2024-12-03T15:30:00Z", out.Headers["processed_at"])

	var sample domain.FieldSample
	require.NoError(t, json.Unmarshal(out.Value, &sample))
	assert.Equal(t, string(out.Key), sample.ID)

	type summary struct {
		SampleID   string
		Crop       domain.Crop
		Group      domain.Group
		SampleType string
		Damage     float64
	}
	damage, ok := sample.Damage.Value()
	require.True(t, ok)
	want := summary{"s-3", domain.Soybean, domain.GroupSoybeanVegetative, "soybean_vegetative", 17.2}
	got := summary{sample.SampleID, sample.Crop, sample.Stage.Group, sample.SampleType, damage}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("assessed sample mismatch (-want +got):\n%s", diff)
	}

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DamageEstimates.WithLabelValues("soja", "soybean_vegetative", "estimated")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.DamagePercent))
}

func TestSampleTransformer_NotApplicableAndUnroutable(t *testing.T) {
	metrics := newTestMetrics()
	engine := domain.NewEngine(nil, domain.WithLogger(quietLogger()))
	tfm := pipeline.NewTransformer(engine, nil, quietLogger(), metrics)

	out, err := tfm.Transform(context.Background(), makeRawEvent(t, "s-r8", "soja", "13", 0, 0, 0, 5, 5))
	require.NoError(t, err)
	assert.Empty(t, out.Headers["damage"])
	assert.Contains(t, string(out.Value), `"damage":null`)

	out, err = tfm.Transform(context.Background(), makeRawEvent(t, "s-x", "maiz", "15", 4, 80, 30))
	require.NoError(t, err)
	assert.Equal(t, "0,0", out.Headers["damage"])
	assert.Contains(t, string(out.Value), `"diagnostic"`)

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DamageEstimates.WithLabelValues("soja", "soybean_late_reproductive", "not_applicable")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DamageEstimates.WithLabelValues("maiz", "none", "unroutable")), 0)
}

func TestSampleTransformer_InvalidPayload(t *testing.T) {
	engine := domain.NewEngine(nil, domain.WithLogger(quietLogger()))
	tfm := pipeline.NewTransformer(engine, nil, quietLogger(), nil)

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse raw sample")
}

// --- helpers ---

func makeRawEvent(t *testing.T, sampleID, crop, stage string, datos ...float64) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.RawSampleRecord{
		SampleID:    sampleID,
		OperationID: "op-test",
		Crop:        crop,
		Stage:       domain.StageCode(stage),
		Datos:       domain.NewMeasurement(datos...),
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:       []byte(sampleID),
		Value:     data,
		Timestamp: time.Date(2024, time.December, 3, 12, 0, 0, 0, time.UTC),
	}
}
