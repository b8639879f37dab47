package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/couchcryptid/crop-damage-etl/internal/observability"
)

// SampleTransformer implements Transformer: it parses a raw field sample,
// estimates its damage and optionally resolves its coordinate to a place.
type SampleTransformer struct {
	engine   *domain.Engine
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a SampleTransformer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewTransformer(engine *domain.Engine, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *SampleTransformer {
	return &SampleTransformer{
		engine:   engine,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *SampleTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	sample, err := domain.ParseRawSample(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	sample = domain.AssessSample(t.engine, sample)
	t.record(sample)
	sample = domain.EnrichWithGeocoding(ctx, sample, t.geocoder, t.logger)

	return domain.SerializeFieldSample(sample)
}

func (t *SampleTransformer) record(sample domain.FieldSample) {
	if t.metrics == nil {
		return
	}
	group := string(sample.Stage.Group)
	if group == "" {
		group = "none"
	}
	t.metrics.DamageEstimates.WithLabelValues(string(sample.Crop), group, sample.Outcome()).Inc()
	if v, ok := sample.Damage.Value(); ok {
		t.metrics.DamagePercent.WithLabelValues(string(sample.Crop)).Observe(v)
	}
}
