package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/couchcryptid/crop-damage-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw field samples from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns one raw field sample into an assessed output event. An
// error marks the message as poison: it is committed and never retried.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader publishes assessed samples to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline assesses field samples in batches: extract, estimate damage, publish,
// then commit. Offsets of a batch are committed only after it is published.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int

	ready   atomic.Bool
	backoff backoff
}

// New creates a Pipeline over the given source, assessor and sink.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		backoff:     backoff{next: initialBackoff, limit: maxBackoff},
	}
}

// CheckReadiness reports ready once a batch of assessed samples has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no field samples assessed yet")
	}
	return nil
}

// Run assesses batches until the context is cancelled. Source and sink
// failures are retried with exponential backoff; Run itself only returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		if !p.step(ctx) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// step runs one extract-assess-publish cycle and reports whether to continue.
func (p *Pipeline) step(ctx context.Context) bool {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.wait(ctx)
	}
	if len(raws) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))
	p.backoff.reset()

	b := p.assess(ctx, raws)
	if len(b.out) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, b.out); err != nil {
		p.logger.Error("publish batch failed", "error", err, "batch_size", len(b.out))
		return p.wait(ctx)
	}
	p.metrics.MessagesProduced.Add(float64(len(b.out)))
	for _, raw := range b.pending {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("batch published", "assessed", len(b.out), "skipped", b.skipped)
	return true
}

// batch holds the assessed events of one cycle and the raw messages whose
// offsets wait on their publication.
type batch struct {
	out     []domain.OutputEvent
	pending []domain.RawEvent
	skipped int
}

// assess transforms every raw sample. Poison samples are committed at once so
// a malformed message cannot stall its partition.
func (p *Pipeline) assess(ctx context.Context, raws []domain.RawEvent) batch {
	b := batch{
		out:     make([]domain.OutputEvent, 0, len(raws)),
		pending: make([]domain.RawEvent, 0, len(raws)),
	}
	for _, raw := range raws {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("skipping unreadable field sample",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			b.skipped++
			continue
		}
		b.out = append(b.out, out)
		b.pending = append(b.pending, raw)
	}
	return b
}

// wait sleeps for the current backoff and reports false if the context ended.
func (p *Pipeline) wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(p.backoff.advance())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoff doubles its delay on every advance up to limit.
type backoff struct {
	next  time.Duration
	limit time.Duration
}

func (b *backoff) advance() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.limit)
	return d
}

func (b *backoff) reset() { b.next = initialBackoff }
