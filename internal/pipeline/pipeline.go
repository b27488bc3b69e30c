package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
	"github.com/couchcryptid/district-analytics-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw records from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRecord, error)
}

// MetricWriter persists validated records. It is the metrics store's write side.
type MetricWriter interface {
	Put(ctx context.Context, m domain.MonthlyMetric) error
}

// DeadLetterSink receives records that can never be stored.
type DeadLetterSink interface {
	PublishRejected(ctx context.Context, records []domain.RejectedRecord) error
}

// Invalidator drops derived views after new data lands.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Pipeline orchestrates the extract-validate-store loop. It is the only writer
// to the metrics store.
type Pipeline struct {
	extractor   BatchExtractor
	writer      MetricWriter
	deadLetter  DeadLetterSink
	invalidator Invalidator
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline. deadLetter and invalidator may be nil.
func New(e BatchExtractor, w MetricWriter, deadLetter DeadLetterSink, invalidator Invalidator, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		writer:      w,
		deadLetter:  deadLetter,
		invalidator: invalidator,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
}

// WithClock sets the time source used to stamp records that arrive without
// any timestamp. It must be called before Run.
func (p *Pipeline) WithClock(c clockwork.Clock) *Pipeline {
	p.clock = c
	return p
}

// CheckReadiness returns nil while the pipeline is running and its last
// extract succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("ingestion pipeline is not consuming")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// processBatch runs one extract-validate-store cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.ready.Store(false)
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}
	p.ready.Store(true)
	*backoff = initialBackoff

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))

	stored, rejected, ok := p.storeBatch(ctx, rawBatch)
	if !ok {
		return false
	}
	if len(rejected) > 0 && !p.publishRejected(ctx, rejected) {
		return false
	}

	// Everything in the batch is either stored or dead-lettered by now.
	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}

	if stored > 0 {
		p.metrics.MetricsStored.Add(float64(stored))
		if p.invalidator != nil {
			p.invalidator.Invalidate(ctx)
		}
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug("batch processed", "records", len(rawBatch), "stored", stored, "rejected", len(rejected))
	return true
}

// storeBatch parses and stores each record in order. Records that fail
// parsing or are refused by the store as invalid are returned for the dead
// letter topic. Transient store failures are retried until they succeed or
// ctx ends; ok is false in the latter case.
func (p *Pipeline) storeBatch(ctx context.Context, rawBatch []domain.RawRecord) (stored int, rejected []domain.RejectedRecord, ok bool) {
	for _, raw := range rawBatch {
		m, err := domain.ParseRawRecord(raw, p.clock)
		if err == nil {
			err = p.putWithRetry(ctx, m)
		}
		switch {
		case err == nil:
			stored++
		case isRejection(err):
			p.logger.Warn("record rejected",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.RecordsRejected.Inc()
			rejected = append(rejected, domain.RejectRawRecord(raw, err))
		default:
			return stored, rejected, false
		}
	}
	return stored, rejected, true
}

// putWithRetry returns nil, a rejection error, or ctx's error.
func (p *Pipeline) putWithRetry(ctx context.Context, m domain.MonthlyMetric) error {
	backoff := initialBackoff
	for {
		err := p.writer.Put(ctx, m)
		if err == nil || isRejection(err) {
			return err
		}
		p.logger.Error("store write failed", "error", err, "district_code", m.DistrictCode, "month", m.Month.String())
		if !p.backoffOrStop(ctx, &backoff) {
			return ctx.Err()
		}
	}
}

func (p *Pipeline) publishRejected(ctx context.Context, rejected []domain.RejectedRecord) bool {
	if p.deadLetter == nil {
		return true
	}
	backoff := initialBackoff
	for {
		err := p.deadLetter.PublishRejected(ctx, rejected)
		if err == nil {
			return true
		}
		p.logger.Error("dead letter publish failed", "error", err, "count", len(rejected))
		if !p.backoffOrStop(ctx, &backoff) {
			return false
		}
	}
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidMetric) || errors.Is(err, domain.ErrUnknownDistrict)
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawRecord) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
