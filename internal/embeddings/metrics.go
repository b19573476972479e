package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/pagequery/internal/embeddings"

// Metrics records embedding generation instruments through the global
// otel meter. A nil instrument (registration failure) is skipped at
// record time rather than failing the provider.
type Metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics registers the embedding instruments. Registration failures
// are logged and the corresponding instrument left nil.
func NewMetrics(logger *zap.Logger) *Metrics {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}

	instrument := func(name string, err error) {
		if err != nil {
			logger.Warn("embedding instrument registration failed",
				zap.String("instrument", name), zap.Error(err))
		}
	}

	var err error
	m.duration, err = meter.Float64Histogram(
		"pagequery.embedding.generation_duration_seconds",
		metric.WithDescription("Embedding generation latency by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	instrument("generation_duration_seconds", err)

	m.batchSize, err = meter.Int64Histogram(
		"pagequery.embedding.batch_size",
		metric.WithDescription("Texts per embedding request"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250),
	)
	instrument("batch_size", err)

	m.errors, err = meter.Int64Counter(
		"pagequery.embedding.errors_total",
		metric.WithDescription("Embedding generation failures by model and operation"),
		metric.WithUnit("{error}"),
	)
	instrument("errors_total", err)

	return m
}

// RecordGeneration records one embedding call: its latency, the batch
// size when positive, and an error count when err is non-nil.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, elapsed time.Duration, batch int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)

	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.batchSize != nil && batch > 0 {
		m.batchSize.Record(ctx, int64(batch), attrs)
	}
	if m.errors != nil && err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
