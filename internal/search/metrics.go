package search

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const searchInstrumentationName = "github.com/fyrsmithlabs/pagequery/internal/search"

// Metrics holds all search pipeline metrics.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	duration    metric.Float64Histogram
	searches    metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for the search pipeline.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(searchInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	// End-to-end search duration covering fetch through rank
	m.duration, err = m.meter.Float64Histogram(
		"pagequery.search.duration_seconds",
		metric.WithDescription("End-to-end search duration in seconds, labeled by outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.searches, err = m.meter.Int64Counter(
		"pagequery.search.requests_total",
		metric.WithDescription("Total search requests by outcome (ok, or the failing stage)"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create searches counter", zap.Error(err))
	}

	m.cacheHits, err = m.meter.Int64Counter(
		"pagequery.search.cache_hits_total",
		metric.WithDescription("Search requests answered from the result cache"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create cache hits counter", zap.Error(err))
	}

	m.cacheMisses, err = m.meter.Int64Counter(
		"pagequery.search.cache_misses_total",
		metric.WithDescription("Search requests that ran the full pipeline"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create cache misses counter", zap.Error(err))
	}
}

// RecordSearch records a completed search attempt.
func (m *Metrics) RecordSearch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.searches != nil {
		m.searches.Add(ctx, 1, attrs)
	}
}

// RecordCache records a cache lookup outcome.
func (m *Metrics) RecordCache(ctx context.Context, hit bool) {
	if hit {
		if m.cacheHits != nil {
			m.cacheHits.Add(ctx, 1)
		}
		return
	}
	if m.cacheMisses != nil {
		m.cacheMisses.Add(ctx, 1)
	}
}
