package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records dtflow fill metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventBuild records one event materialization with its
	// duration and whether the pipeline accepted it.
	RecordEventBuild(ctx context.Context, duration time.Duration, accepted bool)

	// RecordEntities records entities built and aborted for one type.
	RecordEntities(ctx context.Context, entityType string, built, aborted int)

	// RecordPartition records one partition's completion.
	RecordPartition(ctx context.Context, success bool, duration time.Duration)

	// RecordHistogramEntries records entries folded into one histogram.
	RecordHistogramEntries(ctx context.Context, histogram string, entries int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventBuilds      metric.Int64Counter
	eventLatency     metric.Float64Histogram
	eventRejections  metric.Int64Counter
	entitiesBuilt    metric.Int64Counter
	entitiesAborted  metric.Int64Counter
	partitionRuns    metric.Int64Counter
	partitionLatency metric.Float64Histogram
	histogramEntries metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("dtflow")

	eventBuilds, err := meter.Int64Counter("dtflow.event.builds",
		metric.WithDescription("Number of event materializations"),
	)
	if err != nil {
		return nil, err
	}

	eventLatency, err := meter.Float64Histogram("dtflow.event.latency_ms",
		metric.WithDescription("Event build latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventRejections, err := meter.Int64Counter("dtflow.event.rejections",
		metric.WithDescription("Number of events rejected by selectors"),
	)
	if err != nil {
		return nil, err
	}

	entitiesBuilt, err := meter.Int64Counter("dtflow.entity.built",
		metric.WithDescription("Number of entities materialized"),
	)
	if err != nil {
		return nil, err
	}

	entitiesAborted, err := meter.Int64Counter("dtflow.entity.aborted",
		metric.WithDescription("Number of entities aborted by resolution failures"),
	)
	if err != nil {
		return nil, err
	}

	partitionRuns, err := meter.Int64Counter("dtflow.partition.runs",
		metric.WithDescription("Number of partition fills"),
	)
	if err != nil {
		return nil, err
	}

	partitionLatency, err := meter.Float64Histogram("dtflow.partition.latency_ms",
		metric.WithDescription("Partition fill latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	histogramEntries, err := meter.Int64Counter("dtflow.histogram.entries",
		metric.WithDescription("Number of entries folded into histograms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventBuilds:      eventBuilds,
		eventLatency:     eventLatency,
		eventRejections:  eventRejections,
		entitiesBuilt:    entitiesBuilt,
		entitiesAborted:  entitiesAborted,
		partitionRuns:    partitionRuns,
		partitionLatency: partitionLatency,
		histogramEntries: histogramEntries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEventBuild records one event materialization.
func (m *otelMetrics) RecordEventBuild(ctx context.Context, duration time.Duration, accepted bool) {
	m.eventBuilds.Add(ctx, 1)
	m.eventLatency.Record(ctx, float64(duration.Microseconds())/1000)
	if !accepted {
		m.eventRejections.Add(ctx, 1)
	}
}

// RecordEntities records entities built and aborted for one type.
func (m *otelMetrics) RecordEntities(ctx context.Context, entityType string, built, aborted int) {
	attrs := metric.WithAttributes(attribute.String("entity_type", entityType))
	if built > 0 {
		m.entitiesBuilt.Add(ctx, int64(built), attrs)
	}
	if aborted > 0 {
		m.entitiesAborted.Add(ctx, int64(aborted), attrs)
	}
}

// RecordPartition records one partition's completion.
func (m *otelMetrics) RecordPartition(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.partitionRuns.Add(ctx, 1, attrs)
	m.partitionLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordHistogramEntries records entries folded into one histogram.
func (m *otelMetrics) RecordHistogramEntries(ctx context.Context, histogram string, entries int64) {
	m.histogramEntries.Add(ctx, entries,
		metric.WithAttributes(attribute.String("histogram", histogram)))
}
