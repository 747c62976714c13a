package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordEventBuild does nothing.
func (NoopMetrics) RecordEventBuild(_ context.Context, _ time.Duration, _ bool) {}

// RecordEntities does nothing.
func (NoopMetrics) RecordEntities(_ context.Context, _ string, _, _ int) {}

// RecordPartition does nothing.
func (NoopMetrics) RecordPartition(_ context.Context, _ bool, _ time.Duration) {}

// RecordHistogramEntries does nothing.
func (NoopMetrics) RecordHistogramEntries(_ context.Context, _ string, _ int64) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartFillSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartFillSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartPartitionSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartPartitionSpan(ctx context.Context, _, _, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
