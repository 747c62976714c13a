package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the dtflow tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("dtflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartFillSpan starts a span for an entire aggregation run.
	// Returns the context with span and the span itself.
	StartFillSpan(ctx context.Context, sample, runID string) (context.Context, trace.Span)

	// StartPartitionSpan starts a span for one partition's fill.
	// The partition span should be a child of the fill span.
	StartPartitionSpan(ctx context.Context, partition, lo, hi int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartFillSpan starts a span for an entire aggregation run.
func (m *otelSpanManager) StartFillSpan(ctx context.Context, sample, runID string) (context.Context, trace.Span) {
	return StartFillSpan(ctx, sample, runID)
}

// StartPartitionSpan starts a span for one partition's fill.
func (m *otelSpanManager) StartPartitionSpan(ctx context.Context, partition, lo, hi int) (context.Context, trace.Span) {
	return StartPartitionSpan(ctx, partition, lo, hi)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartFillSpan starts a span for an entire aggregation run.
// Uses the global OTel tracer.
func StartFillSpan(ctx context.Context, sample, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dtflow.fill",
		trace.WithAttributes(
			attribute.String("sample.name", sample),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartPartitionSpan starts a span for one partition's fill.
// Uses the global OTel tracer.
func StartPartitionSpan(ctx context.Context, partition, lo, hi int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dtflow.partition",
		trace.WithAttributes(
			attribute.Int("partition.index", partition),
			attribute.Int("partition.lo", lo),
			attribute.Int("partition.hi", hi),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
