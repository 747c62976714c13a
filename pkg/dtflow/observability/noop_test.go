package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics_ImplementsInterface(t *testing.T) {
	var _ MetricsRecorder = NoopMetrics{}
}

func TestNoopMetrics_RecordEventBuild(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with accepted event", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEventBuild(context.Background(), 100*time.Microsecond, true)
		})
	})

	t.Run("does not panic with rejected event", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEventBuild(context.Background(), 100*time.Microsecond, false)
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEventBuild(nil, 0, true)
		})
	})
}

func TestNoopMetrics_RecordEntities(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEntities(context.Background(), "segments", 12, 1)
		})
	})

	t.Run("does not panic with zero counts", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEntities(context.Background(), "segments", 0, 0)
		})
	})

	t.Run("does not panic with empty entity type", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEntities(context.Background(), "", 1, 0)
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordEntities(nil, "segments", 1, 0)
		})
	})
}

func TestNoopMetrics_RecordPartition(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with success=true", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPartition(context.Background(), true, 500*time.Millisecond)
		})
	})

	t.Run("does not panic with success=false", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPartition(context.Background(), false, 100*time.Millisecond)
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPartition(nil, true, 0)
		})
	})
}

func TestNoopMetrics_RecordHistogramEntries(t *testing.T) {
	m := NoopMetrics{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordHistogramEntries(context.Background(), "seg_phi_MB1", 1024)
		})
	})

	t.Run("does not panic with zero entries", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordHistogramEntries(context.Background(), "seg_phi_MB1", 0)
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordHistogramEntries(nil, "seg_phi_MB1", 1)
		})
	})
}

func TestNoopSpanManager_ImplementsInterface(t *testing.T) {
	var _ SpanManager = NoopSpanManager{}
}

func TestNoopSpanManager_StartFillSpan(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("returns same context", func(t *testing.T) {
		ctx := context.Background()
		newCtx, span := sm.StartFillSpan(ctx, "sample", "run-1")

		assert.Equal(t, ctx, newCtx, "Context should be unchanged")
		assert.NotNil(t, span, "Span should not be nil")
	})

	t.Run("span is valid noop span", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartFillSpan(ctx, "sample", "run-1")

		// Noop spans are not recording
		assert.False(t, span.IsRecording())
	})

	t.Run("does not panic with empty args", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.StartFillSpan(context.Background(), "", "")
		})
	})
}

func TestNoopSpanManager_StartPartitionSpan(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("returns same context", func(t *testing.T) {
		ctx := context.Background()
		newCtx, span := sm.StartPartitionSpan(ctx, 0, 0, 1000)

		assert.Equal(t, ctx, newCtx, "Context should be unchanged")
		assert.NotNil(t, span, "Span should not be nil")
	})

	t.Run("span is valid noop span", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartPartitionSpan(ctx, 0, 0, 1000)

		assert.False(t, span.IsRecording())
	})

	t.Run("does not panic with empty range", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.StartPartitionSpan(context.Background(), 0, 0, 0)
		})
	})
}

func TestNoopSpanManager_EndSpanWithError(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("does not panic with nil span", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, nil)
		})
	})

	t.Run("does not panic with nil error", func(t *testing.T) {
		_, span := sm.StartFillSpan(context.Background(), "s", "r")
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(span, nil)
		})
	})

	t.Run("does not panic with error", func(t *testing.T) {
		_, span := sm.StartFillSpan(context.Background(), "s", "r")
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(span, errors.New("test error"))
		})
	})
}

func TestNoopSpanManager_AddSpanEvent(t *testing.T) {
	sm := NoopSpanManager{}

	t.Run("does not panic with valid args", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(ctx, "test_event", attribute.String("key", "value"))
		})
	})

	t.Run("does not panic with no attributes", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(ctx, "test_event")
		})
	})

	t.Run("does not panic with nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(nil, "test_event")
		})
	})

	t.Run("does not panic with empty event name", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "")
		})
	})
}

func TestNoopImplementations_NoSideEffects(t *testing.T) {
	// This test verifies that noop implementations can be used
	// in a realistic scenario without any side effects

	metrics := NoopMetrics{}
	spans := NoopSpanManager{}

	ctx := context.Background()

	// Simulate an aggregation run over two partitions
	ctx, fillSpan := spans.StartFillSpan(ctx, "test-sample", "run-123")

	for part := 0; part < 2; part++ {
		ctx, partSpan := spans.StartPartitionSpan(ctx, part, part*100, (part+1)*100)

		start := time.Now()
		// Simulate work
		time.Sleep(1 * time.Millisecond)
		duration := time.Since(start)

		metrics.RecordEventBuild(ctx, duration, part == 0)
		metrics.RecordEntities(ctx, "segments", 8, 1)

		var err error
		if part == 1 {
			err = errors.New("simulated error")
		}

		metrics.RecordPartition(ctx, err == nil, duration)
		spans.EndSpanWithError(partSpan, err)
	}

	spans.AddSpanEvent(ctx, "histograms_merged", attribute.Int64("entries", 512))
	metrics.RecordHistogramEntries(ctx, "seg_phi_MB1", 512)
	spans.EndSpanWithError(fillSpan, nil)

	// If we get here without panicking, the test passes
}
