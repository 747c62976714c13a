// Package observability provides production-grade observability for
// dtflow fills: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every logging helper accepts a nil logger and does nothing with it, so
// hot paths never need a nil check of their own.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds fill context to a logger.
// Returns a new logger with run_id and partition fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", 3)
//	enriched.Info("filling") // includes run_id, partition
func EnrichLogger(logger *slog.Logger, runID string, partition int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("partition", partition),
	)
}

// LogFillStart logs the start of an aggregation run.
func LogFillStart(logger *slog.Logger, runID string, events, partitions int) {
	if logger == nil {
		return
	}
	logger.Info("fill starting",
		slog.String("run_id", runID),
		slog.Int("events", events),
		slog.Int("partitions", partitions),
	)
}

// LogFillComplete logs successful completion of an aggregation run.
func LogFillComplete(logger *slog.Logger, runID string, durationMs float64, accepted, rejected int64) {
	if logger == nil {
		return
	}
	logger.Info("fill completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int64("accepted", accepted),
		slog.Int64("rejected", rejected),
	)
}

// LogFillError logs aggregation run failure.
func LogFillError(logger *slog.Logger, runID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("fill failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPartitionStart logs the start of one partition's fill.
func LogPartitionStart(logger *slog.Logger, partition, lo, hi int) {
	if logger == nil {
		return
	}
	logger.Debug("partition starting",
		slog.Int("partition", partition),
		slog.Int("lo", lo),
		slog.Int("hi", hi),
	)
}

// LogPartitionComplete logs successful completion of one partition.
func LogPartitionComplete(logger *slog.Logger, partition int, durationMs float64, accepted int64) {
	if logger == nil {
		return
	}
	logger.Debug("partition completed",
		slog.Int("partition", partition),
		slog.Float64("duration_ms", durationMs),
		slog.Int64("accepted", accepted),
	)
}

// LogPartitionError logs a partition failure. Partition failures are
// isolated from the rest of the run, hence Warn rather than Error.
func LogPartitionError(logger *slog.Logger, partition int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("partition failed",
		slog.Int("partition", partition),
		slog.String("error", err.Error()),
	)
}

// LogEntityAborted logs one aborted entity construction. Per-entity and
// potentially frequent, so Debug.
func LogEntityAborted(logger *slog.Logger, entityType string, event int, err error) {
	if logger == nil {
		return
	}
	logger.Debug("entity aborted",
		slog.String("entity_type", entityType),
		slog.Int("event", event),
		slog.String("error", err.Error()),
	)
}

// LogCoercionFailure logs a value that could not coerce to its declared
// type and degraded to nil.
func LogCoercionFailure(logger *slog.Logger, attribute, kind string, event int) {
	if logger == nil {
		return
	}
	logger.Warn("coercion failed, value degraded to nil",
		slog.String("attribute", attribute),
		slog.String("target_type", kind),
		slog.Int("event", event),
	)
}

// LogCountFailure logs a count rule that failed to resolve; the
// collection materializes empty.
func LogCountFailure(logger *slog.Logger, entityType string, event int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("count resolution failed, collection is empty",
		slog.String("entity_type", entityType),
		slog.Int("event", event),
		slog.String("error", err.Error()),
	)
}

// LogMetadataFailure logs a metadata attribute that failed to resolve
// and degraded to nil.
func LogMetadataFailure(logger *slog.Logger, attribute string, event int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("metadata resolution failed, value degraded to nil",
		slog.String("attribute", attribute),
		slog.Int("event", event),
		slog.String("error", err.Error()),
	)
}

// LogEventRejected logs a selector rejection.
func LogEventRejected(logger *slog.Logger, event int, stage string) {
	if logger == nil {
		return
	}
	logger.Debug("event rejected",
		slog.Int("event", event),
		slog.String("stage", stage),
	)
}

// LogStageError logs a pipeline stage failure, fatal for that event only.
func LogStageError(logger *slog.Logger, stage string, event int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("pipeline stage failed",
		slog.String("stage", stage),
		slog.Int("event", event),
		slog.String("error", err.Error()),
	)
}

// LogHistogramDisabled logs a histogram poisoned by a configuration
// error; it stops filling while the others continue.
func LogHistogramDisabled(logger *slog.Logger, histogram string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("histogram disabled",
		slog.String("histogram", histogram),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
