package histo

import (
	"errors"
	"fmt"
)

// Sentinel errors for histogram definitions and aggregation.
var (
	// ErrNameUnset indicates a definition without a name.
	ErrNameUnset = errors.New("histogram name not set")

	// ErrDefUnset indicates a zero-value definition.
	ErrDefUnset = errors.New("histogram definition not set")

	// ErrDuplicateName indicates two definitions share a name.
	ErrDuplicateName = errors.New("duplicate histogram name")

	// ErrExtractorUnset indicates a definition without an extractor.
	ErrExtractorUnset = errors.New("extractor not set")

	// ErrPredicateUnset indicates an efficiency definition without a
	// numerator predicate.
	ErrPredicateUnset = errors.New("numerator predicate not set")

	// ErrShapeMismatch indicates an efficiency extractor and predicate
	// returned differently sized lists for one event.
	ErrShapeMismatch = errors.New("extractor and predicate shapes differ")

	// ErrUnknownHistogram indicates a merge met a histogram name the
	// receiving result does not carry.
	ErrUnknownHistogram = errors.New("unknown histogram")
)

// ConfigError reports a defective histogram definition. Definition
// problems found at construction abort the run before any event is
// read; a shape mismatch found while filling disables only the affected
// histogram.
type ConfigError struct {
	// Histogram is the definition's name, empty when it has none.
	Histogram string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Histogram == "" {
		return fmt.Sprintf("histogram definition: %v", e.Err)
	}
	return fmt.Sprintf("histogram %q: %v", e.Histogram, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PartitionError reports a worker that could not run its record range
// to completion. The partition's histogram data is discarded rather
// than merged, so a failure never contributes partial counts.
type PartitionError struct {
	// Partition is the worker's index.
	Partition int
	// Lo and Hi bound the half-open record range the worker owned.
	Lo, Hi int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %d [%d:%d): %v", e.Partition, e.Lo, e.Hi, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PartitionError) Unwrap() error {
	return e.Err
}
