package histo

import (
	"fmt"
	"strings"
	"time"
)

// PartitionStatus records one worker's outcome.
type PartitionStatus struct {
	// Partition is the worker's index.
	Partition int
	// Lo and Hi bound the half-open record range the worker owned.
	Lo, Hi int
	// Events counts records drawn from the range before completion or
	// failure; Accepted and Rejected split them by pipeline outcome.
	Events   int
	Accepted int64
	Rejected int64
	// Err is the partition's failure, nil when it ran to completion.
	// A failed partition contributed no histogram data.
	Err error
}

// Report summarizes a fill run: how many events each stage kept, what
// degraded along the way, and which partitions failed. It lets a caller
// judge result completeness without reading logs.
type Report struct {
	// RunID identifies the run.
	RunID string

	// Events is the record count of the filled range.
	Events int

	// Accepted and Rejected count pipeline outcomes across completed
	// partitions.
	Accepted int64
	Rejected int64

	// MetaFailures counts metadata attributes degraded to nil.
	MetaFailures int

	// EntityFailures counts aborted entities per type.
	EntityFailures map[string]int

	// ExtractErrors counts extractor and predicate errors per histogram.
	ExtractErrors map[string]int64

	// Disabled maps histograms shut off by a definition defect to the
	// reason.
	Disabled map[string]string

	// Partitions holds per-worker outcomes in partition order.
	Partitions []PartitionStatus

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

func newReport(runID string, events int) *Report {
	return &Report{
		RunID:          runID,
		Events:         events,
		EntityFailures: make(map[string]int),
		ExtractErrors:  make(map[string]int64),
		Disabled:       make(map[string]string),
	}
}

// FailedPartitions returns the partitions that did not run to
// completion, in partition order.
func (r *Report) FailedPartitions() []PartitionStatus {
	var out []PartitionStatus
	for _, p := range r.Partitions {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// Complete reports whether every partition ran to completion, so the
// result covers the whole record range.
func (r *Report) Complete() bool {
	return len(r.FailedPartitions()) == 0
}

// String returns a compact one-line summary for logging.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d events, %d accepted, %d rejected",
		r.RunID, r.Events, r.Accepted, r.Rejected)
	if failed := r.FailedPartitions(); len(failed) > 0 {
		fmt.Fprintf(&b, ", %d/%d partitions failed", len(failed), len(r.Partitions))
	}
	if len(r.Disabled) > 0 {
		fmt.Fprintf(&b, ", %d histograms disabled", len(r.Disabled))
	}
	fmt.Fprintf(&b, " in %s", r.Elapsed.Round(time.Millisecond))
	return b.String()
}
