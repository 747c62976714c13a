package histo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/histo/store"
	"github.com/dtflow/dtflow/pkg/dtflow/observability"
)

// SequenceFactory opens a fresh event sequence over the full record
// range. The runner calls it once per worker, so every partition drives
// its own source and builder; no mutable state crosses workers. The
// returned closer, when non-nil, releases the sequence's source once
// the partition is done.
type SequenceFactory func() (*dtflow.Sequence, io.Closer, error)

// Runner fills histograms over a record range, optionally partitioned
// across parallel workers. Each worker owns a disjoint contiguous slice
// of the range and its own histogram storage; completed partitions
// merge bin-wise, so the result is identical for any worker count or
// scheduling order. A failed partition contributes nothing and is
// reported instead.
type Runner struct {
	factory  SequenceFactory
	defs     []Def
	workers  int
	sample   string
	runID    string
	log      *slog.Logger
	metrics  observability.MetricsRecorder
	store    store.Store
	progress func(events int)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets how many partitions fill in parallel. Values below 1
// run sequentially in one partition, the default.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) { r.workers = n }
}

// WithLogger attaches a structured logger for run diagnostics. Without
// one the runner is silent.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = logger }
}

// WithMetrics attaches a metrics recorder for partition and histogram
// instruments.
func WithMetrics(m observability.MetricsRecorder) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithRunID fixes the run identifier. Without one each Run generates a
// fresh UUID.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.runID = id }
}

// WithSample names the sample being filled, for spans and logs.
func WithSample(name string) RunnerOption {
	return func(r *Runner) { r.sample = name }
}

// WithStore persists each completed partition's result as a snapshot. A
// save failure is logged and does not fail the partition.
func WithStore(s store.Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithProgress registers a callback invoked after each partition
// completes or fails, with the number of records it drew. Callbacks may
// arrive from worker goroutines and must be safe for concurrent use.
func WithProgress(fn func(events int)) RunnerOption {
	return func(r *Runner) { r.progress = fn }
}

// NewRunner validates the definitions and returns a runner over them.
//
// Panics if factory is nil.
func NewRunner(factory SequenceFactory, defs []Def, opts ...RunnerOption) (*Runner, error) {
	if factory == nil {
		panic("histo: sequence factory cannot be nil")
	}
	r := &Runner{
		factory: factory,
		defs:    defs,
		workers: 1,
		sample:  "events",
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	if err := validateDefs(defs); err != nil {
		return nil, err
	}
	return r, nil
}

// span is one worker's half-open record range.
type span struct {
	lo, hi int
}

// splitRange cuts n records into at most k contiguous near-equal spans.
// Earlier spans absorb the remainder, one record each.
func splitRange(n, k int) []span {
	if n <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	spans := make([]span, 0, k)
	chunk, extra := n/k, n%k
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + chunk
		if i < extra {
			hi++
		}
		spans = append(spans, span{lo, hi})
		lo = hi
	}
	return spans
}

// partitionOutcome carries one worker's results back to the merge.
type partitionOutcome struct {
	status PartitionStatus
	res    *Result
	stats  dtflow.BuildStats
	errs   map[string]int64
}

// Run fills every histogram over the full record range and merges the
// partition results in partition order. The error is non-nil only when
// the run could not start or completed partitions could not merge;
// partition failures and cancellation are reported per partition in the
// Report instead, and the result then covers the completed partitions
// only.
func (r *Runner) Run(ctx context.Context) (*Result, *Report, error) {
	start := time.Now()
	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	probe, closer, err := r.factory()
	if err != nil {
		return nil, nil, fmt.Errorf("open sequence: %w", err)
	}
	total := probe.Len()
	if closer != nil {
		closer.Close()
	}

	spans := splitRange(total, r.workers)
	ctx, fillSpan := observability.StartFillSpan(ctx, r.sample, runID)
	observability.LogFillStart(r.log, runID, total, len(spans))

	outcomes := make([]partitionOutcome, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range spans {
		i, sp := i, sp
		g.Go(func() error {
			outcomes[i] = r.runPartition(gctx, runID, i, sp)
			return nil
		})
	}
	// Workers report through their outcome, never an error.
	_ = g.Wait()

	res := newResult(r.defs)
	rep := newReport(runID, total)
	var firstErr error
	for _, out := range outcomes {
		rep.Partitions = append(rep.Partitions, out.status)
		if out.status.Err != nil {
			if firstErr == nil {
				firstErr = out.status.Err
			}
			continue
		}
		rep.Accepted += out.status.Accepted
		rep.Rejected += out.status.Rejected
		rep.MetaFailures += out.stats.MetaFailures
		for typ, n := range out.stats.EntityFailures {
			rep.EntityFailures[typ] += n
		}
		for name, n := range out.errs {
			rep.ExtractErrors[name] += n
		}
		if err := res.Merge(out.res); err != nil {
			observability.EndSpanWithError(fillSpan, err)
			return nil, nil, fmt.Errorf("merge partition %d: %w", out.status.Partition, err)
		}
	}
	rep.Disabled = res.Disabled()
	rep.Elapsed = time.Since(start)

	observability.LogFillComplete(r.log, runID, float64(rep.Elapsed.Milliseconds()), rep.Accepted, rep.Rejected)
	observability.EndSpanWithError(fillSpan, firstErr)
	return res, rep, nil
}

// runPartition drives one worker: its own sequence, cursor and storage
// over one span. Any failure to complete the span discards the
// partition's storage, so the merge never sees partial counts.
func (r *Runner) runPartition(ctx context.Context, runID string, idx int, sp span) partitionOutcome {
	st := PartitionStatus{Partition: idx, Lo: sp.lo, Hi: sp.hi}
	plog := observability.EnrichLogger(r.log, runID, idx)
	pctx, pspan := observability.StartPartitionSpan(ctx, idx, sp.lo, sp.hi)
	start := time.Now()
	observability.LogPartitionStart(plog, idx, sp.lo, sp.hi)

	fail := func(err error) partitionOutcome {
		st.Err = &PartitionError{Partition: idx, Lo: sp.lo, Hi: sp.hi, Err: err}
		observability.LogPartitionError(plog, idx, err)
		observability.EndSpanWithError(pspan, err)
		r.metrics.RecordPartition(pctx, false, time.Since(start))
		if r.progress != nil {
			r.progress(st.Events)
		}
		return partitionOutcome{status: st}
	}

	seq, closer, err := r.factory()
	if err != nil {
		return fail(fmt.Errorf("open sequence: %w", err))
	}
	if closer != nil {
		defer closer.Close()
	}

	sub, err := seq.Slice(sp.lo, sp.hi)
	if err != nil {
		return fail(err)
	}
	agg, err := NewAggregator(r.defs...)
	if err != nil {
		return fail(err)
	}

	cur := sub.Cursor()
	for {
		select {
		case <-pctx.Done():
			return fail(pctx.Err())
		default:
		}
		ev, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(err)
		}
		st.Events++
		if ev == nil {
			st.Rejected++
			continue
		}
		st.Accepted++
		agg.Fill(ev)
	}

	out := partitionOutcome{
		status: st,
		res:    agg.Result(),
		stats:  seq.Builder().Stats(),
		errs:   agg.ExtractErrors(),
	}
	for _, name := range out.res.Names() {
		if s, ok := out.res.Histogram(name); ok {
			r.metrics.RecordHistogramEntries(pctx, name, s.Entries())
		}
	}

	observability.LogPartitionComplete(plog, idx, float64(time.Since(start).Milliseconds()), st.Accepted)
	observability.EndSpanWithError(pspan, nil)
	r.metrics.RecordPartition(pctx, true, time.Since(start))

	if r.store != nil {
		r.saveSnapshot(plog, runID, st, out.res)
	}
	if r.progress != nil {
		r.progress(st.Events)
	}
	return out
}

// saveSnapshot persists one completed partition. Persistence is best
// effort: a failure is logged and the partition still merges.
func (r *Runner) saveSnapshot(log *slog.Logger, runID string, st PartitionStatus, res *Result) {
	data, err := json.Marshal(res)
	if err == nil {
		snap := store.New(runID, st.Partition, st.Lo, st.Hi, data)
		var payload []byte
		if payload, err = snap.Marshal(); err == nil {
			err = r.store.Save(runID, st.Partition, payload)
		}
	}
	if err != nil && log != nil {
		log.Warn("snapshot save failed",
			slog.Int("partition", st.Partition),
			slog.String("error", err.Error()))
	}
}

// LoadSnapshots reassembles a run's result from its stored partition
// snapshots, merging them in sequence order. It returns the merged
// result and the partition spans it covers. Snapshots must come from
// runs over these definitions; a binning or kind drift fails the merge.
func LoadSnapshots(s store.Store, runID string, defs []Def) (*Result, []PartitionStatus, error) {
	if err := validateDefs(defs); err != nil {
		return nil, nil, err
	}
	infos, err := s.List(runID)
	if err != nil {
		return nil, nil, err
	}
	res := newResult(defs)
	var parts []PartitionStatus
	for _, info := range infos {
		payload, err := s.Load(runID, info.Partition)
		if err != nil {
			return nil, nil, err
		}
		snap, err := store.Unmarshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("partition %d: %w", info.Partition, err)
		}
		var part Result
		if err := json.Unmarshal(snap.Result, &part); err != nil {
			return nil, nil, fmt.Errorf("partition %d: %w", info.Partition, err)
		}
		if err := res.Merge(&part); err != nil {
			return nil, nil, fmt.Errorf("partition %d: %w", info.Partition, err)
		}
		parts = append(parts, PartitionStatus{Partition: snap.Partition, Lo: snap.Lo, Hi: snap.Hi})
	}
	return res, parts, nil
}
