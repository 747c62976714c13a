package histo

import (
	"errors"
	"fmt"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// Aggregator folds events into the storage of a fixed definition set.
// It owns its storage exclusively, so parallel fills run one Aggregator
// per worker and merge the Results afterwards.
//
// An Aggregator is not safe for concurrent use.
type Aggregator struct {
	defs []Def
	res  *Result
	errs map[string]int64
}

// NewAggregator validates the definitions and allocates their storage.
// Definition problems are collected rather than reported one at a time:
// the error joins every defect found.
func NewAggregator(defs ...Def) (*Aggregator, error) {
	if err := validateDefs(defs); err != nil {
		return nil, err
	}
	return &Aggregator{
		defs: defs,
		res:  newResult(defs),
		errs: make(map[string]int64),
	}, nil
}

// validateDefs checks every definition and reports all problems joined
// into one error.
func validateDefs(defs []Def) error {
	var errs []error
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := d.check(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[d.name] {
			errs = append(errs, &ConfigError{Histogram: d.name, Err: ErrDuplicateName})
			continue
		}
		seen[d.name] = true
	}
	return errors.Join(errs...)
}

// Fill folds one event into every enabled histogram. A nil event, the
// pipeline's rejection marker, contributes nothing. Extraction errors
// skip the affected histogram for this event and are counted; an
// efficiency whose extractor and predicate disagree on shape is
// disabled for the rest of the fill, keeping what it holds.
func (a *Aggregator) Fill(ev *dtflow.Event) {
	if ev == nil {
		return
	}
	for i := range a.defs {
		a.fillOne(&a.defs[i], ev)
	}
}

func (a *Aggregator) fillOne(d *Def, ev *dtflow.Event) {
	s := a.res.hists[d.name]
	if s.Disabled != "" {
		return
	}
	values, err := d.extract(ev)
	if err != nil {
		a.errs[d.name]++
		return
	}
	switch d.kind {
	case KindDistribution:
		for _, v := range values {
			s.Dist.Fill(v)
		}
	case KindEfficiency:
		flags, err := d.pass(ev)
		if err != nil {
			a.errs[d.name]++
			return
		}
		if len(flags) != len(values) {
			s.Disabled = fmt.Sprintf("%v: %d values, %d flags at event %d",
				ErrShapeMismatch, len(values), len(flags), ev.Index())
			return
		}
		for i, v := range values {
			s.Den.Fill(v)
			if flags[i] {
				s.Num.Fill(v)
			}
		}
	}
}

// Result returns the accumulated storage. The result shares state with
// the aggregator: fill further only through the aggregator, and stop
// filling once the result is merged elsewhere.
func (a *Aggregator) Result() *Result {
	return a.res
}

// ExtractErrors returns per-histogram counts of extractor and predicate
// errors met so far.
func (a *Aggregator) ExtractErrors() map[string]int64 {
	out := make(map[string]int64, len(a.errs))
	for name, n := range a.errs {
		out[name] = n
	}
	return out
}
