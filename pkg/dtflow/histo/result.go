package histo

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Summary is one histogram's filled storage. Distributions carry Dist;
// efficiencies carry the Num/Den pair. A non-empty Disabled reason
// means the histogram was shut off by a definition defect discovered
// while filling; whatever had been filled before the defect is kept.
type Summary struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Dist     *H1    `json:"dist,omitempty"`
	Num      *H1    `json:"num,omitempty"`
	Den      *H1    `json:"den,omitempty"`
	Disabled string `json:"disabled,omitempty"`
}

// MarshalJSON implements json.Marshaler, writing the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "distribution":
		*k = KindDistribution
	case "efficiency":
		*k = KindEfficiency
	default:
		return fmt.Errorf("unknown histogram kind %q", s)
	}
	return nil
}

// Entries returns the summary's total fill entries: the distribution's
// own, or the denominator's for an efficiency.
func (s *Summary) Entries() int64 {
	switch s.Kind {
	case KindDistribution:
		return s.Dist.Entries()
	case KindEfficiency:
		return s.Den.Entries()
	}
	return 0
}

// merge folds other into s bin-wise. Disabled reasons survive the
// merge: a histogram disabled in any partition stays disabled.
func (s *Summary) merge(other *Summary) error {
	if other.Kind != s.Kind {
		return fmt.Errorf("%w: kind %v vs %v", ErrShapeMismatch, s.Kind, other.Kind)
	}
	switch s.Kind {
	case KindDistribution:
		if err := s.Dist.Add(other.Dist); err != nil {
			return err
		}
	case KindEfficiency:
		if err := s.Num.Add(other.Num); err != nil {
			return err
		}
		if err := s.Den.Add(other.Den); err != nil {
			return err
		}
	}
	if s.Disabled == "" {
		s.Disabled = other.Disabled
	}
	return nil
}

// Result maps histogram names to their filled summaries. Partial
// results from independent workers merge bin-wise, so any merge order
// over any partitioning of a record range produces identical counts.
type Result struct {
	hists map[string]*Summary
}

// newResult allocates empty storage for every definition. Definitions
// are assumed validated.
func newResult(defs []Def) *Result {
	r := &Result{hists: make(map[string]*Summary, len(defs))}
	for _, d := range defs {
		s := &Summary{Name: d.name, Kind: d.kind}
		switch d.kind {
		case KindDistribution:
			s.Dist = NewH1(d.name, d.axis)
		case KindEfficiency:
			s.Num = NewH1(d.name+"_num", d.axis)
			s.Den = NewH1(d.name+"_den", d.axis)
		}
		r.hists[d.name] = s
	}
	return r
}

// Names returns the histogram names, sorted.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.hists))
	for name := range r.hists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Histogram returns the named summary. The second result is false when
// the name is unknown.
func (r *Result) Histogram(name string) (*Summary, bool) {
	s, ok := r.hists[name]
	return s, ok
}

// Disabled returns the disabled histograms' reasons by name. An empty
// map means every histogram filled cleanly.
func (r *Result) Disabled() map[string]string {
	out := make(map[string]string)
	for name, s := range r.hists {
		if s.Disabled != "" {
			out[name] = s.Disabled
		}
	}
	return out
}

// Merge folds other into r bin-wise. Every histogram of other must
// exist in r with identical kind and binning; results produced from the
// same definitions always satisfy this.
func (r *Result) Merge(other *Result) error {
	for _, name := range other.Names() {
		mine, ok := r.hists[name]
		if !ok {
			return &ConfigError{Histogram: name, Err: ErrUnknownHistogram}
		}
		if err := mine.merge(other.hists[name]); err != nil {
			return &ConfigError{Histogram: name, Err: err}
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Summaries are written as a
// name-sorted array, so snapshots are byte-stable for identical counts.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := make([]*Summary, 0, len(r.hists))
	for _, name := range r.Names() {
		out = append(out, r.hists[name])
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in []*Summary
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.hists = make(map[string]*Summary, len(in))
	for _, s := range in {
		if s.Name == "" {
			return &ConfigError{Err: ErrNameUnset}
		}
		if _, dup := r.hists[s.Name]; dup {
			return &ConfigError{Histogram: s.Name, Err: ErrDuplicateName}
		}
		r.hists[s.Name] = s
	}
	return nil
}
