package match

import (
	"math"
	"sort"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// Matcher correlates two entity collections of an event. For each entity
// of collection A it ranks the collection-B candidates sharing its
// partition key by the distance Metric and keeps the closest ones inside
// the acceptance Window.
//
// A Matcher describes one correlation and is immutable in use; the same
// value may be applied to any number of events, all written state lives
// in the event. A matcher is meant to run once per event, typically as a
// pipeline preprocessor via Processor.
type Matcher struct {
	// A and B are the type tags of the collections to correlate.
	A string
	B string

	// ForwardRef names the reference attribute written onto each matched
	// A-entity, pointing at its accepted candidates in distance order.
	ForwardRef string

	// ReverseRef, when non-empty, names the reference attribute
	// accumulated onto each accepted B-entity, pointing back at the
	// A-entities it matched.
	ReverseRef string

	// Metric measures the distance of a candidate pair. Pairs the metric
	// cannot measure never match.
	Metric Metric

	// Key partitions both collections; an A-entity only sees candidates
	// sharing its key. A nil Key puts every entity in one partition.
	Key KeyFunc

	// Filter gates candidates before ranking. A nil Filter accepts all.
	Filter CandidateFilter

	// Window is the acceptance window. Candidates at distance >= Window
	// never match. Must be positive.
	Window float64

	// Limit bounds how many candidates each A-entity keeps: 0 keeps
	// every candidate inside the window, n > 0 keeps the n closest.
	Limit int
}

// Result summarizes one Match call.
type Result struct {
	// Matched counts A-entities that gained at least one reference.
	Matched int

	// Unmatched counts A-entities with no accepted candidate.
	Unmatched int

	// Pairs counts forward references written in total. With Limit 1 it
	// equals Matched.
	Pairs int
}

// Match correlates ev's collections in place and reports how many
// A-entities matched.
//
// Every matched A-entity has its ForwardRef replaced with the accepted
// candidates, closest first; ties keep the candidate with the lower
// collection index first. An unmatched A-entity gets no reference at
// all, so absence stays distinguishable from an empty list. When
// ReverseRef is set, each accepted candidate accumulates a back
// reference per A-entity that matched it.
func (m Matcher) Match(ev *dtflow.Event) Result {
	m.check()

	groups := m.groupCandidates(ev.Collection(m.B))

	var res Result
	for _, a := range ev.Collection(m.A) {
		key, ok := m.keyOf(a)
		if !ok {
			res.Unmatched++
			continue
		}
		accepted := m.rank(a, groups[key])
		if len(accepted) == 0 {
			res.Unmatched++
			continue
		}
		refs := make([]dtflow.Ref, len(accepted))
		for i, b := range accepted {
			refs[i] = dtflow.Ref{Type: m.B, Index: b.Index()}
			if m.ReverseRef != "" {
				b.AddRef(m.ReverseRef, dtflow.Ref{Type: m.A, Index: a.Index()})
			}
		}
		a.SetRefs(m.ForwardRef, refs)
		res.Matched++
		res.Pairs += len(refs)
	}
	return res
}

// Processor adapts the matcher to a pipeline preprocessor stage.
func (m Matcher) Processor() dtflow.ProcessorFunc {
	m.check()
	return func(ev *dtflow.Event) error {
		m.Match(ev)
		return nil
	}
}

func (m Matcher) check() {
	if m.A == "" || m.B == "" {
		panic("match: collection type tags cannot be empty")
	}
	if m.ForwardRef == "" {
		panic("match: forward reference name cannot be empty")
	}
	if m.Metric == nil {
		panic("match: metric cannot be nil")
	}
	if m.Window <= 0 {
		panic("match: acceptance window must be positive")
	}
	if m.Limit < 0 {
		panic("match: limit cannot be negative")
	}
}

func (m Matcher) keyOf(e *dtflow.Entity) (string, bool) {
	if m.Key == nil {
		return "", true
	}
	return m.Key(e)
}

// groupCandidates buckets eligible candidates by partition key,
// preserving collection order inside each bucket.
func (m Matcher) groupCandidates(bs []*dtflow.Entity) map[string][]*dtflow.Entity {
	groups := make(map[string][]*dtflow.Entity)
	for _, b := range bs {
		if m.Filter != nil && !m.Filter(b) {
			continue
		}
		key, ok := m.keyOf(b)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], b)
	}
	return groups
}

// rank returns a's accepted candidates, closest first.
func (m Matcher) rank(a *dtflow.Entity, cands []*dtflow.Entity) []*dtflow.Entity {
	type scored struct {
		b *dtflow.Entity
		d float64
	}
	var in []scored
	for _, b := range cands {
		d, ok := m.Metric(a, b)
		// NaN never matches.
		if !ok || math.IsNaN(d) || d >= m.Window {
			continue
		}
		in = append(in, scored{b, d})
	}
	if len(in) == 0 {
		return nil
	}

	// Candidates arrive in collection order; the stable sort keeps the
	// lowest index first among equal distances.
	sort.SliceStable(in, func(i, j int) bool { return in[i].d < in[j].d })

	n := len(in)
	if m.Limit > 0 && m.Limit < n {
		n = m.Limit
	}
	out := make([]*dtflow.Entity, n)
	for i := range out {
		out[i] = in[i].b
	}
	return out
}
