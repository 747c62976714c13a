package match

import "github.com/dtflow/dtflow/pkg/dtflow"

// CandidateFilter gates candidates before distance ranking. Entities it
// rejects are invisible to every A-entity in the same Match call.
type CandidateFilter func(e *dtflow.Entity) bool

// MinInt accepts entities whose integer attribute is at least floor.
// An absent or non-integer attribute rejects.
func MinInt(attr string, floor int64) CandidateFilter {
	return func(e *dtflow.Entity) bool {
		v, ok := e.Int(attr)
		return ok && v >= floor
	}
}

// EqInt accepts entities whose integer attribute equals want. An absent
// or non-integer attribute rejects.
func EqInt(attr string, want int64) CandidateFilter {
	return func(e *dtflow.Entity) bool {
		v, ok := e.Int(attr)
		return ok && v == want
	}
}

// And accepts when every filter accepts. With no filters it accepts
// everything.
func And(filters ...CandidateFilter) CandidateFilter {
	return func(e *dtflow.Entity) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// Or accepts when at least one filter accepts. With no filters it
// rejects everything.
func Or(filters ...CandidateFilter) CandidateFilter {
	return func(e *dtflow.Entity) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}
