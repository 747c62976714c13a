package dtflow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dtflow/dtflow/pkg/dtflow/expr"
	"github.com/dtflow/dtflow/pkg/dtflow/observability"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// Builder materializes events from records according to a compiled
// schema. Record-level problems never escape as errors: missing optional
// data degrades to nil, a failed attribute aborts only its entity, and a
// failed count empties only its collection. The counters in Stats track
// what was degraded.
//
// A Builder is not safe for concurrent use. Parallel fills run one
// Builder per worker over disjoint record ranges.
type Builder struct {
	schema *compiledSchema
	log    *slog.Logger
	stats  BuildStats
}

// BuildStats counts builder outcomes since construction.
type BuildStats struct {
	// Events is the number of events materialized.
	Events int
	// MetaFailures counts metadata attributes degraded to nil by
	// resolution errors or required columns that were absent.
	MetaFailures int
	// EntityFailures counts aborted entities per type: failed counts,
	// failed required attributes, resolution and filter errors.
	EntityFailures map[string]int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger attaches a structured logger for build diagnostics.
// Without one the builder is silent.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) { b.log = logger }
}

// NewBuilder compiles the schema and returns a builder for it. Schema
// problems are collected rather than reported one at a time: the error
// joins every defect found.
func NewBuilder(s Schema, opts ...BuilderOption) (*Builder, error) {
	cs, err := compileSchema(s)
	if err != nil {
		return nil, err
	}
	b := &Builder{
		schema: cs,
		stats:  BuildStats{EntityFailures: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Types returns the entity types the builder produces, in declaration
// order.
func (b *Builder) Types() []string {
	out := make([]string, len(b.schema.entities))
	for i, ce := range b.schema.entities {
		out[i] = ce.typ
	}
	return out
}

// Stats returns a copy of the counters accumulated so far.
func (b *Builder) Stats() BuildStats {
	out := b.stats
	out.EntityFailures = make(map[string]int, len(b.stats.EntityFailures))
	for k, v := range b.stats.EntityFailures {
		out.EntityFailures[k] = v
	}
	return out
}

// BuildEvent materializes one event from a record. index becomes the
// event's index and is exposed to count and metadata expressions as the
// builtin "index". BuildEvent always returns an event; degradations are
// logged and counted instead of failing the build.
func (b *Builder) BuildEvent(rec source.Record, index int) *Event {
	ev := newEvent(index, len(b.schema.meta), len(b.schema.entities))
	meta := make(map[string]any, len(b.schema.meta))
	for _, ca := range b.schema.meta {
		v := b.resolveMeta(ca, rec, meta, index)
		meta[ca.name] = v
		ev.SetMeta(ca.name, v)
	}
	for i := range b.schema.entities {
		ce := &b.schema.entities[i]
		ev.SetCollection(ce.typ, b.buildEntities(ce, rec, meta, index))
	}
	b.stats.Events++
	return ev
}

func (b *Builder) resolveMeta(ca compiledAttr, rec source.Record, meta map[string]any, recIndex int) any {
	v, err := resolveAttr(ca, rec, entityEnv{meta: meta, index: recIndex})
	if err != nil {
		var miss *MissingDataError
		if !errors.As(err, &miss) || ca.rule.required {
			b.stats.MetaFailures++
			observability.LogMetadataFailure(b.log, ca.name, recIndex, err)
		}
		return nil
	}
	if ca.rule.coerce == CoerceNone {
		return v
	}
	cv, ok := coerceValue(v, ca.rule.coerce)
	if !ok {
		observability.LogCoercionFailure(b.log, ca.name, ca.rule.coerce.String(), recIndex)
		return nil
	}
	return cv
}

func (b *Builder) buildEntities(ce *compiledEntity, rec source.Record, meta map[string]any, recIndex int) []*Entity {
	n, err := resolveCount(ce.count, rec, meta, recIndex)
	if err != nil {
		b.stats.EntityFailures[ce.typ]++
		observability.LogCountFailure(b.log, ce.typ, recIndex, err)
		return []*Entity{}
	}
	ents := make([]*Entity, 0, n)
	for i := 0; i < n; i++ {
		ent, err := b.buildOne(ce, rec, meta, i, recIndex)
		if err != nil {
			b.stats.EntityFailures[ce.typ]++
			observability.LogEntityAborted(b.log, ce.typ, recIndex, err)
			continue
		}
		ents = append(ents, ent)
	}
	ents = b.applyFilter(ce, ents, meta, recIndex)
	b.applySort(ce, ents, meta)
	return ents
}

// buildOne resolves every attribute of one entity in declaration order.
// The entity carries its build index until the finished collection is
// installed, at which point indexes become final positions.
func (b *Builder) buildOne(ce *compiledEntity, rec source.Record, meta map[string]any, i, recIndex int) (*Entity, error) {
	ent := newEntity(ce.typ, i, len(ce.attrs))
	env := entityEnv{ent: ent, meta: meta, index: i}
	for _, ca := range ce.attrs {
		v, err := resolveAttr(ca, rec, env)
		if err != nil {
			var miss *MissingDataError
			if !errors.As(err, &miss) || ca.rule.required {
				return nil, &ResolutionError{Entity: ce.typ, Index: i, Attribute: ca.name, Err: err}
			}
			v = nil
		}
		if v != nil && ca.rule.coerce != CoerceNone {
			cv, ok := coerceValue(v, ca.rule.coerce)
			if !ok {
				observability.LogCoercionFailure(b.log, ca.name, ca.rule.coerce.String(), recIndex)
				cv = nil
			}
			v = cv
		}
		ent.attrs[ca.name] = v
	}
	return ent, nil
}

func (b *Builder) applyFilter(ce *compiledEntity, ents []*Entity, meta map[string]any, recIndex int) []*Entity {
	if ce.filter == nil {
		return ents
	}
	kept := ents[:0]
	for _, ent := range ents {
		ok, err := ce.filter.Bool(entityEnv{ent: ent, meta: meta, index: ent.index})
		if err != nil {
			b.stats.EntityFailures[ce.typ]++
			observability.LogEntityAborted(b.log, ce.typ, recIndex,
				fmt.Errorf("filter %s[%d]: %w", ce.typ, ent.index, err))
			continue
		}
		if ok {
			kept = append(kept, ent)
		}
	}
	return kept
}

// applySort orders entities by their sort key, ascending unless the
// schema says otherwise. Keys are evaluated once per entity; nil keys
// sort first and incomparable pairs compare equal, so the stable sort
// preserves build order among them.
func (b *Builder) applySort(ce *compiledEntity, ents []*Entity, meta map[string]any) {
	if ce.sortBy == nil || len(ents) < 2 {
		return
	}
	keys := make([]any, len(ents))
	for i, ent := range ents {
		k, err := ce.sortBy.Eval(entityEnv{ent: ent, meta: meta, index: ent.index})
		if err != nil {
			k = nil
		}
		keys[i] = k
	}
	idx := make([]int, len(ents))
	for i := range idx {
		idx[i] = i
	}
	less := func(i, j int) bool { return lessKey(keys[idx[i]], keys[idx[j]]) }
	if ce.descending {
		less = func(i, j int) bool { return lessKey(keys[idx[j]], keys[idx[i]]) }
	}
	sort.SliceStable(idx, less)
	sorted := make([]*Entity, len(ents))
	for i, j := range idx {
		sorted[i] = ents[j]
	}
	copy(ents, sorted)
}

// lessKey orders sort keys. nil sorts before everything else.
func lessKey(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	c, err := expr.Compare(a, b)
	if err != nil {
		return false
	}
	return c < 0
}
