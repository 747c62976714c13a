package dtflow

import (
	"sort"

	"github.com/dtflow/dtflow/pkg/dtflow/expr"
)

// Ref identifies an entity within its owning event by collection type and
// position. Cross-references between entities are stored as Refs, never
// as pointers, so reference graphs stay acyclic data.
type Ref struct {
	Type  string
	Index int
}

// Entity is one materialized object: a named bag of resolved attributes
// plus its position among siblings of the same type. Entities are created
// fresh for every event build and are never shared across events.
type Entity struct {
	typ   string
	index int
	attrs map[string]any
	refs  map[string][]Ref
}

func newEntity(typ string, index int, attrCap int) *Entity {
	return &Entity{
		typ:   typ,
		index: index,
		attrs: make(map[string]any, attrCap),
	}
}

// NewEntity returns an empty entity of the given type. Its index is
// assigned when a collection containing it is installed into an event.
func NewEntity(typ string) *Entity {
	return newEntity(typ, 0, 4)
}

// Type returns the entity's type tag.
func (e *Entity) Type() string { return e.typ }

// Index returns the entity's position in its collection. During the
// build it is the construction index; once the owning event is
// finalized it is the position after filtering and sorting.
func (e *Entity) Index() int { return e.index }

// Attr returns the named attribute value. The second result is false
// when the attribute was never set; a tolerated resolution failure sets
// the attribute to nil, which reports as present.
func (e *Entity) Attr(name string) (any, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// SetAttr sets an attribute value. Preprocessors use it to add derived
// attributes during the pipeline stage.
func (e *Entity) SetAttr(name string, v any) {
	e.attrs[name] = v
}

// Float returns the named attribute widened to float64. The second
// result is false when the attribute is absent, nil or non-numeric.
func (e *Entity) Float(name string) (float64, bool) {
	v, ok := e.attrs[name]
	if !ok || v == nil {
		return 0, false
	}
	return expr.ToFloat64(v)
}

// Int returns the named attribute widened to int64. The second result is
// false when the attribute is absent, nil or not an integer.
func (e *Entity) Int(name string) (int64, bool) {
	v, ok := e.attrs[name]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Bool returns the named attribute as a bool. The second result is false
// when the attribute is absent, nil or not a bool.
func (e *Entity) Bool(name string) (bool, bool) {
	v, ok := e.attrs[name]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// AttrNames returns the entity's attribute names, sorted.
func (e *Entity) AttrNames() []string {
	names := make([]string, 0, len(e.attrs))
	for name := range e.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refs returns the cross-references stored under name, in the order they
// were added. The result is nil when no reference was written.
func (e *Entity) Refs(name string) []Ref {
	return e.refs[name]
}

// AddRef appends one cross-reference under name.
func (e *Entity) AddRef(name string, r Ref) {
	if e.refs == nil {
		e.refs = make(map[string][]Ref)
	}
	e.refs[name] = append(e.refs[name], r)
}

// SetRefs replaces the cross-references stored under name.
func (e *Entity) SetRefs(name string, refs []Ref) {
	if e.refs == nil {
		e.refs = make(map[string][]Ref)
	}
	e.refs[name] = refs
}

// RefNames returns the entity's cross-reference attribute names, sorted.
func (e *Entity) RefNames() []string {
	names := make([]string, 0, len(e.refs))
	for name := range e.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
