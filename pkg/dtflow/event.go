package dtflow

import (
	"fmt"
	"sort"
	"strings"
)

// Event is the full set of materialized entity collections plus scalar
// metadata for one record. An event owns its entities exclusively: two
// events are never attribute-linked, and every cross-reference written
// into an event resolves against that event's own collections.
type Event struct {
	index int
	meta  map[string]any
	colls map[string][]*Entity
	order []string
}

func newEvent(index int, metaCap, typeCap int) *Event {
	return &Event{
		index: index,
		meta:  make(map[string]any, metaCap),
		colls: make(map[string][]*Entity, typeCap),
		order: make([]string, 0, typeCap),
	}
}

// NewEvent returns an empty event for the given record index. The
// builder materializes events from records; NewEvent exists for code
// that assembles events by hand, such as readers of dumped events.
func NewEvent(index int) *Event {
	return newEvent(index, 4, 4)
}

// Index returns the global record index the event was built from.
func (ev *Event) Index() int { return ev.index }

// Meta returns the named scalar metadata value. The second result is
// false when no such name exists.
func (ev *Event) Meta(name string) (any, bool) {
	v, ok := ev.meta[name]
	return v, ok
}

// SetMeta sets a metadata value. Preprocessors use it to attach derived
// event-level values.
func (ev *Event) SetMeta(name string, v any) {
	ev.meta[name] = v
}

// MetaNames returns the event's metadata names, sorted.
func (ev *Event) MetaNames() []string {
	names := make([]string, 0, len(ev.meta))
	for name := range ev.meta {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection returns the ordered entities of the given type. The result
// is nil for unknown types and must not be reordered by callers.
func (ev *Event) Collection(typ string) []*Entity {
	return ev.colls[typ]
}

// Types returns the entity type names in schema declaration order.
func (ev *Event) Types() []string {
	out := make([]string, len(ev.order))
	copy(out, ev.order)
	return out
}

// Resolve returns the entity a reference points at. The second result is
// false when the type is unknown or the index is out of range.
func (ev *Event) Resolve(r Ref) (*Entity, bool) {
	coll, ok := ev.colls[r.Type]
	if !ok || r.Index < 0 || r.Index >= len(coll) {
		return nil, false
	}
	return coll[r.Index], true
}

// Filter returns the entities of the given type for which pred is true,
// preserving collection order.
func (ev *Event) Filter(typ string, pred func(*Entity) bool) []*Entity {
	var out []*Entity
	for _, e := range ev.colls[typ] {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// SetCollection installs the ordered entities of the given type and
// renumbers them to their positions. The builder installs collections
// after filtering and sorting; manual assemblers install them directly.
func (ev *Event) SetCollection(typ string, ents []*Entity) {
	if _, exists := ev.colls[typ]; !exists {
		ev.order = append(ev.order, typ)
	}
	for i, e := range ents {
		e.index = i
	}
	ev.colls[typ] = ents
}

// String returns a compact one-line summary for logging.
func (ev *Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "event %d:", ev.index)
	if len(ev.order) == 0 {
		b.WriteString(" no collections")
		return b.String()
	}
	for i, typ := range ev.order {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " %d %s", len(ev.colls[typ]), typ)
	}
	return b.String()
}
