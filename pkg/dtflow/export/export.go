// Package export serializes materialized events into a versioned JSON
// dump and reads them back, either as full events for inspection and
// comparison or as flattened records that re-serve the dump as a source
// for a fresh materialization pass. A dump is JSON Lines: one header
// line followed by one event record per line, so it streams in both
// directions and diffs line by line.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// Version is the current dump format version.
// Increment when making breaking changes to the record structure.
const Version = 1

// Header opens every dump stream.
type Header struct {
	Version int    `json:"version"`
	Sample  string `json:"sample,omitempty"`
}

// Ref is one serialized cross-reference: collection type and position
// within the owning event.
type Ref struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// EventRecord is one serialized event. Collections keep their event
// order; kind tables pin scalar kinds across the JSON round trip, where
// integers and whole floats would otherwise blur together.
type EventRecord struct {
	Index       int                `json:"index"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	MetaKinds   map[string]string  `json:"metadata_kinds,omitempty"`
	Collections []CollectionRecord `json:"collections,omitempty"`
}

// CollectionRecord is one serialized entity collection. Kinds maps
// attribute names to their scalar kind, taken from the first non-nil
// value in the collection.
type CollectionRecord struct {
	Type     string            `json:"type"`
	Kinds    map[string]string `json:"kinds,omitempty"`
	Entities []EntityRecord    `json:"entities"`
}

// EntityRecord is one serialized entity.
type EntityRecord struct {
	Attrs map[string]any   `json:"attrs,omitempty"`
	Refs  map[string][]Ref `json:"refs,omitempty"`
}

// Encode serializes one event. The event is only read; the record
// shares no state with it.
func Encode(ev *dtflow.Event) *EventRecord {
	rec := &EventRecord{Index: ev.Index()}
	for _, name := range ev.MetaNames() {
		v, _ := ev.Meta(name)
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any)
		}
		rec.Metadata[name] = sanitize(v)
		if kind := kindOf(v); kind != "" {
			if rec.MetaKinds == nil {
				rec.MetaKinds = make(map[string]string)
			}
			rec.MetaKinds[name] = kind
		}
	}
	for _, typ := range ev.Types() {
		ents := ev.Collection(typ)
		cr := CollectionRecord{Type: typ, Entities: make([]EntityRecord, len(ents))}
		for i, e := range ents {
			var er EntityRecord
			for _, name := range e.AttrNames() {
				v, _ := e.Attr(name)
				if er.Attrs == nil {
					er.Attrs = make(map[string]any)
				}
				er.Attrs[name] = sanitize(v)
				if _, seen := cr.Kinds[name]; !seen {
					if kind := kindOf(v); kind != "" {
						if cr.Kinds == nil {
							cr.Kinds = make(map[string]string)
						}
						cr.Kinds[name] = kind
					}
				}
			}
			for _, name := range e.RefNames() {
				refs := e.Refs(name)
				out := make([]Ref, len(refs))
				for j, r := range refs {
					out[j] = Ref{Type: r.Type, Index: r.Index}
				}
				if er.Refs == nil {
					er.Refs = make(map[string][]Ref)
				}
				er.Refs[name] = out
			}
			cr.Entities[i] = er
		}
		rec.Collections = append(rec.Collections, cr)
	}
	return rec
}

// Decode rebuilds the event an EventRecord describes. Scalars decode to
// the canonical kinds their kind table names; list values decode as
// []any. References are restored exactly as written, dangling or not;
// Event.Resolve reports the dangling ones.
func Decode(rec *EventRecord) (*dtflow.Event, error) {
	ev := dtflow.NewEvent(rec.Index)
	for name, v := range rec.Metadata {
		cv, err := restore(v, rec.MetaKinds[name])
		if err != nil {
			return nil, fmt.Errorf("event %d: metadata %s: %w", rec.Index, name, err)
		}
		ev.SetMeta(name, cv)
	}
	for _, cr := range rec.Collections {
		ents := make([]*dtflow.Entity, len(cr.Entities))
		for i, er := range cr.Entities {
			e := dtflow.NewEntity(cr.Type)
			for name, v := range er.Attrs {
				cv, err := restore(v, cr.Kinds[name])
				if err != nil {
					return nil, fmt.Errorf("event %d: %s[%d].%s: %w", rec.Index, cr.Type, i, name, err)
				}
				e.SetAttr(name, cv)
			}
			for name, refs := range er.Refs {
				out := make([]dtflow.Ref, len(refs))
				for j, r := range refs {
					out[j] = dtflow.Ref{Type: r.Type, Index: r.Index}
				}
				e.SetRefs(name, out)
			}
			ents[i] = e
		}
		ev.SetCollection(cr.Type, ents)
	}
	return ev, nil
}

// kindOf maps a value to its dump kind. Unknown shapes report "", which
// leaves decoding to the loose numeric rules.
func kindOf(v any) string {
	switch vv := v.(type) {
	case bool:
		return "bool"
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "float"
	case string:
		return "string"
	case []bool:
		return "[]bool"
	case []int, []int64:
		return "[]int"
	case []float64:
		return "[]float"
	case []string:
		return "[]string"
	case []any:
		for _, e := range vv {
			if k := kindOf(e); k != "" {
				return "[]" + k
			}
		}
	}
	return ""
}

// sanitize rewrites values JSON cannot carry: NaN and the infinities
// become marker strings the decoder maps back under a float kind.
func sanitize(v any) any {
	switch vv := v.(type) {
	case float64:
		return sanitizeFloat(vv)
	case float32:
		return sanitizeFloat(float64(vv))
	case []float64:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = sanitizeFloat(e)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = sanitize(e)
		}
		return out
	}
	return v
}

func sanitizeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// restore converts one decoded JSON value to the kind the dump declared
// for it.
func restore(v any, kind string) (any, error) {
	if v == nil {
		return nil, nil
	}
	if elem, isList := strings.CutPrefix(kind, "[]"); isList {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("kind %q wants a list, got %T", kind, v)
		}
		out := make([]any, len(items))
		for i, e := range items {
			cv, err := restore(e, elem)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	switch kind {
	case "int":
		switch n := v.(type) {
		case json.Number:
			return n.Int64()
		case float64:
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
		return nil, fmt.Errorf("kind int got %T", v)
	case "float":
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case string:
			switch n {
			case "NaN":
				return math.NaN(), nil
			case "+Inf":
				return math.Inf(1), nil
			case "-Inf":
				return math.Inf(-1), nil
			}
		}
		return nil, fmt.Errorf("kind float got %T", v)
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("kind bool got %T", v)
		}
		return b, nil
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("kind string got %T", v)
		}
		return s, nil
	case "":
		return loose(v)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// loose decodes a value that has no kind entry: integral numeric
// literals become int64, everything else keeps its JSON shape.
func loose(v any) (any, error) {
	switch vv := v.(type) {
	case json.Number:
		if !strings.ContainsAny(string(vv), ".eE") {
			if n, err := vv.Int64(); err == nil {
				return n, nil
			}
		}
		return vv.Float64()
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			cv, err := loose(e)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	return v, nil
}
