package export

import (
	"sort"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// Rows flattens events back into raw records under the dump's column
// naming: each metadata value under its own name, an n_<type> count per
// collection and a <type>_<attr> per-entity list per attribute.
// Cross-references are not flattened; they are derived state a pipeline
// rebuilds on the next pass.
func Rows(events []*dtflow.Event) []source.Row {
	rows := make([]source.Row, len(events))
	for i, ev := range events {
		row := source.Row{}
		for _, name := range ev.MetaNames() {
			v, _ := ev.Meta(name)
			row[name] = v
		}
		for _, typ := range ev.Types() {
			ents := ev.Collection(typ)
			row["n_"+typ] = int64(len(ents))
			for _, name := range attrUnion(ents) {
				col := make([]any, len(ents))
				for j, e := range ents {
					col[j], _ = e.Attr(name)
				}
				row[typ+"_"+name] = col
			}
		}
		rows[i] = row
	}
	return rows
}

// attrUnion returns the sorted union of attribute names across a
// collection. Pipelines may set attributes unevenly; absent slots
// flatten to nil.
func attrUnion(ents []*dtflow.Entity) []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range ents {
		for _, name := range e.AttrNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// OpenSource reads a dump and re-serves it as a record source, so
// dumped events can be rebuilt under a fresh schema. The whole dump is
// held resident; dumps are working sets, not archives.
func OpenSource(path string) (*source.MemorySource, error) {
	_, events, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return source.NewMemory(Rows(events)...), nil
}
