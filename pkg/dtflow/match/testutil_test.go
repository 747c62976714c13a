package match_test

import (
	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/match"
)

// makeEvent assembles an event with genmuon and segment collections from
// plain attribute maps, preserving slice order as collection order.
func makeEvent(genmuons, segments []map[string]any) *dtflow.Event {
	ev := dtflow.NewEvent(0)
	ev.SetCollection("genmuons", makeEntities("genmuons", genmuons))
	ev.SetCollection("segments", makeEntities("segments", segments))
	return ev
}

func makeEntities(typ string, rows []map[string]any) []*dtflow.Entity {
	ents := make([]*dtflow.Entity, len(rows))
	for i, row := range rows {
		e := dtflow.NewEntity(typ)
		for name, v := range row {
			e.SetAttr(name, v)
		}
		ents[i] = e
	}
	return ents
}

// chamberMatcher returns the matcher most tests share: genmuons against
// segments in the same chamber, ranked by position residual inside a
// window of 10.
func chamberMatcher() match.Matcher {
	return match.Matcher{
		A:          "genmuons",
		B:          "segments",
		ForwardRef: "matched_segments",
		Metric:     match.AbsDiff("pos", "pos"),
		Key:        match.ByAttrs("chamber"),
		Window:     10,
	}
}

func refIndexes(refs []dtflow.Ref) []int {
	out := make([]int, len(refs))
	for i, r := range refs {
		out[i] = r.Index
	}
	return out
}
