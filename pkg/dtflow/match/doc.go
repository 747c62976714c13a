/*
Package match correlates entity collections within an event by
nearest-neighbor distance.

# Overview

A Matcher pairs each entity of one collection (A) with the closest
entities of another (B) under a pluggable distance metric, scoped by a
partition key and bounded by an acceptance window. Matches are written
back onto the entities as cross-references, (type, index) pairs that
resolve against the owning event, so the event graph stays free of
pointer cycles and safe to serialize.

# Basic Usage

Match generated muons to reconstructed segments by angular distance:

	matcher := match.Matcher{
	    A:          "genmuons",
	    B:          "segments",
	    ForwardRef: "segments",
	    ReverseRef: "muons",
	    Metric:     match.Within(match.AbsDiff("eta", "eta"), 0.3,
	        match.AbsDeltaPhi("phi", "phi")),
	    Filter: match.And(
	        match.MinInt("n_hits_phi", 4),
	        match.Or(match.MinInt("n_hits_z", 4), match.EqInt("station", 4)),
	    ),
	    Window: 0.1,
	    Limit:  0, // keep every segment inside the window
	}

	res := matcher.Match(ev)
	// res.Matched, res.Unmatched, res.Pairs

	for _, mu := range ev.Collection("genmuons") {
	    for _, ref := range mu.Refs("segments") {
	        seg, _ := ev.Resolve(ref)
	        // closest segments first...
	    }
	}

# Partitioning

The Key function scopes candidates: an A-entity only competes for
B-entities sharing its key. ByAttrs joins attribute values into a key;
ByChamber additionally normalizes the sector numbering difference
between collections (MB4 readout sectors 13 and 14 belong to chambers
4 and 10).

# Ranking

Within a partition, candidates inside the window are ordered by
distance; equal distances keep collection order, so results are fully
deterministic. Limit bounds the matches each A-entity keeps: 1 gives
classic best-match, 0 keeps everything inside the window, which is how
one track legitimately matches independent sub-detector layers in the
same station.

An A-entity with no accepted candidate gains no reference attribute at
all. Absence is observable (Refs returns nil), never a sentinel value.

# Pipelines

Processor adapts a matcher to a pipeline stage, so correlation runs as
a preprocessor on every event a sequence yields:

	pipe := dtflow.NewPipeline().
	    AddProcessor("match_segments", matcher.Processor())
*/
package match
