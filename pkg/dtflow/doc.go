/*
Package dtflow materializes detector events from columnar records and
drives them through processing pipelines.

# Overview

dtflow is a Go library for turning flat, columnar physics data into
structured events: per-record scalar metadata plus named, ordered
collections of entities (segments, generator muons, trigger
primitives). A declarative Schema says how many entities each record
yields and how every attribute resolves; a Pipeline enriches and
filters the built events; a Sequence gives lazy, sliceable access over
a whole record source with one event in memory at a time.

The library favors declarative configuration with:
  - A closed set of attribute rules checked when the schema compiles
  - Tolerant materialization: bad data degrades, it never aborts a run
  - Entity cross-references as (type, index) pairs, never pointers
  - OpenTelemetry integration for observability

# Basic Usage

Declare a schema, compile it into a builder, and wrap a source:

	schema := dtflow.Schema{
	    Metadata: []dtflow.Attribute{
	        {Name: "event_number", Rule: dtflow.Column("event")},
	    },
	    Entities: []dtflow.EntitySchema{{
	        Type:  "segments",
	        Count: dtflow.CountColumn("seg_phi"),
	        Attributes: []dtflow.Attribute{
	            {Name: "phi", Rule: dtflow.Column("seg_phi")},
	            {Name: "wheel", Rule: dtflow.Column("seg_wheel").Coerce(dtflow.CoerceInt)},
	            {Name: "fwd", Rule: dtflow.Expression("wheel > 0")},
	        },
	        Filter: "wheel >= -2 and wheel <= 2",
	        SortBy: "phi",
	    }},
	}

	builder, err := dtflow.NewBuilder(schema)
	if err != nil {
	    log.Fatal(err) // every schema defect, joined
	}

	src, err := source.OpenArrow("run-371234.arrow")
	if err != nil {
	    log.Fatal(err)
	}
	defer src.Close()

	seq := dtflow.NewSequence(src, builder, nil)
	ev, err := seq.Get(42)

Attributes resolve in declaration order, so an expression rule may use
any attribute declared before it, plus the event metadata and the
builtin "index".

# Pipelines

Preprocessors mutate events; selectors decide which events survive:

	pipe := dtflow.NewPipeline().
	    AddProcessor("correlate", correlateSegments).
	    AddSelector("has_muon", func(ev *dtflow.Event) (bool, error) {
	        return len(ev.Collection("genmuons")) > 0, nil
	    })

	seq := dtflow.NewSequence(src, builder, pipe)

A rejected event comes back as (nil, nil) from Get, so batch consumers
count rejections without error plumbing. Stage errors and panics are
wrapped in ProcessError and fail only the affected event.

# Iteration and Slicing

Sequences slice lazily and iterate through cursors:

	part, _ := seq.Slice(1000, 2000)
	cur := part.Cursor()
	for {
	    ev, err := cur.Next()
	    if err == io.EOF {
	        break
	    }
	    if err != nil {
	        log.Printf("skipping: %v", err)
	        continue
	    }
	    if ev == nil {
	        continue // rejected by a selector
	    }
	    consume(ev)
	}

No event is cached: Get(i) twice rebuilds from the source both times,
and a million-record file never holds more than one event in memory.

# Error Handling

Schema defects surface together at compile time:

	if err := schema.Validate(); err != nil {
	    var se *dtflow.SchemaError
	    if errors.As(err, &se) {
	        log.Printf("first defect: entity %s attribute %s", se.Entity, se.Attribute)
	    }
	}

At build time nothing is fatal: a missing optional column becomes a nil
attribute, a failed attribute aborts one entity, a failed count empties
one collection. Builder.Stats reports what was degraded.

# Thread Safety

  - Schema values are plain data, copy freely
  - Builder is NOT safe for concurrent use; run one per worker
  - Pipeline registration is NOT safe for concurrent use; Run is, once
    registration is done
  - Sequence and Cursor wrap a Source, which permits one reader at a
    time

# Subpackages

  - source: record sources (Arrow IPC files, in-memory, chained)
  - expr: the expression language used by schema rules
  - match: nearest-neighbor correlation between entity collections
  - histo: histogram definitions, filling, and parallel aggregation
  - registry: named constructors for config-driven assembly
  - observability: logging, metrics, and tracing helpers
*/
package dtflow
