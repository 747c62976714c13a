package dtflow

import (
	"fmt"
	"io"

	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// Sequence is a lazy view over a record source: events are built on
// demand, drained through the pipeline, and never cached. Memory stays
// bounded by one event in flight no matter how long the source is.
//
// A Sequence window is half open. Slicing returns a new lazy view over
// the same source; events keep their absolute source index regardless
// of the window they were reached through.
type Sequence struct {
	src  source.Source
	b    *Builder
	pipe *Pipeline
	lo   int
	hi   int
}

// NewSequence wraps a source with a builder and an optional pipeline.
// A nil pipeline passes every event through unchanged.
//
// Panics if src or b is nil.
func NewSequence(src source.Source, b *Builder, pipe *Pipeline) *Sequence {
	if src == nil {
		panic("dtflow: sequence source cannot be nil")
	}
	if b == nil {
		panic("dtflow: sequence builder cannot be nil")
	}
	return &Sequence{src: src, b: b, pipe: pipe, lo: 0, hi: src.Len()}
}

// Len returns the number of records in the view.
func (s *Sequence) Len() int {
	return s.hi - s.lo
}

// Builder returns the builder the sequence materializes events with.
// Consumers use it to harvest build statistics after a drain.
func (s *Sequence) Builder() *Builder {
	return s.b
}

// Get builds and processes the i'th event of the view. It returns
// (nil, nil) when a selector rejected the event, and a non-nil error
// when the record could not be read or a stage failed. Calling Get
// twice for the same i rebuilds the event from the source both times.
func (s *Sequence) Get(i int) (*Event, error) {
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("%w: get %d of %d", ErrBadSlice, i, s.Len())
	}
	abs := s.lo + i
	rec, err := s.src.Read(abs)
	if err != nil {
		return nil, err
	}
	ev := s.b.BuildEvent(rec, abs)
	if s.pipe == nil {
		return ev, nil
	}
	return s.pipe.Run(ev)
}

// Slice returns a lazy sub-view covering [lo, hi) of this view. No
// events are built until the sub-view is read.
func (s *Sequence) Slice(lo, hi int) (*Sequence, error) {
	if lo < 0 || hi < lo || hi > s.Len() {
		return nil, fmt.Errorf("%w: [%d:%d] of %d", ErrBadSlice, lo, hi, s.Len())
	}
	return &Sequence{src: s.src, b: s.b, pipe: s.pipe, lo: s.lo + lo, hi: s.lo + hi}, nil
}

// Cursor returns a forward iterator positioned at the start of the
// view. Each call to Cursor restarts from position zero; cursors are
// independent of each other but share the underlying source, which
// permits one reader at a time.
func (s *Sequence) Cursor() *Cursor {
	return &Cursor{seq: s}
}

// Cursor iterates a Sequence in order.
type Cursor struct {
	seq *Sequence
	pos int
}

// Next returns the next result: an event, (nil, nil) for a rejected
// event, or io.EOF once the view is exhausted. A read or stage error
// still advances the cursor, so callers can keep calling Next to skip
// past a bad record.
func (c *Cursor) Next() (*Event, error) {
	if c.pos >= c.seq.Len() {
		return nil, io.EOF
	}
	i := c.pos
	c.pos++
	return c.seq.Get(i)
}

// Pos reports how many results have been produced so far.
func (c *Cursor) Pos() int {
	return c.pos
}
