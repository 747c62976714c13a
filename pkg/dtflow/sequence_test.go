package dtflow

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

func newTestSequence(t *testing.T, pipe *Pipeline) *Sequence {
	t.Helper()
	b, err := NewBuilder(segmentSchema())
	require.NoError(t, err)
	return NewSequence(source.NewMemory(segmentRows()...), b, pipe)
}

// TestSequence_Len tests the view covers the whole source.
func TestSequence_Len(t *testing.T) {
	seq := newTestSequence(t, nil)
	assert.Equal(t, 3, seq.Len())
}

// TestSequence_Get tests on-demand building by index.
func TestSequence_Get(t *testing.T) {
	seq := newTestSequence(t, nil)

	ev, err := seq.Get(1)

	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1, ev.Index())
	num, _ := ev.Meta("event_number")
	assert.Equal(t, int64(1002), num)
	assert.Len(t, ev.Collection("segments"), 1)
}

// TestSequence_Get_OutOfRange tests bounds checking.
func TestSequence_Get_OutOfRange(t *testing.T) {
	seq := newTestSequence(t, nil)

	_, err := seq.Get(3)
	assert.ErrorIs(t, err, ErrBadSlice)

	_, err = seq.Get(-1)
	assert.ErrorIs(t, err, ErrBadSlice)
}

// TestSequence_ReferentialConsistency tests Get(i) twice rebuilds the
// same values through fresh entities.
func TestSequence_ReferentialConsistency(t *testing.T) {
	seq := newTestSequence(t, nil)

	first, err := seq.Get(0)
	require.NoError(t, err)
	second, err := seq.Get(0)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	require.Len(t, second.Collection("segments"), len(first.Collection("segments")))
	for i, a := range first.Collection("segments") {
		b := second.Collection("segments")[i]
		assert.NotSame(t, a, b)
		pa, _ := a.Float("phi")
		pb, _ := b.Float("phi")
		assert.Equal(t, pa, pb)
	}
}

// TestSequence_Slice tests sub-views are lazy windows with absolute
// event indexes.
func TestSequence_Slice(t *testing.T) {
	seq := newTestSequence(t, nil)

	part, err := seq.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, part.Len())

	ev, err := part.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Index())

	// slicing a slice stays anchored to the source
	inner, err := part.Slice(1, 2)
	require.NoError(t, err)
	ev, err = inner.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Index())
}

// TestSequence_Slice_Bounds tests slice bound validation.
func TestSequence_Slice_Bounds(t *testing.T) {
	seq := newTestSequence(t, nil)

	for _, bounds := range [][2]int{{-1, 2}, {2, 1}, {0, 4}} {
		_, err := seq.Slice(bounds[0], bounds[1])
		assert.ErrorIs(t, err, ErrBadSlice, "bounds %v", bounds)
	}

	empty, err := seq.Slice(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

// TestSequence_Rejection tests selector rejection surfaces as
// (nil, nil) from Get.
func TestSequence_Rejection(t *testing.T) {
	pipe := NewPipeline().AddSelector("multi_segment", func(ev *Event) (bool, error) {
		return len(ev.Collection("segments")) >= 2, nil
	})
	seq := newTestSequence(t, pipe)

	ev, err := seq.Get(0)
	assert.NoError(t, err)
	assert.NotNil(t, ev)

	ev, err = seq.Get(1) // single segment, rejected
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

// TestSequence_StageErrorPropagates tests pipeline failures surface
// from Get.
func TestSequence_StageErrorPropagates(t *testing.T) {
	boom := errors.New("missing calibration")
	pipe := NewPipeline().AddProcessor("calibrate", makeFailingProcessor(boom))
	seq := newTestSequence(t, pipe)

	_, err := seq.Get(0)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, boom)
}

// TestSequence_Cursor tests forward iteration ends with io.EOF.
func TestSequence_Cursor(t *testing.T) {
	seq := newTestSequence(t, nil)
	cur := seq.Cursor()

	var indexes []int
	for {
		ev, err := cur.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, ev)
		indexes = append(indexes, ev.Index())
	}

	assert.Equal(t, []int{0, 1, 2}, indexes)
	assert.Equal(t, 3, cur.Pos())

	// exhausted cursors stay exhausted
	_, err := cur.Next()
	assert.Equal(t, io.EOF, err)
}

// TestSequence_Cursor_CountsRejections tests batch consumers can tally
// rejections without error handling.
func TestSequence_Cursor_CountsRejections(t *testing.T) {
	pipe := NewPipeline().AddSelector("multi_segment", func(ev *Event) (bool, error) {
		return len(ev.Collection("segments")) >= 2, nil
	})
	seq := newTestSequence(t, pipe)

	accepted, rejected := 0, 0
	cur := seq.Cursor()
	for {
		ev, err := cur.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if ev == nil {
			rejected++
			continue
		}
		accepted++
	}

	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, rejected)
}

// TestSequence_Cursor_Restart tests a fresh cursor re-reads from
// position zero.
func TestSequence_Cursor_Restart(t *testing.T) {
	seq := newTestSequence(t, nil)

	first := seq.Cursor()
	for {
		if _, err := first.Next(); err == io.EOF {
			break
		}
	}

	second := seq.Cursor()
	ev, err := second.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Index())
	assert.Equal(t, 3, first.Pos())
	assert.Equal(t, 1, second.Pos())
}

// TestSequence_Cursor_OverSlice tests cursors respect the window.
func TestSequence_Cursor_OverSlice(t *testing.T) {
	seq := newTestSequence(t, nil)
	part, err := seq.Slice(1, 3)
	require.NoError(t, err)

	var indexes []int
	cur := part.Cursor()
	for {
		ev, err := cur.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		indexes = append(indexes, ev.Index())
	}

	assert.Equal(t, []int{1, 2}, indexes)
}

// TestNewSequence_Panics tests constructor misuse panics.
func TestNewSequence_Panics(t *testing.T) {
	b, err := NewBuilder(segmentSchema())
	require.NoError(t, err)

	assert.Panics(t, func() { NewSequence(nil, b, nil) })
	assert.Panics(t, func() { NewSequence(source.NewMemory(), nil, nil) })
}
