package source

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
)

// ArrowSource reads records from an Arrow IPC file. Scalar columns map to
// scalars and list columns map to per-entity slices. Batches are loaded
// lazily and at most one batch is resident at a time, so memory stays
// proportional to the batch size rather than the file size.
//
// Records returned by Read borrow the resident batch: a Read that crosses
// a batch boundary invalidates previously returned Records.
type ArrowSource struct {
	f   *os.File
	rdr *ipc.FileReader

	starts []int // global index of each batch's first record
	total  int

	cur     arrow.Record
	curIdx  int
	curCols map[string]arrow.Array
	closed  bool
}

// OpenArrow opens an Arrow IPC file and indexes its batches. Every column
// must be a supported scalar type (bool, integer, float, string) or a list
// of one.
func OpenArrow(path string) (*ArrowSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open arrow source: %w", err)
	}
	rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open arrow source %s: %w", path, err)
	}
	s := &ArrowSource{f: f, rdr: rdr, curIdx: -1}

	for _, field := range rdr.Schema().Fields() {
		if err := checkColumnType(field); err != nil {
			s.Close()
			return nil, fmt.Errorf("arrow source %s: %w", path, err)
		}
	}

	// One pass over the batches to build the global row index.
	s.starts = make([]int, rdr.NumRecords())
	for b := 0; b < rdr.NumRecords(); b++ {
		rec, err := rdr.RecordAt(b)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("arrow source %s: index batch %d: %w", path, b, err)
		}
		s.starts[b] = s.total
		s.total += int(rec.NumRows())
		rec.Release()
	}
	return s, nil
}

// Len returns the total record count across all batches.
func (s *ArrowSource) Len() int { return s.total }

// Read returns the record at global index i, loading its batch if it is
// not the resident one.
func (s *ArrowSource) Read(i int) (Record, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if i < 0 || i >= s.total {
		return nil, fmt.Errorf("read %d of %d: %w", i, s.total, ErrOutOfRange)
	}
	b := sort.Search(len(s.starts), func(k int) bool { return s.starts[k] > i }) - 1
	if b != s.curIdx {
		if err := s.loadBatch(b); err != nil {
			return nil, err
		}
	}
	return arrowRecord{cols: s.curCols, row: i - s.starts[b]}, nil
}

func (s *ArrowSource) loadBatch(b int) error {
	rec, err := s.rdr.RecordAt(b)
	if err != nil {
		return fmt.Errorf("load batch %d: %w", b, err)
	}
	if s.cur != nil {
		s.cur.Release()
	}
	s.cur = rec
	s.curIdx = b
	s.curCols = make(map[string]arrow.Array, len(rec.Schema().Fields()))
	for c, field := range rec.Schema().Fields() {
		s.curCols[field.Name] = rec.Column(c)
	}
	return nil
}

// Close releases the resident batch and closes the underlying file.
func (s *ArrowSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	s.rdr.Close()
	return s.f.Close()
}

func checkColumnType(field arrow.Field) error {
	t := field.Type
	if lt, ok := t.(*arrow.ListType); ok {
		t = lt.Elem()
		if _, nested := t.(*arrow.ListType); nested {
			return fmt.Errorf("column %s: nested lists are not supported", field.Name)
		}
	}
	switch t.ID() {
	case arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64,
		arrow.STRING:
		return nil
	}
	return fmt.Errorf("column %s: unsupported type %s", field.Name, field.Type)
}

type arrowRecord struct {
	cols map[string]arrow.Array
	row  int
}

func (r arrowRecord) Column(name string) (any, bool) {
	arr, ok := r.cols[name]
	if !ok {
		return nil, false
	}
	if arr.IsNull(r.row) {
		return nil, true
	}
	if list, ok := arr.(*array.List); ok {
		start, end := list.ValueOffsets(r.row)
		return listSlice(list.ListValues(), int(start), int(end)), true
	}
	return scalarAt(arr, r.row), true
}

// scalarAt widens a supported scalar slot to bool, int64, float64 or
// string. Open-time type checking guarantees the switch is exhaustive.
func scalarAt(arr arrow.Array, i int) any {
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	}
	return nil
}

// listSlice copies list elements [start, end) into a typed slice. Null
// slots degrade to the element zero value, NaN for floats.
func listSlice(values arrow.Array, start, end int) any {
	switch vs := values.(type) {
	case *array.Boolean:
		out := make([]bool, end-start)
		for i := start; i < end; i++ {
			if !vs.IsNull(i) {
				out[i-start] = vs.Value(i)
			}
		}
		return out
	case *array.Float32:
		out := make([]float64, end-start)
		for i := start; i < end; i++ {
			if vs.IsNull(i) {
				out[i-start] = math.NaN()
			} else {
				out[i-start] = float64(vs.Value(i))
			}
		}
		return out
	case *array.Float64:
		out := make([]float64, end-start)
		for i := start; i < end; i++ {
			if vs.IsNull(i) {
				out[i-start] = math.NaN()
			} else {
				out[i-start] = vs.Value(i)
			}
		}
		return out
	case *array.String:
		out := make([]string, end-start)
		for i := start; i < end; i++ {
			if !vs.IsNull(i) {
				out[i-start] = vs.Value(i)
			}
		}
		return out
	}
	// Remaining supported element types are the integer widths.
	out := make([]int64, end-start)
	for i := start; i < end; i++ {
		if !values.IsNull(i) {
			v, _ := scalarAt(values, i).(int64)
			out[i-start] = v
		}
	}
	return out
}
