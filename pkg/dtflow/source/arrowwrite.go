package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
)

const defaultBatchRows = 1024

// ArrowWriter encodes rows into an Arrow IPC file, buffering up to a
// batch worth of rows before each flush. Written files open with
// OpenArrow. The writable column types are the canonical scalar set
// (bool, int64, float64, string) and lists of those.
type ArrowWriter struct {
	f         *os.File
	w         *ipc.FileWriter
	schema    *arrow.Schema
	rb        *array.RecordBuilder
	pending   int
	batchRows int
	closed    bool
}

// CreateArrow creates path and prepares an IPC writer for the schema.
// batchRows <= 0 selects a default batch size.
func CreateArrow(path string, schema *arrow.Schema, batchRows int) (*ArrowWriter, error) {
	for _, field := range schema.Fields() {
		if err := checkWritableType(field); err != nil {
			return nil, fmt.Errorf("create arrow %s: %w", path, err)
		}
	}
	if batchRows <= 0 {
		batchRows = defaultBatchRows
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create arrow: %w", err)
	}
	alloc := memory.NewGoAllocator()
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create arrow %s: %w", path, err)
	}
	return &ArrowWriter{
		f:         f,
		w:         w,
		schema:    schema,
		rb:        array.NewRecordBuilder(alloc, schema),
		batchRows: batchRows,
	}, nil
}

// Append buffers one row, flushing a batch when full. Missing columns
// and nil values append as null.
func (w *ArrowWriter) Append(row Row) error {
	if w.closed {
		return ErrClosed
	}
	for i, field := range w.schema.Fields() {
		if err := appendValue(w.rb.Field(i), row[field.Name]); err != nil {
			return fmt.Errorf("column %s: %w", field.Name, err)
		}
	}
	w.pending++
	if w.pending >= w.batchRows {
		return w.flush()
	}
	return nil
}

func (w *ArrowWriter) flush() error {
	if w.pending == 0 {
		return nil
	}
	rec := w.rb.NewRecord()
	defer rec.Release()
	w.pending = 0
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

// Close flushes pending rows and finalizes the file.
func (w *ArrowWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.flush()
	w.rb.Release()
	if cerr := w.w.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteArrow writes all rows to path in one call.
func WriteArrow(path string, schema *arrow.Schema, rows []Row, batchRows int) error {
	w, err := CreateArrow(path, schema, batchRows)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Append(row); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func checkWritableType(field arrow.Field) error {
	t := field.Type
	if lt, ok := t.(*arrow.ListType); ok {
		t = lt.Elem()
	}
	switch t.ID() {
	case arrow.BOOL, arrow.INT64, arrow.FLOAT64, arrow.STRING:
		return nil
	}
	return fmt.Errorf("column %s: not a writable type: %s", field.Name, field.Type)
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bld := b.(type) {
	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", v)
		}
		bld.Append(bv)
	case *array.Int64Builder:
		iv, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("want integer, got %T", v)
		}
		bld.Append(iv)
	case *array.Float64Builder:
		fv, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("want number, got %T", v)
		}
		bld.Append(fv)
	case *array.StringBuilder:
		sv, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		bld.Append(sv)
	case *array.ListBuilder:
		elems, ok := elements(v)
		if !ok {
			return fmt.Errorf("want slice, got %T", v)
		}
		bld.Append(true)
		vb := bld.ValueBuilder()
		for _, e := range elems {
			if err := appendValue(vb, e); err != nil {
				return err
			}
		}
	default:
		return errors.New("unsupported builder")
	}
	return nil
}

// elements flattens the supported slice shapes to []any.
func elements(v any) ([]any, bool) {
	switch vs := v.(type) {
	case []any:
		return vs, true
	case []float64:
		out := make([]any, len(vs))
		for i, e := range vs {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(vs))
		for i, e := range vs {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(vs))
		for i, e := range vs {
			out[i] = e
		}
		return out, true
	case []bool:
		out := make([]any, len(vs))
		for i, e := range vs {
			out[i] = e
		}
		return out, true
	case []string:
		out := make([]any, len(vs))
		for i, e := range vs {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if iv, ok := asInt64(v); ok {
		return float64(iv), true
	}
	return 0, false
}
