package source

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"
)

// InferSchema derives an Arrow schema from rows, typing each column by
// its first non-nil value the way a dump types branches from
// representative values. Columns carry the canonical scalars or lists
// of them; later values of another kind fail at write time, not here.
// A column that never carries a value cannot be typed and errors.
func InferSchema(rows []Row) (*arrow.Schema, error) {
	names := columnUnion(rows)
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		t, err := inferColumn(rows, name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: name, Type: t, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// columnUnion returns the sorted union of column names across rows.
func columnUnion(rows []Row) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// inferColumn scans one column for a representative value.
func inferColumn(rows []Row, name string) (arrow.DataType, error) {
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		if t, ok := scalarType(v); ok {
			return t, nil
		}
		elems, ok := elements(v)
		if !ok {
			return nil, fmt.Errorf("column %s: cannot infer a type from %T", name, v)
		}
		for _, e := range elems {
			if t, ok := scalarType(e); ok {
				return arrow.ListOf(t), nil
			}
		}
		// Empty or all-nil list; a later row may still type it.
	}
	return nil, fmt.Errorf("column %s: cannot infer a type, no value is ever set", name)
}

// scalarType maps a canonical scalar to its Arrow type.
func scalarType(v any) (arrow.DataType, bool) {
	switch v.(type) {
	case bool:
		return arrow.FixedWidthTypes.Boolean, true
	case int, int32, int64:
		return arrow.PrimitiveTypes.Int64, true
	case float32, float64:
		return arrow.PrimitiveTypes.Float64, true
	case string:
		return arrow.BinaryTypes.String, true
	}
	return nil, false
}
