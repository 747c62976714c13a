package dtflow

import (
	"fmt"
	"runtime/debug"

	"github.com/dtflow/dtflow/pkg/dtflow/expr"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// entityEnv exposes an in-progress entity to expression evaluation.
// Entity attributes shadow event metadata; the builtin "index" resolves
// to the entity's build index, or the record index in metadata scope.
type entityEnv struct {
	ent   *Entity
	meta  map[string]any
	index int
}

func (v entityEnv) Lookup(name string) (any, bool) {
	if name == indexName {
		return int64(v.index), true
	}
	if v.ent != nil {
		if val, ok := v.ent.attrs[name]; ok {
			return val, true
		}
	}
	val, ok := v.meta[name]
	return val, ok
}

// resolveAttr computes one attribute value, before coercion.
func resolveAttr(ca compiledAttr, rec source.Record, env entityEnv) (any, error) {
	switch ca.rule.kind {
	case ruleColumn:
		return resolveColumn(rec, ca.rule.column, env)
	case ruleExpr:
		return ca.prog.Eval(env)
	case ruleDelegate:
		return callDelegate(ca.rule.delegate, env.ent, ca.rule.kwargs)
	}
	return nil, ErrRuleUnset
}

// resolveColumn reads a record column. In entity scope an array column
// yields the element at the entity's build index and a scalar column
// passes through unchanged; in metadata scope the raw value is returned.
func resolveColumn(rec source.Record, name string, env entityEnv) (any, error) {
	v, ok := rec.Column(name)
	if !ok {
		idx := env.index
		if env.ent == nil {
			idx = -1
		}
		return nil, &MissingDataError{Column: name, Index: idx}
	}
	if env.ent == nil {
		return v, nil
	}
	return elementAt(v, name, env.index)
}

// elementAt indexes into an array column value. Scalars are broadcast
// to every entity; an index past the array's end is missing data, not
// a resolution failure.
func elementAt(v any, column string, i int) (any, error) {
	switch arr := v.(type) {
	case []float64:
		if i >= len(arr) {
			return nil, &MissingDataError{Column: column, Index: i}
		}
		return arr[i], nil
	case []int64:
		if i >= len(arr) {
			return nil, &MissingDataError{Column: column, Index: i}
		}
		return arr[i], nil
	case []bool:
		if i >= len(arr) {
			return nil, &MissingDataError{Column: column, Index: i}
		}
		return arr[i], nil
	case []string:
		if i >= len(arr) {
			return nil, &MissingDataError{Column: column, Index: i}
		}
		return arr[i], nil
	case []any:
		if i >= len(arr) {
			return nil, &MissingDataError{Column: column, Index: i}
		}
		return arr[i], nil
	}
	return v, nil
}

// callDelegate invokes a delegate rule, converting panics into errors so
// a misbehaving delegate aborts one entity rather than the whole fill.
func callDelegate(fn DelegateFunc, ent *Entity, kwargs map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(ent, kwargs)
}

// coerceValue applies a coercion kind to a resolved value. nil passes
// through untouched. The second result reports whether the value could
// be represented in the target type.
func coerceValue(v any, k CoerceKind) (any, bool) {
	if v == nil || k == CoerceNone {
		return v, true
	}
	switch k {
	case CoerceInt:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), true
			}
			return int64(0), true
		}
		if f, ok := expr.ToFloat64(v); ok {
			return int64(f), true
		}
		return nil, false
	case CoerceFloat:
		if b, ok := v.(bool); ok {
			if b {
				return float64(1), true
			}
			return float64(0), true
		}
		if f, ok := expr.ToFloat64(v); ok {
			return f, true
		}
		return nil, false
	case CoerceBool:
		return expr.IsTruthy(v), true
	case CoerceString:
		if s, ok := v.(string); ok {
			return s, true
		}
		return fmt.Sprintf("%v", v), true
	}
	return v, true
}

// resolveCount evaluates an entity type's count rule against one record.
// Negative counts clamp to zero.
func resolveCount(cc compiledCount, rec source.Record, meta map[string]any, recIndex int) (int, error) {
	switch cc.rule.kind {
	case countLiteral:
		return cc.rule.n, nil
	case countColumn:
		v, ok := rec.Column(cc.rule.column)
		if !ok {
			return 0, &MissingDataError{Column: cc.rule.column, Index: -1}
		}
		return countFromValue(v, cc.rule.column)
	case countExpr:
		f, err := cc.prog.Float(entityEnv{meta: meta, index: recIndex})
		if err != nil {
			return 0, err
		}
		n := int(f)
		if n < 0 {
			n = 0
		}
		return n, nil
	}
	return 0, ErrCountUnset
}

// countFromValue turns a column value into a count: arrays count their
// elements, numeric scalars convert directly.
func countFromValue(v any, column string) (int, error) {
	switch arr := v.(type) {
	case []float64:
		return len(arr), nil
	case []int64:
		return len(arr), nil
	case []bool:
		return len(arr), nil
	case []string:
		return len(arr), nil
	case []any:
		return len(arr), nil
	case nil:
		return 0, nil
	}
	f, ok := expr.ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("column %q value %T is not countable", column, v)
	}
	n := int(f)
	if n < 0 {
		n = 0
	}
	return n, nil
}
