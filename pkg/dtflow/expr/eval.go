package expr

import (
	"fmt"
	"math"
	"sort"
)

// Env resolves identifiers during evaluation.
// Lookup returns the value and whether the name is known at all; a known
// name may still hold nil (an attribute whose resolution was tolerated to
// fail).
type Env interface {
	Lookup(name string) (any, bool)
}

// MapEnv adapts a plain map to Env.
type MapEnv map[string]any

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// builtins is the closed function table. Arity is checked at parse time.
var builtins = map[string]struct {
	arity int
	fn    func(args []float64) float64
}{
	"abs": {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"min": {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max": {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
}

// Eval evaluates the expression against env.
// Numeric results are float64; logical results are bool.
func (e *Expr) Eval(env Env) (any, error) {
	v, err := e.root.eval(env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", e.src, err)
	}
	return v, nil
}

// Bool evaluates the expression and reduces the result to its truthiness.
func (e *Expr) Bool(env Env) (bool, error) {
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// Float evaluates the expression and coerces the result to float64.
func (e *Expr) Float(env Env) (float64, error) {
	v, err := e.Eval(env)
	if err != nil {
		return 0, err
	}
	f, ok := ToFloat64(v)
	if !ok {
		return 0, fmt.Errorf("eval %q: result %v is not numeric", e.src, v)
	}
	return f, nil
}

// Vars returns the sorted set of free identifiers in the expression.
// Schemas use it to reject references to attributes not yet declared.
func (e *Expr) Vars() []string {
	names := make(map[string]struct{})
	e.root.vars(names)
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------
// Node evaluation
// -----------------------------------------------------------------------

func (n *binaryNode) eval(env Env) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	// Short-circuit before touching the right side.
	if n.op == "and" && !IsTruthy(left) {
		return false, nil
	}
	if n.op == "or" && IsTruthy(left) {
		return true, nil
	}
	right, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	return IsTruthy(right), nil
}

func (n *notNode) eval(env Env) (any, error) {
	v, err := n.inner.eval(env)
	if err != nil {
		return nil, err
	}
	return !IsTruthy(v), nil
}

func (n *cmpNode) eval(env Env) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "==":
		return Equal(left, right), nil
	case "!=":
		return !Equal(left, right), nil
	}
	c, err := Compare(left, right)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "<=":
		return c <= 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison operator %q", n.op)
}

func (n *arithNode) eval(env Env) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	lf, lok := ToFloat64(left)
	rf, rok := ToFloat64(right)
	if !lok || !rok {
		// String concatenation is the one non-numeric arithmetic case.
		if n.op == "+" {
			ls, lsok := left.(string)
			rs, rsok := right.(string)
			if lsok && rsok {
				return ls + rs, nil
			}
		}
		return nil, fmt.Errorf("operator %q needs numeric operands, got %v and %v", n.op, left, right)
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", n.op)
}

func (n *negNode) eval(env Env) (any, error) {
	v, err := n.inner.eval(env)
	if err != nil {
		return nil, err
	}
	f, ok := ToFloat64(v)
	if !ok {
		return nil, fmt.Errorf("unary minus needs a numeric operand, got %v", v)
	}
	return -f, nil
}

func (n *callNode) eval(env Env) (any, error) {
	b := builtins[n.name]
	args := make([]float64, len(n.args))
	for i, argNode := range n.args {
		v, err := argNode.eval(env)
		if err != nil {
			return nil, err
		}
		f, ok := ToFloat64(v)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is not numeric: %v", n.name, i+1, v)
		}
		args[i] = f
	}
	return b.fn(args), nil
}

func (n *literalNode) eval(Env) (any, error) {
	return n.value, nil
}

func (n *identNode) eval(env Env) (any, error) {
	v, ok := env.Lookup(n.name)
	if !ok {
		return nil, fmt.Errorf("unknown identifier %q", n.name)
	}
	return v, nil
}

// -----------------------------------------------------------------------
// Free-variable collection
// -----------------------------------------------------------------------

func (n *binaryNode) vars(names map[string]struct{}) {
	n.left.vars(names)
	n.right.vars(names)
}

func (n *notNode) vars(names map[string]struct{}) { n.inner.vars(names) }

func (n *cmpNode) vars(names map[string]struct{}) {
	n.left.vars(names)
	n.right.vars(names)
}

func (n *arithNode) vars(names map[string]struct{}) {
	n.left.vars(names)
	n.right.vars(names)
}

func (n *negNode) vars(names map[string]struct{}) { n.inner.vars(names) }

func (n *callNode) vars(names map[string]struct{}) {
	for _, a := range n.args {
		a.vars(names)
	}
}

func (n *literalNode) vars(map[string]struct{}) {}

func (n *identNode) vars(names map[string]struct{}) {
	names[n.name] = struct{}{}
}
