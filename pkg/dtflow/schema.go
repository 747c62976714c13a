package dtflow

import "fmt"

// Schema declares how one record materializes into an event: the scalar
// metadata to read and, per entity type, how many entities to build,
// their attributes, and optional filtering and ordering.
//
// A Schema is plain declarative data. Build one in code or load it from
// configuration, then hand it to NewBuilder, which validates every rule
// up front: all schema problems surface before the first record is read.
type Schema struct {
	// Metadata declares event-level scalar attributes, resolved in
	// declaration order before any entity is built.
	Metadata []Attribute

	// Entities declares the entity collections, built in declaration
	// order.
	Entities []EntitySchema
}

// EntitySchema declares one entity type.
type EntitySchema struct {
	// Type is the collection name, e.g. "segments".
	Type string

	// Count decides how many entities to build for a record.
	Count CountRule

	// Attributes are resolved in declaration order for each entity, so
	// later attributes may reference earlier ones.
	Attributes []Attribute

	// Filter is an optional boolean expression over the built entity's
	// attributes and the event metadata; entities failing it are
	// dropped after construction.
	Filter string

	// SortBy is an optional expression whose value orders the retained
	// entities, ascending unless Descending is set. Sorting is stable.
	SortBy string

	// Descending reverses the sort order.
	Descending bool
}

// Attribute pairs an attribute name with its resolution rule.
type Attribute struct {
	Name string
	Rule AttributeRule
}

// DelegateFunc computes an attribute value from the in-progress entity
// and the rule's static keyword arguments. Returning an error, or
// panicking, aborts only the entity under construction.
type DelegateFunc func(e *Entity, kwargs map[string]any) (any, error)

type ruleKind int

const (
	ruleUnset ruleKind = iota
	ruleColumn
	ruleExpr
	ruleDelegate
)

// AttributeRule is a closed description of how one attribute resolves:
// a direct column read, an expression over already-resolved values, or
// a delegate call. Construct rules with Column, Expression or Delegate
// and refine them with Coerce and Required.
type AttributeRule struct {
	kind     ruleKind
	column   string
	exprSrc  string
	delegate DelegateFunc
	kwargs   map[string]any
	coerce   CoerceKind
	required bool
}

// Column resolves the attribute by reading the named record column. For
// array columns the value is the element at the entity's build index;
// for scalar columns it is the scalar itself.
func Column(name string) AttributeRule {
	return AttributeRule{kind: ruleColumn, column: name}
}

// Expression resolves the attribute by evaluating src against the
// entity's already-resolved attributes, the event metadata and the
// builtin "index". The expression is parsed and its references checked
// when the schema compiles.
func Expression(src string) AttributeRule {
	return AttributeRule{kind: ruleExpr, exprSrc: src}
}

// Delegate resolves the attribute by calling fn with the in-progress
// entity and kwargs.
func Delegate(fn DelegateFunc, kwargs map[string]any) AttributeRule {
	return AttributeRule{kind: ruleDelegate, delegate: fn, kwargs: kwargs}
}

// Coerce returns a copy of the rule with a target type applied after
// resolution. Coercion failure degrades the value to nil with a warning,
// never an abort.
func (r AttributeRule) Coerce(k CoerceKind) AttributeRule {
	r.coerce = k
	return r
}

// Required returns a copy of the rule for which missing data aborts the
// entity instead of degrading to nil.
func (r AttributeRule) Required() AttributeRule {
	r.required = true
	return r
}

// String describes the rule for diagnostics.
func (r AttributeRule) String() string {
	switch r.kind {
	case ruleColumn:
		return fmt.Sprintf("column(%s)", r.column)
	case ruleExpr:
		return fmt.Sprintf("expr(%s)", r.exprSrc)
	case ruleDelegate:
		return "delegate"
	}
	return "unset"
}

type countKind int

const (
	countUnset countKind = iota
	countLiteral
	countColumn
	countExpr
)

// CountRule decides how many entities of a type to build for a record.
// The evaluated count is clamped to zero or more.
type CountRule struct {
	kind    countKind
	n       int
	column  string
	exprSrc string
}

// Count builds a fixed number of entities per record.
func Count(n int) CountRule {
	return CountRule{kind: countLiteral, n: n}
}

// CountColumn reads the count from a record column: a scalar column
// supplies the count directly, an array column supplies its length.
func CountColumn(name string) CountRule {
	return CountRule{kind: countColumn, column: name}
}

// CountExpr evaluates the count from an expression over the event
// metadata and the record index.
func CountExpr(src string) CountRule {
	return CountRule{kind: countExpr, exprSrc: src}
}

// String describes the rule for diagnostics.
func (c CountRule) String() string {
	switch c.kind {
	case countLiteral:
		return fmt.Sprintf("count(%d)", c.n)
	case countColumn:
		return fmt.Sprintf("count(column %s)", c.column)
	case countExpr:
		return fmt.Sprintf("count(expr %s)", c.exprSrc)
	}
	return "unset"
}

// CoerceKind selects a target type applied after attribute resolution.
type CoerceKind int

const (
	// CoerceNone leaves the resolved value as is.
	CoerceNone CoerceKind = iota
	// CoerceInt truncates numbers to int64; true and false become 1 and 0.
	CoerceInt
	// CoerceFloat widens numbers to float64; true and false become 1 and 0.
	CoerceFloat
	// CoerceBool applies truthiness: zeros and "" are false.
	CoerceBool
	// CoerceString formats the value as a string.
	CoerceString
)

// String returns the kind's name.
func (k CoerceKind) String() string {
	switch k {
	case CoerceNone:
		return "none"
	case CoerceInt:
		return "int"
	case CoerceFloat:
		return "float"
	case CoerceBool:
		return "bool"
	case CoerceString:
		return "string"
	}
	return fmt.Sprintf("CoerceKind(%d)", int(k))
}

// Validate compiles the schema and reports every problem found, joined
// into one error. A nil result means the schema is buildable.
func (s Schema) Validate() error {
	_, err := compileSchema(s)
	return err
}
