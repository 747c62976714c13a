package dtflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema validation.
var (
	// ErrRuleUnset indicates an attribute carries a zero-value rule.
	ErrRuleUnset = errors.New("attribute rule not set")

	// ErrCountUnset indicates an entity schema carries a zero-value count rule.
	ErrCountUnset = errors.New("count rule not set")

	// ErrDuplicateType indicates two entity schemas share a type name.
	ErrDuplicateType = errors.New("duplicate entity type")

	// ErrDuplicateAttribute indicates two attributes of one entity share a name.
	ErrDuplicateAttribute = errors.New("duplicate attribute name")

	// ErrReservedName indicates an attribute uses the reserved name "index".
	ErrReservedName = errors.New(`"index" is a reserved attribute name`)

	// ErrUnknownReference indicates an expression references a name that is
	// neither an attribute, event metadata, nor a builtin.
	ErrUnknownReference = errors.New("expression references unknown name")

	// ErrForwardReference indicates an expression references an attribute
	// declared at or after its own position. Declaration order is resolution
	// order, so this also rules out cycles.
	ErrForwardReference = errors.New("expression references attribute before it is resolved")
)

// Sentinel errors for sequence access.
var (
	// ErrBadSlice indicates slice bounds are out of range or inverted.
	ErrBadSlice = errors.New("slice bounds out of range")
)

// SchemaError reports one invalid declaration in a schema. Schema
// compilation collects every SchemaError before failing, so a load
// failure lists all problems at once.
type SchemaError struct {
	// Entity is the entity type name, empty for event metadata.
	Entity string
	// Attribute is the attribute name, empty for count, filter and sort
	// rules.
	Attribute string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	switch {
	case e.Entity == "":
		return fmt.Sprintf("schema: metadata %q: %v", e.Attribute, e.Err)
	case e.Attribute == "":
		return fmt.Sprintf("schema: entity %s: %v", e.Entity, e.Err)
	default:
		return fmt.Sprintf("schema: entity %s attribute %q: %v", e.Entity, e.Attribute, e.Err)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// MissingDataError reports a record-specific absence: a column that does
// not exist, or an array column with no slot at the entity's index. The
// builder converts it into a nil attribute value unless the attribute is
// declared required.
type MissingDataError struct {
	// Column is the requested column name.
	Column string
	// Index is the entity index the read was for, -1 for metadata.
	Index int
}

// Error implements the error interface.
func (e *MissingDataError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("column %q not present", e.Column)
	}
	return fmt.Sprintf("column %q has no value at index %d", e.Column, e.Index)
}

// ResolutionError reports a failed attribute resolution that aborted one
// entity's construction. The event still materializes with that entity's
// collection short of one member.
type ResolutionError struct {
	// Entity is the entity type being built.
	Entity string
	// Index is the build index of the aborted entity.
	Index int
	// Attribute is the attribute whose resolution failed.
	Attribute string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s[%d].%s: %v", e.Entity, e.Index, e.Attribute, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ProcessError reports a pipeline stage failure. It is fatal for the
// affected event only.
type ProcessError struct {
	// Stage is the name the stage was registered under.
	Stage string
	// Op is "process" for preprocessors and "select" for selectors.
	Op string
	// Event is the record index of the affected event.
	Event int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s %s at event %d: %v", e.Op, e.Stage, e.Event, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic recovered from a delegate or pipeline
// stage, including the stack at the point of panic.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace captured during recovery.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
