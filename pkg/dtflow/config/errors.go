package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for run-config validation and resolution.
var (
	// ErrNameUnset indicates a declaration without a name.
	ErrNameUnset = errors.New("name not set")

	// ErrTypeUnset indicates an entity declaration without a type.
	ErrTypeUnset = errors.New("entity type not set")

	// ErrRuleAmbiguous indicates an attribute declaring more or fewer
	// than one of column, expr and delegate.
	ErrRuleAmbiguous = errors.New("attribute needs exactly one of column, expr, delegate")

	// ErrCountAmbiguous indicates an entity count declaring more or
	// fewer than one of value, column and expr.
	ErrCountAmbiguous = errors.New("count needs exactly one of value, column, expr")

	// ErrStageAmbiguous indicates a pipeline stage declaring both or
	// neither of processor and selector.
	ErrStageAmbiguous = errors.New("stage needs exactly one of processor, selector")

	// ErrUnknownCoerce indicates a coercion kind this loader does not
	// know.
	ErrUnknownCoerce = errors.New("unknown coercion kind")

	// ErrUnknownKind indicates a histogram kind this loader does not
	// know.
	ErrUnknownKind = errors.New("unknown histogram kind")

	// ErrPredicateUnset indicates an efficiency declaration without a
	// predicate.
	ErrPredicateUnset = errors.New("efficiency needs a predicate")

	// ErrNotRegistered indicates a callable name absent from the host's
	// registries.
	ErrNotRegistered = errors.New("name not registered")
)

// FieldError locates a defect inside a run-config document. Path is the
// offending declaration in index notation, e.g.
// "entities[1].attributes[0]".
type FieldError struct {
	// Path locates the declaration.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// fieldErr builds a FieldError with a printf-style path.
func fieldErr(err error, format string, args ...any) error {
	return &FieldError{Path: fmt.Sprintf(format, args...), Err: err}
}
