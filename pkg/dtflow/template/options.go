package template

// MissingAction specifies what Expand does with a placeholder that has
// no binding.
type MissingAction int

const (
	// MissingKeep leaves the placeholder as-is. The default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError makes Expand return an UndefinedVariableError.
	// Histogram family expansion uses this so a typo in a family
	// variable surfaces at definition time.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing variables are handled.
//
// Default: MissingKeep.
//
// Example:
//
//	exp := NewExpander(WithMissingAction(MissingError))
//	_, err := exp.Expand("${missing}", nil)
//	// err: "undefined variable: missing"
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// WithBraceStyle enables or disables ${var} expansion.
//
// Default: enabled.
func WithBraceStyle(enabled bool) Option {
	return func(e *Expander) {
		e.braceStyle = enabled
	}
}

// WithDollarStyle enables or disables bare $var expansion.
//
// Default: enabled. Disable it when strings legitimately contain
// dollar signs, keeping only the unambiguous ${var} form.
func WithDollarStyle(enabled bool) Option {
	return func(e *Expander) {
		e.dollarStyle = enabled
	}
}
