package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Variable patterns.
var (
	// bracePattern matches ${varname}; varname is alphanumeric plus underscore.
	bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

	// dollarPattern matches $varname up to the first non-word character,
	// so $wh never matches inside $wheel.
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)(?:\b|$)`)
)

// Expander expands variable placeholders in strings.
//
// Histogram family definitions name their members with placeholders,
// for example "seg_phi_MB${station}"; expanding against
// {"station": 2} yields "seg_phi_MB2".
//
// Create with NewExpander() and configure with Option functions.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
	braceStyle    bool
	dollarStyle   bool
}

// NewExpander creates an Expander.
//
// Defaults: MissingKeep (placeholders without a binding stay as-is),
// both ${var} and $var styles enabled.
//
// Example:
//
//	exp := NewExpander(WithMissingAction(MissingError))
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		braceStyle:    true,
		dollarStyle:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand substitutes placeholders in s from vars.
//
// An error is returned only when MissingAction is MissingError and at
// least one placeholder has no binding; the error lists every missing
// variable, not just the first.
//
// Example:
//
//	exp := NewExpander()
//	name, err := exp.Expand("res_MB${station}", map[string]any{"station": 4})
//	// name: "res_MB4"
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	result := s
	var missingVars []string

	// ${var} first, it is the more specific pattern.
	if e.braceStyle {
		result = bracePattern.ReplaceAllStringFunc(result, func(match string) string {
			varName := match[2 : len(match)-1]
			if val, ok := vars[varName]; ok {
				return fmt.Sprintf("%v", val)
			}
			switch e.missingAction {
			case MissingEmpty:
				return ""
			case MissingError:
				missingVars = append(missingVars, varName)
				return match
			default: // MissingKeep
				return match
			}
		})
	}

	if e.dollarStyle {
		result = dollarPattern.ReplaceAllStringFunc(result, func(match string) string {
			varName := match[1:]
			if val, ok := vars[varName]; ok {
				return fmt.Sprintf("%v", val)
			}
			switch e.missingAction {
			case MissingEmpty:
				return ""
			case MissingError:
				missingVars = append(missingVars, varName)
				return match
			default: // MissingKeep
				return match
			}
		})
	}

	if len(missingVars) > 0 {
		return result, &UndefinedVariableError{Names: missingVars}
	}

	return result, nil
}

// MustExpand is Expand panicking on error.
//
// Use when every variable is known present, or with MissingKeep and
// MissingEmpty, which never error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandAll expands every string of ss against the same vars.
//
// Returns a new slice; ss is never modified. With MissingError the
// first failing string aborts the pass and its error is returned.
func (e *Expander) ExpandAll(ss []string, vars map[string]any) ([]string, error) {
	if ss == nil {
		return nil, nil
	}

	results := make([]string, len(ss))
	for i, s := range ss {
		expanded, err := e.Expand(s, vars)
		if err != nil {
			return nil, err
		}
		results[i] = expanded
	}
	return results, nil
}

// UndefinedVariableError reports placeholders that had no binding.
// Returned only under MissingError.
type UndefinedVariableError struct {
	// Names lists the undefined variable names in order of appearance.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// Combinations enumerates every assignment of the given variables,
// one value per variable, as the cartesian product of the value lists.
//
// A histogram family with variables {"wheel": [-2..2], "station": [1..4]}
// expands into 20 combinations, each fed to Expand to produce one member
// name. The order is deterministic: variable names are taken
// alphabetically and the last name varies fastest, so
// {"station": [1, 2], "wheel": [0, 1]} yields
//
//	{station:1 wheel:0}, {station:1 wheel:1}, {station:2 wheel:0}, {station:2 wheel:1}
//
// A variable with an empty value list makes the product empty. No
// variables at all yields a single empty combination, so untemplated
// definitions expand to exactly one histogram.
func Combinations(values map[string][]any) []map[string]any {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 1
	for _, name := range names {
		total *= len(values[name])
	}
	if total == 0 {
		return nil
	}

	combos := make([]map[string]any, 0, total)
	idx := make([]int, len(names))
	for {
		combo := make(map[string]any, len(names))
		for k, name := range names {
			combo[name] = values[name][idx[k]]
		}
		combos = append(combos, combo)

		// Odometer increment, last position fastest.
		k := len(names) - 1
		for k >= 0 {
			idx[k]++
			if idx[k] < len(values[names[k]]) {
				break
			}
			idx[k] = 0
			k--
		}
		if k < 0 {
			return combos
		}
	}
}

// defaultExpander backs the package-level helpers.
var defaultExpander = NewExpander()

// Expand expands placeholders in s with the default expander.
// Missing variables keep their placeholder.
func Expand(s string, vars map[string]any) string {
	// MissingKeep never errors.
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// ExpandAll expands every string with the default expander.
// Missing variables keep their placeholder.
func ExpandAll(ss []string, vars map[string]any) []string {
	// MissingKeep never errors.
	results, _ := defaultExpander.ExpandAll(ss, vars)
	return results
}
