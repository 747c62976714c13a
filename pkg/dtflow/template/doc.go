/*
Package template provides variable expansion for histogram family names.

# Overview

template expands ${var} and $var placeholders in strings and enumerates
the value combinations a templated definition spans. Histogram families
use it to turn one declaration like "seg_eff_MB${station}" into one
histogram per station.

# Basic Usage

Expand placeholders with the package-level function:

	name := template.Expand("seg_phi_MB${station}", map[string]any{"station": 3})
	// name: "seg_phi_MB3"

Both brace and dollar-sign patterns are supported:

	vars := map[string]any{"wheel": -1, "station": 2}
	title := template.Expand("phi residual, wheel $wheel MB${station}", vars)
	// title: "phi residual, wheel -1 MB2"

# Variable Patterns

Two patterns are supported:

  - ${var} - Brace style, recommended for clarity
  - $var - Dollar style, simpler but requires word boundaries

The dollar style uses word boundary detection to avoid partial matches,
so $wh never matches inside $wheel.

# Missing Variables

By default, missing variables are kept as-is:

	result := template.Expand("res_${missing}", nil)
	// result: "res_${missing}"

Configure behavior with options:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("res_${missing}", nil)
	// err: "undefined variable: missing"

Family expansion uses MissingError so that a misspelled family variable
fails at definition time instead of silently producing literal "${...}"
histogram names.

# Family Combinations

Combinations enumerates every assignment of a variable set:

	combos := template.Combinations(map[string][]any{
	    "station": {1, 2, 3, 4},
	    "wheel":   {-2, -1, 0, 1, 2},
	})
	// 20 combinations in deterministic order

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	for _, combo := range combos {
	    name, err := exp.Expand("t0_MB${station}_wh${wheel}", combo)
	    // one histogram per name...
	}

# Thread Safety

Expander is safe for concurrent use after construction.
Package-level functions use a shared default expander.
*/
package template
