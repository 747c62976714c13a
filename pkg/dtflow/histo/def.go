package histo

import (
	"fmt"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/template"
)

// Extractor pulls the values one event contributes to a histogram. A
// scalar quantity returns a one-element slice; an empty or nil slice
// contributes nothing. Returning an error skips this histogram for this
// event only; the error is counted, not fatal.
type Extractor func(ev *dtflow.Event) ([]float64, error)

// Predicate decides, per extracted value, whether the value also enters
// an efficiency histogram's numerator. It must return exactly one
// boolean per extractor value for the same event.
type Predicate func(ev *dtflow.Event) ([]bool, error)

// Scalar adapts a single-valued extraction to an Extractor.
func Scalar(fn func(ev *dtflow.Event) (float64, error)) Extractor {
	return func(ev *dtflow.Event) ([]float64, error) {
		v, err := fn(ev)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}
}

// ScalarFlag adapts a single-valued test to a Predicate.
func ScalarFlag(fn func(ev *dtflow.Event) (bool, error)) Predicate {
	return func(ev *dtflow.Event) ([]bool, error) {
		ok, err := fn(ev)
		if err != nil {
			return nil, err
		}
		return []bool{ok}, nil
	}
}

// Kind discriminates histogram definitions.
type Kind int

const (
	// KindUnset is the zero value; definitions must be built with
	// Distribution or Efficiency.
	KindUnset Kind = iota

	// KindDistribution counts extracted values per bin.
	KindDistribution

	// KindEfficiency fills a denominator for every extracted value and
	// a numerator for values whose predicate flag is true.
	KindEfficiency
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindDistribution:
		return "distribution"
	case KindEfficiency:
		return "efficiency"
	case KindUnset:
		return "unset"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Def is a closed description of one histogram: what to extract from
// each event and how to bin it. Construct with Distribution or
// Efficiency; the zero value is rejected at aggregator construction.
type Def struct {
	name    string
	kind    Kind
	axis    Axis
	extract Extractor
	pass    Predicate
}

// Distribution declares a histogram that counts extracted values.
func Distribution(name string, axis Axis, extract Extractor) Def {
	return Def{name: name, kind: KindDistribution, axis: axis, extract: extract}
}

// Efficiency declares a numerator/denominator histogram pair sharing
// one binning: the denominator fills with every extracted value, the
// numerator with values whose predicate flag is true. The two fills
// divide into a selection efficiency downstream.
func Efficiency(name string, axis Axis, extract Extractor, pass Predicate) Def {
	return Def{name: name, kind: KindEfficiency, axis: axis, extract: extract, pass: pass}
}

// Name returns the definition's histogram name.
func (d Def) Name() string { return d.name }

// Kind returns the definition's kind.
func (d Def) Kind() Kind { return d.kind }

// Axis returns the definition's binning.
func (d Def) Axis() Axis { return d.axis }

func (d Def) check() error {
	if d.kind == KindUnset {
		return &ConfigError{Histogram: d.name, Err: ErrDefUnset}
	}
	if d.name == "" {
		return &ConfigError{Err: ErrNameUnset}
	}
	if err := d.axis.check(); err != nil {
		return &ConfigError{Histogram: d.name, Err: err}
	}
	if d.extract == nil {
		return &ConfigError{Histogram: d.name, Err: ErrExtractorUnset}
	}
	if d.kind == KindEfficiency && d.pass == nil {
		return &ConfigError{Histogram: d.name, Err: ErrPredicateUnset}
	}
	return nil
}

// Family expands one templated definition into a member per variable
// combination. The name template names members through ${var}
// placeholders; build receives the expanded name and the combination
// and returns that member's definition, typically closing over the
// combination in its extractor:
//
//	defs, err := histo.Family("seg_phi_MB${st}", map[string][]any{
//	    "st": {1, 2, 3, 4},
//	}, func(name string, combo map[string]any) histo.Def {
//	    st := combo["st"].(int)
//	    return histo.Distribution(name, axis, segmentPhiInStation(st))
//	})
//
// Combinations enumerate deterministically (variable names sorted, last
// varies fastest), so family member order is stable. A placeholder
// without a variable binding is an error.
func Family(nameTmpl string, vars map[string][]any, build func(name string, combo map[string]any) Def) ([]Def, error) {
	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	combos := template.Combinations(vars)
	defs := make([]Def, 0, len(combos))
	for _, combo := range combos {
		name, err := exp.Expand(nameTmpl, combo)
		if err != nil {
			return nil, &ConfigError{Histogram: nameTmpl, Err: err}
		}
		defs = append(defs, build(name, combo))
	}
	return defs, nil
}
