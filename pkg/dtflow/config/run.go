package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunConfig is the document describing one fill run: what the events
// look like, how they are refined and selected, and which histograms to
// fill. It is plain data; Build resolves its callable names against the
// host's registries and turns it into live components.
type RunConfig struct {
	// Sample names the dataset, for reports and spans.
	Sample string `yaml:"sample"`

	// Metadata declares event-level attributes.
	Metadata []AttributeConfig `yaml:"metadata"`

	// Entities declares the entity collections, in resolution order:
	// an expression may reference collections declared above it.
	Entities []EntityConfig `yaml:"entities"`

	// Pipeline declares refinement and selection stages, in run order.
	Pipeline []StageConfig `yaml:"pipeline"`

	// Histograms declares what to fill.
	Histograms []HistogramConfig `yaml:"histograms"`
}

// AttributeConfig declares one attribute. Exactly one of Column, Expr
// and Delegate must be set.
type AttributeConfig struct {
	Name string `yaml:"name"`

	// Column reads the named source column, indexed per entity.
	Column string `yaml:"column"`

	// Expr evaluates an expression over already-resolved attributes.
	Expr string `yaml:"expr"`

	// Delegate invokes a registered callable by name, with Kwargs as
	// its static arguments.
	Delegate string         `yaml:"delegate"`
	Kwargs   map[string]any `yaml:"kwargs"`

	// Coerce names the target kind: int, float, bool or string. Empty
	// keeps values as they come.
	Coerce string `yaml:"coerce"`

	// Required aborts the entity when the value resolves to nil.
	Required bool `yaml:"required"`
}

// CountConfig declares how many entities a collection has per event.
// Exactly one of Value, Column and Expr must be set.
type CountConfig struct {
	Value  *int   `yaml:"value"`
	Column string `yaml:"column"`
	Expr   string `yaml:"expr"`
}

// EntityConfig declares one entity collection.
type EntityConfig struct {
	Type       string            `yaml:"type"`
	Count      CountConfig       `yaml:"count"`
	Attributes []AttributeConfig `yaml:"attributes"`

	// Filter keeps entities for which the expression is truthy.
	Filter string `yaml:"filter"`

	// SortBy orders the collection by an attribute, ascending unless
	// Descending is set.
	SortBy     string `yaml:"sort_by"`
	Descending bool   `yaml:"descending"`
}

// StageConfig declares one pipeline stage by registered name. Exactly
// one of Processor and Selector must be set.
type StageConfig struct {
	Processor string `yaml:"processor"`
	Selector  string `yaml:"selector"`
}

// AxisConfig declares a uniform binning.
type AxisConfig struct {
	Bins int     `yaml:"bins"`
	Lo   float64 `yaml:"lo"`
	Hi   float64 `yaml:"hi"`
}

// HistogramConfig declares one histogram, or a family of them when the
// name carries ${var} placeholders and Vars lists the values. Extract
// and Predicate name registered callables and may carry the same
// placeholders.
type HistogramConfig struct {
	Name string     `yaml:"name"`
	Kind string     `yaml:"kind"` // distribution | efficiency
	Axis AxisConfig `yaml:"axis"`

	// Extract names the registered extractor.
	Extract string `yaml:"extract"`

	// Predicate names the registered numerator predicate; efficiencies
	// only.
	Predicate string `yaml:"predicate"`

	// Vars expands the declaration into one histogram per value
	// combination.
	Vars map[string][]any `yaml:"vars"`
}

// LoadRun reads a run-config document from a file. YAML and JSON both
// parse; JSON is a YAML subset.
func LoadRun(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		return ParseRun(data)
	default:
		return nil, fmt.Errorf("unsupported run config extension: %s", ext)
	}
}

// ParseRun parses a run-config document.
func ParseRun(data []byte) (*RunConfig, error) {
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parse run config: %w", err)
	}
	return &rc, nil
}

// Validate checks the document's structure and reports every defect
// found, joined into one error. It needs no registries: name resolution
// and cross-attribute reference checks happen in Build.
func (rc *RunConfig) Validate() error {
	var errs []error

	for i, a := range rc.Metadata {
		errs = append(errs, a.check(fmt.Sprintf("metadata[%d]", i))...)
	}
	for i, e := range rc.Entities {
		path := fmt.Sprintf("entities[%d]", i)
		if e.Type == "" {
			errs = append(errs, fieldErr(ErrTypeUnset, "%s", path))
		}
		if n := e.Count.set(); n != 1 {
			errs = append(errs, fieldErr(ErrCountAmbiguous, "%s.count", path))
		}
		for j, a := range e.Attributes {
			errs = append(errs, a.check(fmt.Sprintf("%s.attributes[%d]", path, j))...)
		}
	}

	stages := make(map[string]bool, len(rc.Pipeline))
	for i, s := range rc.Pipeline {
		path := fmt.Sprintf("pipeline[%d]", i)
		name, kinds := s.Processor, 0
		if s.Processor != "" {
			kinds++
		}
		if s.Selector != "" {
			kinds++
			name = s.Selector
		}
		if kinds != 1 {
			errs = append(errs, fieldErr(ErrStageAmbiguous, "%s", path))
			continue
		}
		if stages[name] {
			errs = append(errs, fieldErr(fmt.Errorf("duplicate stage name %q", name), "%s", path))
		}
		stages[name] = true
	}

	names := make(map[string]bool, len(rc.Histograms))
	for i, h := range rc.Histograms {
		path := fmt.Sprintf("histograms[%d]", i)
		if h.Name == "" {
			errs = append(errs, fieldErr(ErrNameUnset, "%s", path))
		} else if names[h.Name] {
			errs = append(errs, fieldErr(fmt.Errorf("duplicate histogram name %q", h.Name), "%s", path))
		}
		names[h.Name] = true
		switch h.Kind {
		case "distribution":
			if h.Predicate != "" {
				errs = append(errs, fieldErr(fmt.Errorf("distribution takes no predicate"), "%s", path))
			}
		case "efficiency":
			if h.Predicate == "" {
				errs = append(errs, fieldErr(ErrPredicateUnset, "%s", path))
			}
		default:
			errs = append(errs, fieldErr(fmt.Errorf("%w: %q", ErrUnknownKind, h.Kind), "%s", path))
		}
		if h.Extract == "" {
			errs = append(errs, fieldErr(fmt.Errorf("extract not set"), "%s", path))
		}
		if h.Axis.Bins < 1 {
			errs = append(errs, fieldErr(fmt.Errorf("axis needs at least one bin, got %d", h.Axis.Bins), "%s.axis", path))
		}
		if h.Axis.Lo >= h.Axis.Hi {
			errs = append(errs, fieldErr(fmt.Errorf("axis edges must be ordered, got [%v, %v)", h.Axis.Lo, h.Axis.Hi), "%s.axis", path))
		}
		for v, vals := range h.Vars {
			if len(vals) == 0 {
				errs = append(errs, fieldErr(fmt.Errorf("variable %q has no values", v), "%s.vars", path))
			}
		}
	}

	return errors.Join(errs...)
}

// check validates one attribute declaration under the given path.
func (a AttributeConfig) check(path string) []error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, fieldErr(ErrNameUnset, "%s", path))
	}
	set := 0
	for _, s := range []string{a.Column, a.Expr, a.Delegate} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		errs = append(errs, fieldErr(ErrRuleAmbiguous, "%s", path))
	}
	if len(a.Kwargs) > 0 && a.Delegate == "" {
		errs = append(errs, fieldErr(fmt.Errorf("kwargs need a delegate"), "%s", path))
	}
	switch a.Coerce {
	case "", "int", "float", "bool", "string":
	default:
		errs = append(errs, fieldErr(fmt.Errorf("%w: %q", ErrUnknownCoerce, a.Coerce), "%s", path))
	}
	return errs
}

// set counts how many of the count variants are declared.
func (c CountConfig) set() int {
	n := 0
	if c.Value != nil {
		n++
	}
	if c.Column != "" {
		n++
	}
	if c.Expr != "" {
		n++
	}
	return n
}
