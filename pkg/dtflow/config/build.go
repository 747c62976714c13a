package config

import (
	"errors"
	"fmt"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/histo"
	"github.com/dtflow/dtflow/pkg/dtflow/registry"
	"github.com/dtflow/dtflow/pkg/dtflow/template"
)

// Registries hold the host's named callables. Run configs refer to
// delegates, pipeline stages, extractors and predicates by name; Build
// resolves those names here. Populate the registries at startup, before
// building any run.
type Registries struct {
	Delegates  *registry.Registry[string, dtflow.DelegateFunc]
	Processors *registry.Registry[string, dtflow.ProcessorFunc]
	Selectors  *registry.Registry[string, dtflow.SelectorFunc]
	Extractors *registry.Registry[string, histo.Extractor]
	Predicates *registry.Registry[string, histo.Predicate]
}

// NewRegistries allocates one empty registry per callable kind.
func NewRegistries() Registries {
	return Registries{
		Delegates:  registry.New[string, dtflow.DelegateFunc](),
		Processors: registry.New[string, dtflow.ProcessorFunc](),
		Selectors:  registry.New[string, dtflow.SelectorFunc](),
		Extractors: registry.New[string, histo.Extractor](),
		Predicates: registry.New[string, histo.Predicate](),
	}
}

// Run is a built run configuration: the live components a host needs to
// materialize, refine and fill. It is immutable in the sense that
// changing configuration means building a new Run.
type Run struct {
	// Sample names the dataset.
	Sample string

	// Schema drives event materialization.
	Schema dtflow.Schema

	// Pipeline refines and selects events; nil when the config declared
	// no stages.
	Pipeline *dtflow.Pipeline

	// Defs are the histogram definitions, families expanded.
	Defs []histo.Def
}

// Build validates the document, resolves every callable name against
// the registries and returns the live components. All problems are
// collected and joined: a config with three bad names reports all
// three.
func (rc *RunConfig) Build(regs Registries) (*Run, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	var errs []error
	var schema dtflow.Schema
	for i, a := range rc.Metadata {
		rule, err := a.rule(regs, fmt.Sprintf("metadata[%d]", i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		schema.Metadata = append(schema.Metadata, dtflow.Attribute{Name: a.Name, Rule: rule})
	}
	for i, e := range rc.Entities {
		es := dtflow.EntitySchema{
			Type:       e.Type,
			Count:      e.Count.rule(),
			Filter:     e.Filter,
			SortBy:     e.SortBy,
			Descending: e.Descending,
		}
		for j, a := range e.Attributes {
			rule, err := a.rule(regs, fmt.Sprintf("entities[%d].attributes[%d]", i, j))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			es.Attributes = append(es.Attributes, dtflow.Attribute{Name: a.Name, Rule: rule})
		}
		schema.Entities = append(schema.Entities, es)
	}

	var pipe *dtflow.Pipeline
	if len(rc.Pipeline) > 0 {
		pipe = dtflow.NewPipeline()
		for i, s := range rc.Pipeline {
			path := fmt.Sprintf("pipeline[%d]", i)
			if s.Processor != "" {
				fn, ok := regs.Processors.Get(s.Processor)
				if !ok {
					errs = append(errs, fieldErr(fmt.Errorf("%w: processor %q", ErrNotRegistered, s.Processor), "%s", path))
					continue
				}
				pipe.AddProcessor(s.Processor, fn)
			} else {
				fn, ok := regs.Selectors.Get(s.Selector)
				if !ok {
					errs = append(errs, fieldErr(fmt.Errorf("%w: selector %q", ErrNotRegistered, s.Selector), "%s", path))
					continue
				}
				pipe.AddSelector(s.Selector, fn)
			}
		}
	}

	defs, defErrs := rc.buildDefs(regs)
	errs = append(errs, defErrs...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Name resolution is clean; now the schema's own semantics
	// (duplicate types, reserved names, expression references) get
	// their say.
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return &Run{Sample: rc.Sample, Schema: schema, Pipeline: pipe, Defs: defs}, nil
}

// rule turns one attribute declaration into a schema rule, resolving a
// delegate name if the declaration carries one.
func (a AttributeConfig) rule(regs Registries, path string) (dtflow.AttributeRule, error) {
	var rule dtflow.AttributeRule
	switch {
	case a.Column != "":
		rule = dtflow.Column(a.Column)
	case a.Expr != "":
		rule = dtflow.Expression(a.Expr)
	case a.Delegate != "":
		fn, ok := regs.Delegates.Get(a.Delegate)
		if !ok {
			return rule, fieldErr(fmt.Errorf("%w: delegate %q", ErrNotRegistered, a.Delegate), "%s", path)
		}
		rule = dtflow.Delegate(fn, a.Kwargs)
	}
	switch a.Coerce {
	case "int":
		rule = rule.Coerce(dtflow.CoerceInt)
	case "float":
		rule = rule.Coerce(dtflow.CoerceFloat)
	case "bool":
		rule = rule.Coerce(dtflow.CoerceBool)
	case "string":
		rule = rule.Coerce(dtflow.CoerceString)
	}
	if a.Required {
		rule = rule.Required()
	}
	return rule, nil
}

// rule turns one count declaration into a schema rule.
func (c CountConfig) rule() dtflow.CountRule {
	switch {
	case c.Value != nil:
		return dtflow.Count(*c.Value)
	case c.Column != "":
		return dtflow.CountColumn(c.Column)
	default:
		return dtflow.CountExpr(c.Expr)
	}
}

// buildDefs expands histogram declarations into definitions: one per
// variable combination, names and callable names expanded together.
func (rc *RunConfig) buildDefs(regs Registries) ([]histo.Def, []error) {
	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	var defs []histo.Def
	var errs []error
	seen := make(map[string]string) // expanded name -> declaration path

	for i, h := range rc.Histograms {
		path := fmt.Sprintf("histograms[%d]", i)
		axis := histo.NewAxis(h.Axis.Bins, h.Axis.Lo, h.Axis.Hi)
		for _, combo := range template.Combinations(h.Vars) {
			name, err := exp.Expand(h.Name, combo)
			if err != nil {
				errs = append(errs, fieldErr(err, "%s", path))
				continue
			}
			if prev, dup := seen[name]; dup {
				errs = append(errs, fieldErr(fmt.Errorf("histogram %q already declared by %s", name, prev), "%s", path))
				continue
			}
			seen[name] = path

			extractName, err := exp.Expand(h.Extract, combo)
			if err != nil {
				errs = append(errs, fieldErr(err, "%s", path))
				continue
			}
			extract, ok := regs.Extractors.Get(extractName)
			if !ok {
				errs = append(errs, fieldErr(fmt.Errorf("%w: extractor %q", ErrNotRegistered, extractName), "%s", path))
				continue
			}

			switch h.Kind {
			case "distribution":
				defs = append(defs, histo.Distribution(name, axis, extract))
			case "efficiency":
				passName, err := exp.Expand(h.Predicate, combo)
				if err != nil {
					errs = append(errs, fieldErr(err, "%s", path))
					continue
				}
				pass, ok := regs.Predicates.Get(passName)
				if !ok {
					errs = append(errs, fieldErr(fmt.Errorf("%w: predicate %q", ErrNotRegistered, passName), "%s", path))
					continue
				}
				defs = append(defs, histo.Efficiency(name, axis, extract, pass))
			}
		}
	}
	return defs, errs
}
