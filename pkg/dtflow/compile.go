package dtflow

import (
	"errors"
	"fmt"

	"github.com/dtflow/dtflow/pkg/dtflow/expr"
)

// indexName is the builtin identifier available to every expression: the
// entity's build index inside entity scopes, the record index elsewhere.
const indexName = "index"

type compiledAttr struct {
	name string
	rule AttributeRule
	prog *expr.Expr
}

type compiledCount struct {
	rule CountRule
	prog *expr.Expr
}

type compiledEntity struct {
	typ        string
	count      compiledCount
	attrs      []compiledAttr
	filter     *expr.Expr
	sortBy     *expr.Expr
	descending bool
}

type compiledSchema struct {
	meta     []compiledAttr
	entities []compiledEntity
}

// compileSchema validates the declarative schema and parses every
// expression once. All problems are collected and joined, so a rejected
// schema reports the full list rather than the first hit.
func compileSchema(s Schema) (*compiledSchema, error) {
	var errs []error
	cs := &compiledSchema{}

	metaPos := firstPositions(s.Metadata)
	for i, attr := range s.Metadata {
		ca, attrErrs := compileMetaAttr(attr, i, metaPos)
		for _, err := range attrErrs {
			errs = append(errs, &SchemaError{Attribute: attr.Name, Err: err})
		}
		cs.meta = append(cs.meta, ca)
	}

	seenTypes := make(map[string]bool)
	for j, es := range s.Entities {
		label := es.Type
		if label == "" {
			label = fmt.Sprintf("entities[%d]", j)
			errs = append(errs, &SchemaError{Entity: label, Err: errors.New("entity type is empty")})
		}
		if seenTypes[es.Type] {
			errs = append(errs, &SchemaError{Entity: label, Err: fmt.Errorf("%w: %s", ErrDuplicateType, es.Type)})
		}
		seenTypes[es.Type] = true

		ce, entityErrs := compileEntity(es, label, metaPos)
		errs = append(errs, entityErrs...)
		cs.entities = append(cs.entities, ce)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cs, nil
}

// firstPositions maps each attribute name to its first declaration
// position. Later duplicates keep the first position so reference checks
// resolve the way evaluation will.
func firstPositions(attrs []Attribute) map[string]int {
	pos := make(map[string]int, len(attrs))
	for i, attr := range attrs {
		if _, seen := pos[attr.Name]; !seen && attr.Name != "" {
			pos[attr.Name] = i
		}
	}
	return pos
}

func compileMetaAttr(attr Attribute, pos int, metaPos map[string]int) (compiledAttr, []error) {
	errs := checkAttrName(attr.Name, pos, metaPos)
	ca := compiledAttr{name: attr.Name, rule: attr.Rule}

	switch attr.Rule.kind {
	case ruleUnset:
		errs = append(errs, ErrRuleUnset)
	case ruleColumn:
		if attr.Rule.column == "" {
			errs = append(errs, errors.New("column name is empty"))
		}
	case ruleExpr:
		prog, err := expr.Parse(attr.Rule.exprSrc)
		if err != nil {
			errs = append(errs, err)
			break
		}
		ca.prog = prog
		for _, v := range prog.Vars() {
			if v == indexName {
				continue
			}
			p, known := metaPos[v]
			switch {
			case !known:
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownReference, v))
			case p >= pos:
				errs = append(errs, fmt.Errorf("%w: %s", ErrForwardReference, v))
			}
		}
	case ruleDelegate:
		errs = append(errs, errors.New("delegate rules are not allowed in metadata"))
	}
	return ca, errs
}

func compileEntity(es EntitySchema, label string, metaPos map[string]int) (compiledEntity, []error) {
	var errs []error
	ce := compiledEntity{typ: es.Type, descending: es.Descending}
	fail := func(attribute string, err error) {
		errs = append(errs, &SchemaError{Entity: label, Attribute: attribute, Err: err})
	}

	// Count rule. Its expressions see metadata and the record index only,
	// since no entity exists yet.
	ce.count.rule = es.Count
	switch es.Count.kind {
	case countUnset:
		fail("", ErrCountUnset)
	case countLiteral:
		if es.Count.n < 0 {
			fail("", fmt.Errorf("negative literal count %d", es.Count.n))
		}
	case countColumn:
		if es.Count.column == "" {
			fail("", errors.New("count column name is empty"))
		}
	case countExpr:
		prog, err := expr.Parse(es.Count.exprSrc)
		if err != nil {
			fail("", err)
			break
		}
		ce.count.prog = prog
		for _, v := range prog.Vars() {
			if v == indexName {
				continue
			}
			if _, known := metaPos[v]; !known {
				fail("", fmt.Errorf("count: %w: %s", ErrUnknownReference, v))
			}
		}
	}

	attrPos := firstPositions(es.Attributes)
	for i, attr := range es.Attributes {
		ca := compiledAttr{name: attr.Name, rule: attr.Rule}

		for _, err := range checkAttrName(attr.Name, i, attrPos) {
			fail(attr.Name, err)
		}

		switch attr.Rule.kind {
		case ruleUnset:
			fail(attr.Name, ErrRuleUnset)
		case ruleColumn:
			if attr.Rule.column == "" {
				fail(attr.Name, errors.New("column name is empty"))
			}
		case ruleExpr:
			prog, err := expr.Parse(attr.Rule.exprSrc)
			if err != nil {
				fail(attr.Name, err)
				break
			}
			ca.prog = prog
			for _, err := range checkEntityRefs(prog, i, attrPos, metaPos) {
				fail(attr.Name, err)
			}
		case ruleDelegate:
			if attr.Rule.delegate == nil {
				fail(attr.Name, errors.New("delegate function is nil"))
			}
		}
		ce.attrs = append(ce.attrs, ca)
	}

	// Filter and sort run after the full build, so every attribute is in
	// scope.
	allAttrs := len(es.Attributes)
	if es.Filter != "" {
		prog, err := expr.Parse(es.Filter)
		if err != nil {
			fail("", fmt.Errorf("filter: %w", err))
		} else {
			ce.filter = prog
			for _, rerr := range checkEntityRefs(prog, allAttrs, attrPos, metaPos) {
				fail("", fmt.Errorf("filter: %w", rerr))
			}
		}
	}
	if es.SortBy != "" {
		prog, err := expr.Parse(es.SortBy)
		if err != nil {
			fail("", fmt.Errorf("sort: %w", err))
		} else {
			ce.sortBy = prog
			for _, rerr := range checkEntityRefs(prog, allAttrs, attrPos, metaPos) {
				fail("", fmt.Errorf("sort: %w", rerr))
			}
		}
	}

	return ce, errs
}

func checkAttrName(name string, pos int, firstPos map[string]int) []error {
	var errs []error
	if name == "" {
		errs = append(errs, errors.New("attribute name is empty"))
	}
	if name == indexName {
		errs = append(errs, ErrReservedName)
	}
	if p, seen := firstPos[name]; seen && p != pos {
		errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateAttribute, name))
	}
	return errs
}

// checkEntityRefs validates the free identifiers of an entity-scope
// expression evaluated at attribute position pos: attributes declared
// before pos, any event metadata, and the builtin index are in scope.
// An attribute declared at or after pos is a forward reference unless
// metadata carries the same name, in which case evaluation falls through
// to the metadata value.
func checkEntityRefs(prog *expr.Expr, pos int, attrPos, metaPos map[string]int) []error {
	var errs []error
	for _, v := range prog.Vars() {
		if v == indexName {
			continue
		}
		_, isMeta := metaPos[v]
		p, isAttr := attrPos[v]
		switch {
		case isAttr && p < pos:
		case isMeta:
		case isAttr:
			errs = append(errs, fmt.Errorf("%w: %s", ErrForwardReference, v))
		default:
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownReference, v))
		}
	}
	return errs
}
