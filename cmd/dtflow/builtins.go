package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/config"
	"github.com/dtflow/dtflow/pkg/dtflow/expr"
	"github.com/dtflow/dtflow/pkg/dtflow/histo"
	"github.com/dtflow/dtflow/pkg/dtflow/match"
	"github.com/dtflow/dtflow/pkg/dtflow/template"
)

// Matching windows for the genmuon-to-segment correlation: azimuthal
// acceptance in radians, pseudorapidity gate in eta units.
const (
	segMatchMaxDPhi = 0.1
	segMatchMaxDEta = 0.3
)

// registerBuiltins installs the standard callables every run config can
// name without linking a host binary of its own. Analyses needing more
// embed the library and register theirs the same way.
func registerBuiltins(regs config.Registries) {
	segMatcher := match.Matcher{
		A:          "genmuons",
		B:          "segments",
		ForwardRef: "matched_segments",
		ReverseRef: "matched_genmuons",
		Metric: match.Within(match.AbsDiff("eta", "eta"), segMatchMaxDEta,
			match.AbsDeltaPhi("phi", "phi")),
		Window: segMatchMaxDPhi,
	}
	regs.Processors.Register("match_segments", segMatcher.Processor())
	regs.Processors.Register("remove_showers", removeShowers)

	regs.Selectors.Register("has_genmuons", hasGenMuons)
	regs.Selectors.Register("two_genmuons", twoGenMuons)
	regs.Selectors.Register("baseline", baseline)

	regs.Delegates.Register("normalize_sector", normalizeSector)
}

// baseline keeps events with at least one generator muon that matched
// an offline segment. It expects match_segments to have run earlier in
// the pipeline.
func baseline(ev *dtflow.Event) (bool, error) {
	for _, gm := range ev.Collection("genmuons") {
		if len(gm.Refs("matched_segments")) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// hasGenMuons keeps events with at least one generator muon.
func hasGenMuons(ev *dtflow.Event) (bool, error) {
	return len(ev.Collection("genmuons")) > 0, nil
}

// twoGenMuons keeps events with at least two generator muons.
func twoGenMuons(ev *dtflow.Event) (bool, error) {
	return len(ev.Collection("genmuons")) > 1, nil
}

// removeShowers clears the trigger-primitive references of segments
// matched to a muon that showered, keeping shower-contaminated matches
// out of the efficiencies downstream.
func removeShowers(ev *dtflow.Event) error {
	for _, gm := range ev.Collection("genmuons") {
		showered, _ := gm.Bool("showered")
		if !showered {
			continue
		}
		for _, ref := range gm.Refs("matched_segments") {
			if seg, ok := ev.Resolve(ref); ok {
				seg.SetRefs("matched_tps", nil)
			}
		}
	}
	return nil
}

// normalizeSector folds the doubled sectors 13 and 14 onto their
// physical chambers 4 and 10. The kwarg "attr" names the
// already-resolved attribute carrying the raw sector; it defaults to
// "sector".
func normalizeSector(e *dtflow.Entity, kwargs map[string]any) (any, error) {
	attr := "sector"
	if a, ok := kwargs["attr"].(string); ok && a != "" {
		attr = a
	}
	raw, ok := e.Int(attr)
	if !ok {
		return nil, fmt.Errorf("attribute %q is not an integer", attr)
	}
	return match.NormalizeSector(raw), nil
}

// registerDerived synthesizes extractors and predicates for the dotted
// names a config uses, so quantities that are plain reads need no host
// code:
//
//	meta.<name>       the event metadata value
//	<type>.count      the collection size
//	<type>.n.<ref>    per entity, how many references <ref> holds
//	<type>.<attr>     per entity, the attribute value (NaN where unset)
//	<type>.has.<ref>  predicate: per entity, <ref> is non-empty
//
// Histogram declarations expand their ${var} placeholders before the
// names resolve, so derived names work inside families too. Explicitly
// registered names always win over derivation.
func registerDerived(rc *config.RunConfig, regs config.Registries) {
	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	for _, h := range rc.Histograms {
		for _, combo := range template.Combinations(h.Vars) {
			if name, err := exp.Expand(h.Extract, combo); err == nil {
				if !regs.Extractors.Has(name) {
					if fn := deriveExtractor(name); fn != nil {
						regs.Extractors.Register(name, fn)
					}
				}
			}
			if h.Predicate == "" {
				continue
			}
			if name, err := exp.Expand(h.Predicate, combo); err == nil {
				if !regs.Predicates.Has(name) {
					if fn := derivePredicate(name); fn != nil {
						regs.Predicates.Register(name, fn)
					}
				}
			}
		}
	}
}

// deriveExtractor builds the extractor a dotted name describes, nil
// when the name has no derivable shape.
func deriveExtractor(name string) histo.Extractor {
	head, rest, ok := strings.Cut(name, ".")
	if !ok || head == "" || rest == "" {
		return nil
	}
	if head == "meta" {
		return histo.Scalar(func(ev *dtflow.Event) (float64, error) {
			v, ok := ev.Meta(rest)
			if !ok {
				return 0, fmt.Errorf("no metadata %q", rest)
			}
			f, ok := expr.ToFloat64(v)
			if !ok {
				return 0, fmt.Errorf("metadata %q is not numeric", rest)
			}
			return f, nil
		})
	}
	typ := head
	if rest == "count" {
		return histo.Scalar(func(ev *dtflow.Event) (float64, error) {
			return float64(len(ev.Collection(typ))), nil
		})
	}
	if refName, isRefCount := strings.CutPrefix(rest, "n."); isRefCount && refName != "" {
		return func(ev *dtflow.Event) ([]float64, error) {
			coll := ev.Collection(typ)
			out := make([]float64, len(coll))
			for i, e := range coll {
				out[i] = float64(len(e.Refs(refName)))
			}
			return out, nil
		}
	}
	if strings.HasPrefix(rest, "has.") {
		return nil // predicate shape
	}
	attr := rest
	return func(ev *dtflow.Event) ([]float64, error) {
		coll := ev.Collection(typ)
		out := make([]float64, len(coll))
		for i, e := range coll {
			if f, ok := e.Float(attr); ok {
				out[i] = f
			} else {
				out[i] = math.NaN() // lands in no bin, keeps index parity
			}
		}
		return out, nil
	}
}

// derivePredicate builds the <type>.has.<ref> predicate, nil when the
// name has another shape.
func derivePredicate(name string) histo.Predicate {
	typ, rest, ok := strings.Cut(name, ".")
	if !ok || typ == "" {
		return nil
	}
	refName, hasRef := strings.CutPrefix(rest, "has.")
	if !hasRef || refName == "" {
		return nil
	}
	return func(ev *dtflow.Event) ([]bool, error) {
		coll := ev.Collection(typ)
		out := make([]bool, len(coll))
		for i, e := range coll {
			out[i] = len(e.Refs(refName)) > 0
		}
		return out, nil
	}
}
