/*
Package config loads run configurations: which entity collections to
materialize from a record source, how to refine and select events, and
which histograms to fill.

# Two layers

The generic layer is Config, a typed view over map[string]any for
loader sections and delegate kwargs:

	kw := config.New(kwargs)
	conv := kw.Float("conv", 65536.0/0.5)

The typed layer is RunConfig, the YAML document describing one fill
run:

	sample: zmu_pu200
	entities:
	  - type: genmuons
	    count: { column: mu_nGenMuons }
	    attributes:
	      - name: pt
	        column: mu_pt
	      - name: quality
	        expr: "pt > 20"
	    sort_by: pt
	    descending: true
	pipeline:
	  - selector: has_muons
	histograms:
	  - name: muon_pt_MB${st}
	    kind: distribution
	    axis: { bins: 20, lo: 0, hi: 100 }
	    extract: muon_pt_mb${st}
	    vars: { st: [1, 2, 3, 4] }

# Names, not code

Go has no dynamic loading, so a document refers to delegates, pipeline
stages, extractors and predicates by name and the host registers the
callables at startup:

	regs := config.NewRegistries()
	regs.Selectors.Register("has_muons", selectHasMuons)
	regs.Extractors.Register("muon_pt_mb1", muonPtInStation(1))

	rc, err := config.LoadRun("run.yaml")
	if err != nil { ... }
	run, err := rc.Build(regs)

Build validates the document, resolves every name and expands histogram
families; all defects are collected into one error. The returned Run is
immutable: changing configuration means building a new one.
*/
package config
