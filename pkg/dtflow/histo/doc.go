/*
Package histo declares, fills and merges histograms over event
sequences, including parallel partitioned fills.

# Definitions

A histogram is declared, not subclassed: Distribution counts extracted
values, Efficiency pairs a denominator with a predicate-gated
numerator. Extractors pull values from an event; a scalar quantity is a
one-element slice:

	pt := histo.Distribution("muon_pt", histo.NewAxis(20, 0, 1000),
	    func(ev *dtflow.Event) ([]float64, error) {
	        var out []float64
	        for _, mu := range ev.Collection("genmuons") {
	            if v, ok := mu.Float("pt"); ok {
	                out = append(out, v)
	            }
	        }
	        return out, nil
	    })

	matched := histo.Efficiency("seg_match_eff", histo.NewAxis(10, -3, 3),
	    segmentEta, segmentHasMatch)

An efficiency's extractor and predicate must agree on shape per event;
the first mismatch disables that histogram for the rest of the fill and
is reported once, while every other histogram keeps filling.

Families expand templated definitions over variable combinations:

	defs, err := histo.Family("seg_phi_MB${st}",
	    map[string][]any{"st": {1, 2, 3, 4}},
	    func(name string, combo map[string]any) histo.Def { ... })

# Filling and merging

An Aggregator owns the storage for one definition set and folds events
into it. Results merge bin-wise, which is associative and commutative:
for any partitioning of a record range into contiguous sub-ranges,
filling the parts independently and merging equals filling the whole
range at once, bin for bin.

# Parallel fills

Runner partitions a record range across workers. Each worker opens its
own sequence through the SequenceFactory, fills private storage, and
completed partitions merge in partition order:

	runner, err := histo.NewRunner(openSequence, defs,
	    histo.WithWorkers(8),
	    histo.WithLogger(logger))
	res, rep, err := runner.Run(ctx)

A partition is all-or-nothing: a worker that cannot complete its range
contributes no counts at all, and the report names it. The Report also
carries rejection counts, per-entity build failures and per-histogram
extraction errors, so completeness is judged without reading logs.

With a snapshot store attached (see the store subpackage), each
completed partition is persisted as it finishes and LoadSnapshots
reassembles a run's result later.
*/
package histo
