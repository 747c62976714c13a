// Package registry provides a generic thread-safe name-to-value registry.
//
// Run configurations refer to delegates, pipeline stages and histogram
// extractors by qualified name. Go has no dynamic loading, so the host
// program registers each callable under its name at startup and the
// config loader resolves names against the registry when building a run.
//
// # Basic Usage
//
// Create a registry and register callables:
//
//	delegates := registry.New[string, dtflow.DelegateFunc]()
//	delegates.Register("calib.correct_phi", calib.CorrectPhi)
//	delegates.Register("calib.correct_time", calib.CorrectTime)
//
//	fn, ok := delegates.Get("calib.correct_phi")
//	if !ok {
//	    return fmt.Errorf("unknown delegate")
//	}
//
// # Installing a Library
//
// RegisterMany installs a whole set of bindings in one call:
//
//	metrics.RegisterMany(map[string]match.Metric{
//	    "abs_dphi": match.AbsDeltaPhi("phi", "phi"),
//	    "delta_r":  match.DeltaR("eta", "phi", "eta", "phi"),
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Registration normally happens
// once at startup, after which lookups dominate; the registry uses a
// sync.RWMutex so concurrent lookups do not contend. Range iterates over
// a snapshot, so bindings may be added or removed during iteration
// without affecting the pass in progress:
//
//	reg.Range(func(name string, v Extractor) bool {
//	    if deprecated(name) {
//	        reg.Delete(name) // does not disturb this iteration
//	    }
//	    return true
//	})
package registry
