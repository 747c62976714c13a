package dtflow

import (
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// Shared fixtures: a miniature chamber readout with segment and muon
// collections per record.

// segmentRows returns three records of raw columnar data.
func segmentRows() []source.Row {
	return []source.Row{
		{
			"event":     int64(1001),
			"lumi":      12.5,
			"seg_phi":   []float64{0.30, 0.10, 0.20},
			"seg_wheel": []int64{1, -2, 0},
			"seg_ok":    []bool{true, true, false},
			"mu_pt":     []float64{45.0, 9.5},
		},
		{
			"event":     int64(1002),
			"lumi":      12.5,
			"seg_phi":   []float64{0.70},
			"seg_wheel": []int64{2},
			"seg_ok":    []bool{true},
			"mu_pt":     []float64{},
		},
		{
			"event":     int64(1003),
			"lumi":      13.0,
			"seg_phi":   []float64{0.50, 0.40},
			"seg_wheel": []int64{-1, -1},
			"seg_ok":    []bool{true, true},
			"mu_pt":     []float64{22.0},
		},
	}
}

// segmentSchema declares metadata plus one segment collection.
func segmentSchema() Schema {
	return Schema{
		Metadata: []Attribute{
			{Name: "event_number", Rule: Column("event")},
			{Name: "lumi", Rule: Column("lumi")},
		},
		Entities: []EntitySchema{{
			Type:  "segments",
			Count: CountColumn("seg_phi"),
			Attributes: []Attribute{
				{Name: "phi", Rule: Column("seg_phi")},
				{Name: "wheel", Rule: Column("seg_wheel").Coerce(CoerceInt)},
				{Name: "ok", Rule: Column("seg_ok")},
			},
		}},
	}
}

// Helper pipeline stages

// makeTrackingProcessor records each run in tracker.
func makeTrackingProcessor(name string, tracker *[]string) ProcessorFunc {
	return func(ev *Event) error {
		*tracker = append(*tracker, name)
		return nil
	}
}

// makeCountingSelector counts its calls and returns a fixed verdict.
func makeCountingSelector(keep bool, calls *int) SelectorFunc {
	return func(ev *Event) (bool, error) {
		*calls++
		return keep, nil
	}
}

// makeFailingProcessor returns the given error for every event.
func makeFailingProcessor(err error) ProcessorFunc {
	return func(ev *Event) error {
		return err
	}
}

// makePanicProcessor panics with the given value.
func makePanicProcessor(value any) ProcessorFunc {
	return func(ev *Event) error {
		panic(value)
	}
}
