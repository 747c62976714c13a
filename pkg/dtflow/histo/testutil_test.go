package histo_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/histo"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// muonRows returns six records of generator muon kinematics with the
// trigger decision per muon. Values land in distinct bins of ptAxis.
func muonRows() []source.Row {
	return []source.Row{
		{"mu_pt": []float64{15, 25}, "mu_trig": []bool{true, false}},
		{"mu_pt": []float64{35}, "mu_trig": []bool{true}},
		{"mu_pt": []float64{}, "mu_trig": []bool{}},
		{"mu_pt": []float64{45, 55, 65}, "mu_trig": []bool{false, true, true}},
		{"mu_pt": []float64{75}, "mu_trig": []bool{false}},
		{"mu_pt": []float64{85, 5}, "mu_trig": []bool{true, true}},
	}
}

func muonSchema() dtflow.Schema {
	return dtflow.Schema{
		Entities: []dtflow.EntitySchema{{
			Type:  "genmuons",
			Count: dtflow.CountColumn("mu_pt"),
			Attributes: []dtflow.Attribute{
				{Name: "pt", Rule: dtflow.Column("mu_pt")},
				{Name: "trig", Rule: dtflow.Column("mu_trig")},
			},
		}},
	}
}

func ptAxis() histo.Axis { return histo.NewAxis(10, 0, 100) }

// muonPt extracts every muon's transverse momentum.
func muonPt(ev *dtflow.Event) ([]float64, error) {
	var out []float64
	for _, mu := range ev.Collection("genmuons") {
		v, ok := mu.Float("pt")
		if !ok {
			return nil, fmt.Errorf("muon %d has no pt", mu.Index())
		}
		out = append(out, v)
	}
	return out, nil
}

// muonTriggered flags, per muon, whether the trigger fired.
func muonTriggered(ev *dtflow.Event) ([]bool, error) {
	var out []bool
	for _, mu := range ev.Collection("genmuons") {
		v, ok := mu.Bool("trig")
		if !ok {
			return nil, fmt.Errorf("muon %d has no trigger flag", mu.Index())
		}
		out = append(out, v)
	}
	return out, nil
}

func sampleDefs() []histo.Def {
	return []histo.Def{
		histo.Distribution("muon_pt", ptAxis(), muonPt),
		histo.Efficiency("muon_trig_eff", ptAxis(), muonPt, muonTriggered),
	}
}

// buildEvents materializes every row, bypassing any pipeline.
func buildEvents(t *testing.T, rows []source.Row) []*dtflow.Event {
	t.Helper()
	b, err := dtflow.NewBuilder(muonSchema())
	require.NoError(t, err)
	seq := dtflow.NewSequence(source.NewMemory(rows...), b, nil)
	evs := make([]*dtflow.Event, seq.Len())
	for i := range evs {
		ev, err := seq.Get(i)
		require.NoError(t, err)
		evs[i] = ev
	}
	return evs
}

// fillAll folds the given events into fresh storage.
func fillAll(t *testing.T, defs []histo.Def, evs []*dtflow.Event) *histo.Result {
	t.Helper()
	agg, err := histo.NewAggregator(defs...)
	require.NoError(t, err)
	for _, ev := range evs {
		agg.Fill(ev)
	}
	return agg.Result()
}

// newFactory opens fresh sequences over the rows, one independent
// builder and source per call.
func newFactory(rows []source.Row, pipe *dtflow.Pipeline) histo.SequenceFactory {
	return func() (*dtflow.Sequence, io.Closer, error) {
		b, err := dtflow.NewBuilder(muonSchema())
		if err != nil {
			return nil, nil, err
		}
		return dtflow.NewSequence(source.NewMemory(rows...), b, pipe), nil, nil
	}
}

// faultySource fails every read inside [failLo, failHi).
type faultySource struct {
	inner  *source.MemorySource
	failLo int
	failHi int
}

func newFaultySource(rows []source.Row, failLo, failHi int) *faultySource {
	return &faultySource{inner: source.NewMemory(rows...), failLo: failLo, failHi: failHi}
}

func (s *faultySource) Len() int { return s.inner.Len() }

func (s *faultySource) Read(i int) (source.Record, error) {
	if i >= s.failLo && i < s.failHi {
		return nil, fmt.Errorf("read record %d: corrupt block", i)
	}
	return s.inner.Read(i)
}

// assertSameCounts requires bin-for-bin equality of two results.
func assertSameCounts(t *testing.T, want, got *histo.Result) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	for _, name := range want.Names() {
		w, _ := want.Histogram(name)
		g, _ := got.Histogram(name)
		require.Equal(t, w.Kind, g.Kind, "kind of %s", name)
		require.Equal(t, w.Disabled, g.Disabled, "disabled state of %s", name)
		switch w.Kind {
		case histo.KindDistribution:
			assertSameBins(t, name, w.Dist, g.Dist)
		case histo.KindEfficiency:
			assertSameBins(t, name+" num", w.Num, g.Num)
			assertSameBins(t, name+" den", w.Den, g.Den)
		}
	}
}

func assertSameBins(t *testing.T, label string, want, got *histo.H1) {
	t.Helper()
	require.Equal(t, want.Axis(), got.Axis(), "%s axis", label)
	require.Equal(t, want.Entries(), got.Entries(), "%s entries", label)
	for i := 0; i <= want.Axis().Bins+1; i++ {
		require.Equal(t, want.BinContent(i), got.BinContent(i), "%s bin %d", label, i)
	}
}
