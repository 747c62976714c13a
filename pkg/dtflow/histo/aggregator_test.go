package histo_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/histo"
)

func TestNewAggregator_ValidatesDefinitions(t *testing.T) {
	t.Run("collects every defect", func(t *testing.T) {
		_, err := histo.NewAggregator(
			histo.Def{}, // zero value
			histo.Distribution("", ptAxis(), muonPt),
			histo.Distribution("pt", ptAxis(), nil),
			histo.Efficiency("eff", ptAxis(), muonPt, nil),
			histo.Distribution("dup", ptAxis(), muonPt),
			histo.Distribution("dup", ptAxis(), muonPt),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, histo.ErrDefUnset)
		assert.ErrorIs(t, err, histo.ErrNameUnset)
		assert.ErrorIs(t, err, histo.ErrExtractorUnset)
		assert.ErrorIs(t, err, histo.ErrPredicateUnset)
		assert.ErrorIs(t, err, histo.ErrDuplicateName)
	})

	t.Run("names the defective histogram", func(t *testing.T) {
		_, err := histo.NewAggregator(histo.Distribution("muon_eta", ptAxis(), nil))
		var cerr *histo.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "muon_eta", cerr.Histogram)
	})

	t.Run("valid definitions pass", func(t *testing.T) {
		agg, err := histo.NewAggregator(sampleDefs()...)
		require.NoError(t, err)
		assert.Equal(t, []string{"muon_pt", "muon_trig_eff"}, agg.Result().Names())
	})
}

func TestAggregator_DistributionFill(t *testing.T) {
	evs := buildEvents(t, muonRows())
	res := fillAll(t, sampleDefs(), evs)

	s, ok := res.Histogram("muon_pt")
	require.True(t, ok)
	require.Equal(t, histo.KindDistribution, s.Kind)

	// Nine muons across the six events, one per data bin 1..9.
	assert.Equal(t, int64(9), s.Dist.Entries())
	for bin := 1; bin <= 9; bin++ {
		assert.Equal(t, 1.0, s.Dist.BinContent(bin), "bin %d", bin)
	}
	assert.Equal(t, 0.0, s.Dist.BinContent(10))
	assert.Equal(t, 0.0, s.Dist.Underflow())
	assert.Equal(t, 0.0, s.Dist.Overflow())
}

func TestAggregator_EfficiencyFill(t *testing.T) {
	// One event, two values: the denominator takes both, the numerator
	// only the value whose flag is true.
	axis := ptAxis()
	extract := func(*dtflow.Event) ([]float64, error) { return []float64{10, 20}, nil }
	pass := func(*dtflow.Event) ([]bool, error) { return []bool{true, false}, nil }

	agg, err := histo.NewAggregator(histo.Efficiency("eff", axis, extract, pass))
	require.NoError(t, err)
	agg.Fill(dtflow.NewEvent(0))

	s, _ := agg.Result().Histogram("eff")
	assert.Equal(t, 1.0, s.Den.BinContent(axis.FindBin(10)))
	assert.Equal(t, 1.0, s.Den.BinContent(axis.FindBin(20)))
	assert.Equal(t, 1.0, s.Num.BinContent(axis.FindBin(10)))
	assert.Equal(t, 0.0, s.Num.BinContent(axis.FindBin(20)))
	assert.Equal(t, int64(2), s.Den.Entries())
	assert.Equal(t, int64(1), s.Num.Entries())
}

func TestAggregator_EfficiencyOverMuons(t *testing.T) {
	evs := buildEvents(t, muonRows())
	res := fillAll(t, sampleDefs(), evs)

	s, ok := res.Histogram("muon_trig_eff")
	require.True(t, ok)
	require.Equal(t, histo.KindEfficiency, s.Kind)

	// Every muon enters the denominator; the six triggered ones enter
	// the numerator.
	assert.Equal(t, int64(9), s.Den.Entries())
	assert.Equal(t, int64(6), s.Num.Entries())
	for bin := 0; bin <= ptAxis().Bins+1; bin++ {
		assert.LessOrEqual(t, s.Num.BinContent(bin), s.Den.BinContent(bin), "bin %d", bin)
	}
}

func TestAggregator_NilEventIsNoOp(t *testing.T) {
	agg, err := histo.NewAggregator(sampleDefs()...)
	require.NoError(t, err)

	agg.Fill(nil)

	for _, name := range agg.Result().Names() {
		s, _ := agg.Result().Histogram(name)
		assert.Equal(t, int64(0), s.Entries(), "%s stays empty", name)
	}
	assert.Empty(t, agg.ExtractErrors())
}

func TestAggregator_ExtractErrorSkipsEventForThatHistogram(t *testing.T) {
	evs := buildEvents(t, muonRows())

	// Fails on the first event only; later events fill normally.
	flaky := func(ev *dtflow.Event) ([]float64, error) {
		if ev.Index() == 0 {
			return nil, fmt.Errorf("branch not readable")
		}
		return muonPt(ev)
	}
	agg, err := histo.NewAggregator(
		histo.Distribution("muon_pt", ptAxis(), muonPt),
		histo.Distribution("flaky_pt", ptAxis(), flaky),
	)
	require.NoError(t, err)
	for _, ev := range evs {
		agg.Fill(ev)
	}

	healthy, _ := agg.Result().Histogram("muon_pt")
	skipped, _ := agg.Result().Histogram("flaky_pt")

	// The healthy histogram saw all nine muons; the flaky one lost the
	// first event's two.
	assert.Equal(t, int64(9), healthy.Dist.Entries())
	assert.Equal(t, int64(7), skipped.Dist.Entries())
	assert.Equal(t, map[string]int64{"flaky_pt": 1}, agg.ExtractErrors())
	assert.Empty(t, agg.Result().Disabled(), "an extraction error never disables")
}

func TestAggregator_PredicateErrorCounted(t *testing.T) {
	evs := buildEvents(t, muonRows())

	badPass := func(*dtflow.Event) ([]bool, error) {
		return nil, fmt.Errorf("trigger branch missing")
	}
	agg, err := histo.NewAggregator(histo.Efficiency("eff", ptAxis(), muonPt, badPass))
	require.NoError(t, err)
	for _, ev := range evs {
		agg.Fill(ev)
	}

	s, _ := agg.Result().Histogram("eff")
	assert.Equal(t, int64(0), s.Den.Entries(), "a predicate error skips the whole event")
	assert.Equal(t, int64(0), s.Num.Entries())
	assert.Equal(t, map[string]int64{"eff": 6}, agg.ExtractErrors())
}

func TestAggregator_ShapeMismatchDisables(t *testing.T) {
	evs := buildEvents(t, muonRows())

	// Drops one flag on event 3, where three muons were extracted.
	lopsided := func(ev *dtflow.Event) ([]bool, error) {
		flags, err := muonTriggered(ev)
		if err != nil {
			return nil, err
		}
		if ev.Index() == 3 {
			flags = flags[:len(flags)-1]
		}
		return flags, nil
	}
	agg, err := histo.NewAggregator(
		histo.Distribution("muon_pt", ptAxis(), muonPt),
		histo.Efficiency("lopsided_eff", ptAxis(), muonPt, lopsided),
	)
	require.NoError(t, err)
	for _, ev := range evs {
		agg.Fill(ev)
	}

	disabled := agg.Result().Disabled()
	require.Contains(t, disabled, "lopsided_eff")
	assert.Contains(t, disabled["lopsided_eff"], "3 values, 2 flags")

	// Events 0 and 1 were folded in before the mismatch and are kept;
	// the mismatching event and everything after contribute nothing.
	s, _ := agg.Result().Histogram("lopsided_eff")
	assert.Equal(t, int64(3), s.Den.Entries())

	// The sibling histogram is untouched.
	healthy, _ := agg.Result().Histogram("muon_pt")
	assert.Equal(t, int64(9), healthy.Dist.Entries())
	assert.Empty(t, agg.ExtractErrors(), "a shape mismatch is a defect, not an extraction error")
}

func TestAggregator_EmptyExtractionContributesNothing(t *testing.T) {
	ev := dtflow.NewEvent(0)
	empty := func(*dtflow.Event) ([]float64, error) { return nil, nil }

	agg, err := histo.NewAggregator(histo.Distribution("none", ptAxis(), empty))
	require.NoError(t, err)
	agg.Fill(ev)

	s, _ := agg.Result().Histogram("none")
	assert.Equal(t, int64(0), s.Dist.Entries())
	assert.Empty(t, agg.ExtractErrors())
}

func TestAggregator_ErrorsAreJoined(t *testing.T) {
	_, err := histo.NewAggregator(histo.Def{}, histo.Distribution("", ptAxis(), muonPt))
	require.Error(t, err)

	// Both defects surface through errors.Is on the joined error.
	assert.True(t, errors.Is(err, histo.ErrDefUnset) && errors.Is(err, histo.ErrNameUnset))
}
