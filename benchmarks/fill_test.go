package benchmarks

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/histo"
	"github.com/dtflow/dtflow/pkg/dtflow/match"
	"github.com/dtflow/dtflow/pkg/dtflow/source"
)

// fillRows is shared across fill benchmarks; sources hold rows by
// reference, so concurrent partitions read it without copying.
var fillRows = makeRows(10000)

var fillSchema = dtflow.Schema{
	Entities: []dtflow.EntitySchema{{
		Type:  "muons",
		Count: dtflow.CountColumn("n_muons"),
		Attributes: []dtflow.Attribute{
			{Name: "pt", Rule: dtflow.Column("muon_pt").Coerce(dtflow.CoerceFloat)},
		},
	}},
}

// BenchmarkSequenceGet measures one indexed materialization.
func BenchmarkSequenceGet(b *testing.B) {
	seq := benchSequence(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := seq.Get(i % len(fillRows)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPipelineRun measures a two-stage pipeline on one event.
func BenchmarkPipelineRun(b *testing.B) {
	pipe := dtflow.NewPipeline().
		AddProcessor("noop", func(ev *dtflow.Event) error { return nil }).
		AddSelector("keep", func(ev *dtflow.Event) (bool, error) { return true, nil })
	ev, err := benchSequence(nil).Get(0)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pipe.Run(ev); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMatch_3x20 correlates 3 muons against 20 segments.
func BenchmarkMatch_3x20(b *testing.B) {
	benchmarkMatch(b, 3, 20)
}

// BenchmarkMatch_10x200 correlates 10 muons against 200 segments.
func BenchmarkMatch_10x200(b *testing.B) {
	benchmarkMatch(b, 10, 200)
}

// BenchmarkH1Fill measures one histogram fill.
func BenchmarkH1Fill(b *testing.B) {
	h := histo.NewH1("pt", histo.NewAxis(100, 0, 100))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Fill(float64(i % 120))
	}
}

// BenchmarkH1Add measures merging two 100-bin histograms.
func BenchmarkH1Add(b *testing.B) {
	h1 := histo.NewH1("pt", histo.NewAxis(100, 0, 100))
	h2 := histo.NewH1("pt", histo.NewAxis(100, 0, 100))
	for i := 0; i < 1000; i++ {
		h1.Fill(float64(i % 100))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := h2.Add(h1); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFill_Workers_1 fills 10k events on one worker.
func BenchmarkFill_Workers_1(b *testing.B) {
	benchmarkFill(b, 1)
}

// BenchmarkFill_Workers_4 fills 10k events on four workers.
func BenchmarkFill_Workers_4(b *testing.B) {
	benchmarkFill(b, 4)
}

// BenchmarkFill_Workers_8 fills 10k events on eight workers.
func BenchmarkFill_Workers_8(b *testing.B) {
	benchmarkFill(b, 8)
}

func benchmarkFill(b *testing.B, workers int) {
	b.Helper()
	defs := []histo.Def{
		histo.Distribution("pt", histo.NewAxis(50, 0, 100), benchPt),
	}
	factory := func() (*dtflow.Sequence, io.Closer, error) {
		return benchSequence(nil), nil, nil
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runner, err := histo.NewRunner(factory, defs, histo.WithWorkers(workers))
		if err != nil {
			b.Fatal(err)
		}
		if _, _, err := runner.Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkMatch(b *testing.B, nMuons, nSegments int) {
	b.Helper()
	matcher := match.Matcher{
		A:          "genmuons",
		B:          "segments",
		ForwardRef: "matched_segments",
		Metric:     match.DeltaR("eta", "phi", "eta", "phi"),
		Window:     0.3,
		Limit:      1,
	}
	ev := matchEvent(nMuons, nSegments)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		matcher.Match(ev)
	}
}

// Helper functions

func makeRows(n int) []source.Row {
	rng := rand.New(rand.NewSource(1))
	rows := make([]source.Row, n)
	for i := range rows {
		m := 1 + rng.Intn(3)
		pts := make([]any, m)
		for j := 0; j < m; j++ {
			pts[j] = rng.Float64() * 100
		}
		rows[i] = source.Row{"n_muons": int64(m), "muon_pt": pts}
	}
	return rows
}

func benchSequence(pipe *dtflow.Pipeline) *dtflow.Sequence {
	return dtflow.NewSequence(source.NewMemory(fillRows...), mustBuilder(fillSchema), pipe)
}

func benchPt(ev *dtflow.Event) ([]float64, error) {
	coll := ev.Collection("muons")
	out := make([]float64, len(coll))
	for i, m := range coll {
		out[i], _ = m.Float("pt")
	}
	return out, nil
}

func matchEvent(nMuons, nSegments int) *dtflow.Event {
	ev := dtflow.NewEvent(0)
	muons := make([]*dtflow.Entity, nMuons)
	for i := range muons {
		m := dtflow.NewEntity("genmuons")
		m.SetAttr("eta", float64(i)*0.4-1.0)
		m.SetAttr("phi", float64(i)*0.9-1.5)
		muons[i] = m
	}
	ev.SetCollection("genmuons", muons)
	segs := make([]*dtflow.Entity, nSegments)
	for i := range segs {
		s := dtflow.NewEntity("segments")
		s.SetAttr("eta", float64(i%10)*0.25-1.0)
		s.SetAttr("phi", float64(i%7)*0.5-1.5)
		segs[i] = s
	}
	ev.SetCollection("segments", segs)
	return ev
}
