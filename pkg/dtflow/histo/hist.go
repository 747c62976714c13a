package histo

import (
	"encoding/json"
	"fmt"
	"math"
)

// H1 is a one-dimensional weighted histogram: per-bin counts and
// squared-weight sums over an Axis, including underflow and overflow.
// Bin contents are plain numbers, so two histograms over the same axis
// merge by bin-wise addition, which is associative and commutative.
//
// H1 is not safe for concurrent use. Parallel fills run one H1 per
// worker and merge afterwards.
type H1 struct {
	name    string
	axis    Axis
	counts  []float64
	sumw2   []float64
	entries int64
}

// NewH1 returns an empty histogram over the given axis. Panics when the
// axis is invalid.
func NewH1(name string, axis Axis) *H1 {
	if err := axis.check(); err != nil {
		panic("histo: " + err.Error())
	}
	return &H1{
		name:   name,
		axis:   axis,
		counts: make([]float64, axis.Bins+2),
		sumw2:  make([]float64, axis.Bins+2),
	}
}

// Name returns the histogram name.
func (h *H1) Name() string { return h.name }

// Axis returns the histogram's binning.
func (h *H1) Axis() Axis { return h.axis }

// Fill adds one sample with weight 1. NaN samples belong to no bin and
// are dropped without counting an entry; infinities land in underflow
// or overflow.
func (h *H1) Fill(x float64) {
	h.FillW(x, 1)
}

// FillW adds one sample with the given weight.
func (h *H1) FillW(x, w float64) {
	bin := h.axis.FindBin(x)
	if bin < 0 {
		return
	}
	h.counts[bin] += w
	h.sumw2[bin] += w * w
	h.entries++
}

// Entries returns the number of Fill calls that landed in any bin,
// underflow and overflow included.
func (h *H1) Entries() int64 { return h.entries }

// BinContent returns the summed weight of bin i in 0..Bins+1.
func (h *H1) BinContent(i int) float64 { return h.counts[i] }

// BinError returns the Poisson-style error of bin i, the square root of
// its summed squared weights.
func (h *H1) BinError(i int) float64 { return math.Sqrt(h.sumw2[i]) }

// Underflow returns the summed weight below the axis range.
func (h *H1) Underflow() float64 { return h.counts[0] }

// Overflow returns the summed weight above the axis range.
func (h *H1) Overflow() float64 { return h.counts[h.axis.Bins+1] }

// Integral returns the summed weight of the data bins, excluding
// underflow and overflow.
func (h *H1) Integral() float64 {
	var sum float64
	for i := 1; i <= h.axis.Bins; i++ {
		sum += h.counts[i]
	}
	return sum
}

// Add merges other into h bin-wise. The axes must be identical.
func (h *H1) Add(other *H1) error {
	if other.axis != h.axis {
		return fmt.Errorf("histogram %q: axis mismatch: %v vs %v", h.name, h.axis, other.axis)
	}
	for i := range h.counts {
		h.counts[i] += other.counts[i]
		h.sumw2[i] += other.sumw2[i]
	}
	h.entries += other.entries
	return nil
}

// Clone returns an independent copy of h.
func (h *H1) Clone() *H1 {
	out := NewH1(h.name, h.axis)
	copy(out.counts, h.counts)
	copy(out.sumw2, h.sumw2)
	out.entries = h.entries
	return out
}

// h1JSON is the wire shape of an H1 inside snapshots.
type h1JSON struct {
	Name    string    `json:"name"`
	Axis    Axis      `json:"axis"`
	Counts  []float64 `json:"counts"`
	Sumw2   []float64 `json:"sumw2"`
	Entries int64     `json:"entries"`
}

// MarshalJSON implements json.Marshaler.
func (h *H1) MarshalJSON() ([]byte, error) {
	return json.Marshal(h1JSON{
		Name:    h.name,
		Axis:    h.axis,
		Counts:  h.counts,
		Sumw2:   h.sumw2,
		Entries: h.entries,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *H1) UnmarshalJSON(data []byte) error {
	var w h1JSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := w.Axis.check(); err != nil {
		return fmt.Errorf("histogram %q: %w", w.Name, err)
	}
	if len(w.Counts) != w.Axis.Bins+2 || len(w.Sumw2) != w.Axis.Bins+2 {
		return fmt.Errorf("histogram %q: %d bins need %d slots, got %d counts and %d sumw2",
			w.Name, w.Axis.Bins, w.Axis.Bins+2, len(w.Counts), len(w.Sumw2))
	}
	h.name = w.Name
	h.axis = w.Axis
	h.counts = w.Counts
	h.sumw2 = w.Sumw2
	h.entries = w.Entries
	return nil
}
