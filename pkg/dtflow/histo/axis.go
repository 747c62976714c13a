package histo

import (
	"fmt"
	"math"
)

// Axis is a uniform binning of [Lo, Hi) into Bins equal-width data
// bins, flanked by an underflow bin below Lo and an overflow bin above
// Hi. Bin numbering follows the usual convention: 0 is underflow, 1
// through Bins are data bins, Bins+1 is overflow.
type Axis struct {
	Bins int     `json:"bins"`
	Lo   float64 `json:"lo"`
	Hi   float64 `json:"hi"`
}

// NewAxis returns a uniform axis. Panics when bins is not positive or
// the edges are not ordered, finite numbers.
func NewAxis(bins int, lo, hi float64) Axis {
	a := Axis{Bins: bins, Lo: lo, Hi: hi}
	if err := a.check(); err != nil {
		panic("histo: " + err.Error())
	}
	return a
}

func (a Axis) check() error {
	if a.Bins < 1 {
		return fmt.Errorf("axis needs at least one bin, got %d", a.Bins)
	}
	if math.IsNaN(a.Lo) || math.IsInf(a.Lo, 0) || math.IsNaN(a.Hi) || math.IsInf(a.Hi, 0) {
		return fmt.Errorf("axis edges must be finite, got [%v, %v)", a.Lo, a.Hi)
	}
	if a.Lo >= a.Hi {
		return fmt.Errorf("axis edges must be ordered, got [%v, %v)", a.Lo, a.Hi)
	}
	return nil
}

// Width returns the data bin width.
func (a Axis) Width() float64 {
	return (a.Hi - a.Lo) / float64(a.Bins)
}

// FindBin returns the bin number holding x: 0 for underflow, 1..Bins
// for data, Bins+1 for overflow and -1 for NaN, which belongs to no
// bin.
func (a Axis) FindBin(x float64) int {
	switch {
	case math.IsNaN(x):
		return -1
	case x < a.Lo:
		return 0
	case x >= a.Hi:
		return a.Bins + 1
	}
	bin := 1 + int((x-a.Lo)/a.Width())
	// Guard the upper edge against float round-up.
	if bin > a.Bins {
		bin = a.Bins
	}
	return bin
}

// BinLowEdge returns the lower edge of data bin i in 1..Bins.
func (a Axis) BinLowEdge(i int) float64 {
	return a.Lo + float64(i-1)*a.Width()
}

// BinCenter returns the center of data bin i in 1..Bins.
func (a Axis) BinCenter(i int) float64 {
	return a.Lo + (float64(i)-0.5)*a.Width()
}

// String describes the axis for diagnostics.
func (a Axis) String() string {
	return fmt.Sprintf("%d bins in [%g, %g)", a.Bins, a.Lo, a.Hi)
}
