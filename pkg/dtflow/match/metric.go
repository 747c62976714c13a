package match

import (
	"math"

	"github.com/dtflow/dtflow/pkg/dtflow"
)

// Metric measures the distance between a candidate pair. The second
// result is false when the pair cannot be measured, for example because
// an attribute is absent or nil; such candidates never match.
type Metric func(a, b *dtflow.Entity) (float64, bool)

// AbsDiff measures |a.aAttr - b.bAttr|. Pass the same name twice when
// both sides carry the attribute under one name.
func AbsDiff(aAttr, bAttr string) Metric {
	return func(a, b *dtflow.Entity) (float64, bool) {
		x, ok := a.Float(aAttr)
		if !ok {
			return 0, false
		}
		y, ok := b.Float(bAttr)
		if !ok {
			return 0, false
		}
		return math.Abs(x - y), true
	}
}

// AbsDeltaPhi measures the absolute azimuthal separation
// acos(cos(phi_a - phi_b)), always in [0, pi] regardless of how many
// turns apart the raw angles are.
func AbsDeltaPhi(aAttr, bAttr string) Metric {
	return func(a, b *dtflow.Entity) (float64, bool) {
		p1, ok := a.Float(aAttr)
		if !ok {
			return 0, false
		}
		p2, ok := b.Float(bAttr)
		if !ok {
			return 0, false
		}
		return math.Acos(math.Cos(p1 - p2)), true
	}
}

// DeltaR measures the angular cone distance sqrt(deta^2 + dphi^2)
// between the named eta/phi attribute pairs, with the phi difference
// wrapped into (-pi, pi].
func DeltaR(aEta, aPhi, bEta, bPhi string) Metric {
	return func(a, b *dtflow.Entity) (float64, bool) {
		ea, ok := a.Float(aEta)
		if !ok {
			return 0, false
		}
		pa, ok := a.Float(aPhi)
		if !ok {
			return 0, false
		}
		eb, ok := b.Float(bEta)
		if !ok {
			return 0, false
		}
		pb, ok := b.Float(bPhi)
		if !ok {
			return 0, false
		}
		deta := ea - eb
		dphi := DeltaPhi(pa, pb)
		return math.Sqrt(deta*deta + dphi*dphi), true
	}
}

// Within gates m behind a second constraint: the pair is measurable only
// while gate stays below limit. Use it to rank by one residual while
// requiring another, such as ranking by dphi subject to a deta ceiling:
//
//	match.Within(match.AbsDiff("eta", "eta"), 0.3,
//	    match.AbsDeltaPhi("phi", "phi"))
func Within(gate Metric, limit float64, m Metric) Metric {
	return func(a, b *dtflow.Entity) (float64, bool) {
		g, ok := gate(a, b)
		if !ok || math.IsNaN(g) || g >= limit {
			return 0, false
		}
		return m(a, b)
	}
}

// DeltaPhi wraps the difference phi1 - phi2 into (-pi, pi].
func DeltaPhi(phi1, phi2 float64) float64 {
	res := phi1 - phi2
	for res > math.Pi {
		res -= 2 * math.Pi
	}
	for res <= -math.Pi {
		res += 2 * math.Pi
	}
	return res
}

// phiUnit converts raw trigger phi counts to radians: 65536 counts span
// half a radian.
const phiUnit = 0.5 / 65536.0

// TriggerGlobalPhi converts a trigger primitive's raw phi count to a
// global azimuth in radians. Raw counts are local to the sector; each
// sector spans pi/6.
func TriggerGlobalPhi(rawPhi float64, sector int64) float64 {
	return rawPhi*phiUnit + math.Pi/6*float64(sector-1)
}
