package mandala

import "math"

// Scalars are the six outputs of the transform.
type Scalars struct {
	Energy   float64
	Pressure float64
	Leak     float64
	Volume   float64
	Sigma    float64
	Density  float64
}

// blend is one output row: value = Base + Σ Coeff[d]·a[d].
type blend struct {
	Base  float64
	Coeff Allocation
}

func row(base float64, coeffs map[Direction]float64) blend {
	b := blend{Base: base}
	for d, c := range coeffs {
		b.Coeff[d] = c
	}
	return b
}

// Base constants for each output.
const (
	EnergyBase   = 0.20
	PressureBase = 0.30
	LeakBase     = 0.10
	VolumeBase   = 0.25
	SigmaBase    = 0.35
	DensityBase  = 0.30
)

var (
	energyRow   = row(EnergyBase, map[Direction]float64{E: 0.65, NE: 0.25, SE: 0.15})
	pressureRow = row(PressureBase, map[Direction]float64{N: 0.40, NE: 0.20, NW: 0.20})
	leakRow     = row(LeakBase, map[Direction]float64{W: 0.45, SW: 0.25, NW: 0.10})
	volumeRow   = row(VolumeBase, map[Direction]float64{S: 0.50, SE: 0.25, SW: 0.20})
	sigmaRow    = row(SigmaBase, map[Direction]float64{W: 0.30, SW: 0.20, N: -0.15, E: -0.20, S: -0.10})
	densityRow  = row(DensityBase, map[Direction]float64{S: 0.30, N: 0.25, SE: 0.15, NE: 0.10})
)

func (b blend) apply(a Allocation) float64 {
	v := b.Base
	for d, w := range a {
		v += b.Coeff[d] * w
	}
	return Clamp01(v)
}

// Transform maps an allocation onto the six derived scalars. The input is
// normalized first, so callers may pass raw weights.
func Transform(a Allocation) Scalars {
	if !a.IsNormalized() {
		a = a.Normalized()
	}
	return Scalars{
		Energy:   energyRow.apply(a),
		Pressure: pressureRow.apply(a),
		Leak:     leakRow.apply(a),
		Volume:   volumeRow.apply(a),
		Sigma:    sigmaRow.apply(a),
		Density:  densityRow.apply(a),
	}
}

// Stability is 1 − sigma clamped to [0, 1].
func Stability(sigma float64) float64 {
	return Clamp01(1 - sigma)
}

// Clamp01 clamps x to [0, 1]. NaN clamps to 0.
func Clamp01(x float64) float64 {
	return Clamp(x, 0, 1)
}

// Clamp clamps x to [lo, hi]. NaN clamps to lo.
func Clamp(x, lo, hi float64) float64 {
	switch {
	case math.IsNaN(x):
		return lo
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}
