// Package mandala maps an 8-direction allocation onto the six derived
// scalars of a session state.
//
// The map is a fixed linear blend: every output is a base constant plus a
// per-direction coefficient times that direction's normalized weight,
// clamped to [0, 1]. There is no adaptive component.
package mandala

import (
	"fmt"
	"math"
	"strings"
)

// Direction identifies one of the eight mandala slots.
type Direction int

// Directions in compass order. The numeric value indexes Allocation.
const (
	N Direction = iota
	NE
	E
	SE
	S
	SW
	W
	NW
)

// NumDirections is the number of mandala slots.
const NumDirections = 8

// SumTolerance bounds how far a normalized allocation may drift from 1.0.
const SumTolerance = 1e-6

var directionNames = [NumDirections]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// String returns the compass label ("N", "NE", ...).
func (d Direction) String() string {
	if d < 0 || int(d) >= NumDirections {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Directions returns all slots in compass order.
func Directions() []Direction {
	return []Direction{N, NE, E, SE, S, SW, W, NW}
}

// ParseDirection resolves a compass label. Matching is case-insensitive.
func ParseDirection(s string) (Direction, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range directionNames {
		if name == up {
			return Direction(i), true
		}
	}
	return 0, false
}

// Allocation is a weight per direction. A normalized allocation is
// non-negative and sums to 1 within SumTolerance.
type Allocation [NumDirections]float64

// Default is the allocation used when every weight is zero.
func Default() Allocation {
	var a Allocation
	a[E] = 1.0
	return a
}

// Sum returns the total weight.
func (a Allocation) Sum() float64 {
	var sum float64
	for _, w := range a {
		sum += w
	}
	return sum
}

// IsNormalized reports whether a is non-negative and sums to 1.
func (a Allocation) IsNormalized() bool {
	for _, w := range a {
		if w < 0 || math.IsNaN(w) {
			return false
		}
	}
	return math.Abs(a.Sum()-1.0) <= SumTolerance
}

// Map returns the allocation keyed by compass label, all eight keys present.
func (a Allocation) Map() map[string]float64 {
	m := make(map[string]float64, NumDirections)
	for i, w := range a {
		m[directionNames[i]] = w
	}
	return m
}

// WeightError reports an allocation entry that cannot be normalized.
type WeightError struct {
	Key    string
	Value  float64
	Reason string
}

func (e *WeightError) Error() string {
	if e.Reason == "unknown direction" {
		return fmt.Sprintf("mandala: unknown direction %q", e.Key)
	}
	return fmt.Sprintf("mandala: weight %s=%v: %s", e.Key, e.Value, e.Reason)
}

// Normalize converts direction-keyed weights into a normalized Allocation.
//
// Missing directions count as zero. If every weight is zero (including an
// empty map) the result is Default(). Unknown keys, negative weights and
// non-finite weights are rejected.
func Normalize(weights map[string]float64) (Allocation, error) {
	var a Allocation
	for key, w := range weights {
		d, ok := ParseDirection(key)
		if !ok {
			return Allocation{}, &WeightError{Key: key, Value: w, Reason: "unknown direction"}
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Allocation{}, &WeightError{Key: key, Value: w, Reason: "not finite"}
		}
		if w < 0 {
			return Allocation{}, &WeightError{Key: key, Value: w, Reason: "negative"}
		}
		a[d] += w
		if math.IsInf(a[d], 0) {
			return Allocation{}, &WeightError{Key: key, Value: w, Reason: "not finite"}
		}
	}
	return a.Normalized(), nil
}

// Normalized rescales a so it sums to 1. Negative entries are treated as
// zero; an all-zero allocation becomes Default().
func (a Allocation) Normalized() Allocation {
	var sum, peak float64
	for i, w := range a {
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			a[i] = 0
			continue
		}
		sum += w
		peak = math.Max(peak, w)
	}
	if sum == 0 {
		return Default()
	}
	if math.IsInf(sum, 1) {
		// Large finite weights overflow the sum; rescale by the peak first.
		sum = 0
		for i := range a {
			a[i] /= peak
			sum += a[i]
		}
	}
	for i := range a {
		a[i] /= sum
	}
	return a
}
