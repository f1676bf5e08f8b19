// Package node classifies a state's scalars into a node category.
package node

// Type is a derived node category. It is recomputed on demand and never
// persisted.
type Type string

const (
	Threshold       Type = "THRESHOLD"
	EntropyDominant Type = "ENTROPY_DOMINANT"
	Stable          Type = "STABLE"
	Potential       Type = "POTENTIAL"
	Unclassified    Type = "UNCLASSIFIED"
)

// Rule thresholds, evaluated in declaration order.
const (
	ThresholdMinDensity = 0.75
	ThresholdMaxSigma   = 0.25
	EntropyMinSigma     = 0.60
	StableMinStability  = 0.70
	PotentialMaxEnergy  = 0.30
	PotentialMaxSigma   = 0.50
)

// Classify maps scalars to a Type. First match wins:
//
//	THRESHOLD         density > 0.75 and sigma < 0.25
//	ENTROPY_DOMINANT  sigma > 0.60
//	STABLE            stability given and > 0.70
//	POTENTIAL         energy < 0.30 and sigma < 0.50
//	UNCLASSIFIED      otherwise
//
// mass takes no part in the current rules.
func Classify(mass, energy, sigma, density float64, stability *float64) Type {
	_ = mass
	switch {
	case density > ThresholdMinDensity && sigma < ThresholdMaxSigma:
		return Threshold
	case sigma > EntropyMinSigma:
		return EntropyDominant
	case stability != nil && *stability > StableMinStability:
		return Stable
	case energy < PotentialMaxEnergy && sigma < PotentialMaxSigma:
		return Potential
	default:
		return Unclassified
	}
}

// Valid reports whether t is one of the known categories.
func (t Type) Valid() bool {
	switch t {
	case Threshold, EntropyDominant, Stable, Potential, Unclassified:
		return true
	}
	return false
}

// Ptr returns a pointer to x, for the optional stability argument.
func Ptr(x float64) *float64 {
	return &x
}
