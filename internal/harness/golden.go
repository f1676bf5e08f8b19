package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/script"
)

// TraceJSON renders a run's markers as canonical JSON, the form stored in
// golden files.
func TraceJSON(name, session string, markers []kernel.Marker) ([]byte, error) {
	list := make(canon.Array, len(markers))
	for i, m := range markers {
		list[i] = markerValue(m)
	}
	return canon.MarshalCanonical(canon.Object{
		"script":  canon.String(name),
		"session": canon.String(session),
		"markers": list,
	})
}

func markerValue(m kernel.Marker) canon.Object {
	steps := make(canon.Array, len(m.ProcessingSteps))
	for i, s := range m.ProcessingSteps {
		steps[i] = canon.String(s)
	}
	return canon.Object{
		"seq":              canon.Int(m.Seq),
		"timestamp_ms":     canon.Int(m.TimestampMs),
		"prev_hash":        canon.String(m.PrevHash),
		"hash":             canon.String(m.Hash),
		"state_hash":       canon.String(m.StateHash),
		"node_type":        canon.String(m.NodeType),
		"processing_steps": steps,
		"state":            viewValue(m.State),
	}
}

func viewValue(v kernel.View) canon.Object {
	alloc := make(canon.Object, len(v.Allocations))
	for k, w := range v.Allocations {
		alloc[k] = canon.Float(w)
	}
	nodes := make(canon.Array, len(v.Nodes))
	for i, n := range v.Nodes {
		nodes[i] = canon.Object{
			"id":   canon.String(n.ID),
			"mass": canon.Float(n.Mass),
			"x":    canon.Float(n.X),
			"y":    canon.Float(n.Y),
		}
	}
	return canon.Object{
		"mode":        canon.String(v.Mode),
		"mass":        canon.Float(v.Mass),
		"energy":      canon.Float(v.Energy),
		"pressure":    canon.Float(v.Pressure),
		"leak":        canon.Float(v.Leak),
		"volume":      canon.Float(v.Volume),
		"sigma":       canon.Float(v.Sigma),
		"density":     canon.Float(v.Density),
		"stability":   canon.Float(v.Stability),
		"horizon":     canon.String(v.Horizon),
		"mass_filter": canon.Float(v.MassFilter),
		"anchor":      canon.Floats(v.Anchor[0], v.Anchor[1]),
		"allocations": alloc,
		"nodes":       nodes,
	}
}

// RunWithGolden executes a script and compares its marker trace against
// testdata/golden/{script.Name}.golden.
//
// Returns an error if the run fails. A trace mismatch fails t through
// goldie.
func RunWithGolden(t *testing.T, sc *script.Script, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(sc, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, sc.Session, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name, session string, result *Result) error {
	t.Helper()

	trace, err := TraceJSON(name, session, result.Markers)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, trace)
	return nil
}
