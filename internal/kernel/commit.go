package kernel

import (
	"fmt"

	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/mandala"
	"github.com/roach88/autus/internal/node"
	"github.com/roach88/autus/internal/patch"
)

// Processing step labels, in pipeline order.
const (
	StepMandala    = "page3:mandala_transform"
	StepMass       = "page1:mass_modifier"
	StepNodeOps    = "page2:node_ops"
	StepStability  = "derive:stability"
	StepDraftReset = "draft:reset"
	StepModeLive   = "mode:live"
	StepMarkerHash = "marker:hash"
)

// ProcessingSteps returns the step labels every commit reports.
func ProcessingSteps() []string {
	return []string{
		StepMandala,
		StepMass,
		StepNodeOps,
		StepStability,
		StepDraftReset,
		StepModeLive,
		StepMarkerHash,
	}
}

// Marker is the immutable audit record of one commit.
type Marker struct {
	SessionID       string    `json:"session_id"`
	Seq             int64     `json:"seq"`
	TimestampMs     int64     `json:"timestamp_ms"`
	PrevHash        string    `json:"prev_hash"`
	Hash            string    `json:"hash"`
	StateHash       string    `json:"state_hash"`
	ProcessingSteps []string  `json:"processing_steps"`
	State           View      `json:"state"`
	NodeType        node.Type `json:"node_type"`
}

// Commit applies st's draft and returns the marker. On error st is left
// unchanged.
//
// The draft is not re-validated; it must have been staged through the
// validators. The only failure is a state that has no canonical encoding
// (a non-finite float), reported as a *canon.SerializationError.
func Commit(st *State, timestampMs int64) (*Marker, error) {
	next, m, err := Next(st, timestampMs)
	if err != nil {
		return nil, err
	}
	*st = *next
	return m, nil
}

// Next computes the state and marker that committing st would produce,
// without modifying st.
func Next(st *State, timestampMs int64) (*State, *Marker, error) {
	next := st.Clone()
	if next.Nodes == nil {
		next.Nodes = map[string]Node{}
	}
	d := next.Draft
	steps := make([]string, 0, 7)

	for _, page := range patch.CommitOrder {
		switch page {
		case patch.Page3:
			applyPage3(next, d.Page3)
			steps = append(steps, StepMandala)
		case patch.Page1:
			applyPage1(next, d.Page1)
			steps = append(steps, StepMass)
		case patch.Page2:
			applyPage2(next, d.Page2)
			steps = append(steps, StepNodeOps)
		}
	}

	next.Stability = mandala.Stability(next.Sigma)
	steps = append(steps, StepStability)

	next.Draft = patch.NewDraft()
	steps = append(steps, StepDraftReset)

	next.Mode = ModeLive
	next.Seq++
	steps = append(steps, StepModeLive)

	full, err := markerHash(next, st.LastHash, timestampMs)
	if err != nil {
		return nil, nil, fmt.Errorf("commit session %q seq %d: %w", next.SessionID, next.Seq, err)
	}
	next.LastHash = full
	steps = append(steps, StepMarkerHash)

	m := &Marker{
		SessionID:       next.SessionID,
		Seq:             next.Seq,
		TimestampMs:     timestampMs,
		PrevHash:        st.LastHash,
		Hash:            full,
		StateHash:       canon.Short(full),
		ProcessingSteps: steps,
		State:           next.View(),
		NodeType:        next.NodeType(),
	}
	return next, m, nil
}

// MarkerInput is the value hashed into a marker.
func MarkerInput(st *State, prevHash string, timestampMs int64) canon.Object {
	return canon.Object{
		"session_id":   canon.String(st.SessionID),
		"seq":          canon.Int(st.Seq),
		"timestamp_ms": canon.Int(timestampMs),
		"prev_hash":    canon.String(prevHash),
		"state":        st.Canonical(),
	}
}

func markerHash(st *State, prevHash string, timestampMs int64) (string, error) {
	data, err := canon.MarshalCanonical(MarkerInput(st, prevHash, timestampMs))
	if err != nil {
		return "", err
	}
	return canon.Hash(data), nil
}

// applyPage3 overwrites the derived scalars.
func applyPage3(next *State, p patch.Page3Draft) {
	sc := mandala.Transform(p.Allocations)
	next.Energy = sc.Energy
	next.Pressure = sc.Pressure
	next.Leak = sc.Leak
	next.Volume = sc.Volume
	next.Sigma = sc.Sigma
	next.Density = sc.Density
	next.Allocations = p.Allocations
}

func applyPage1(next *State, p patch.Page1Draft) {
	next.Mass = mandala.Clamp01(next.Mass * (1 + p.MassModifier))
	if p.HorizonOverride != nil {
		next.Horizon = *p.HorizonOverride
	}
}

func applyPage2(next *State, p patch.Page2Draft) {
	if p.MassFilter != nil {
		next.MassFilter = *p.MassFilter
	}
	if p.AnchorShift != nil {
		next.Anchor[0] = mandala.Clamp(next.Anchor[0]+p.AnchorShift[0], patch.AnchorShiftMin, patch.AnchorShiftMax)
		next.Anchor[1] = mandala.Clamp(next.Anchor[1]+p.AnchorShift[1], patch.AnchorShiftMin, patch.AnchorShiftMax)
	}
	for _, op := range p.Ops {
		applyOp(next.Nodes, op)
	}
}

// applyOp applies one node operation literally. Operations on missing
// nodes other than CREATE are no-ops; repeated operations last-write-win.
func applyOp(nodes map[string]Node, op patch.NodeOp) {
	switch op.Type {
	case patch.OpCreate:
		n := Node{ID: op.NodeID, Mass: patch.DefaultNodeMass}
		if op.Mass != nil {
			n.Mass = *op.Mass
		}
		if op.Position != nil {
			n.X, n.Y = op.Position[0], op.Position[1]
		}
		nodes[op.NodeID] = n
	case patch.OpDelete:
		delete(nodes, op.NodeID)
	case patch.OpUpdate:
		n, ok := nodes[op.NodeID]
		if !ok || op.Mass == nil {
			return
		}
		n.Mass = *op.Mass
		nodes[op.NodeID] = n
	case patch.OpMove:
		n, ok := nodes[op.NodeID]
		if !ok || op.Position == nil {
			return
		}
		n.X, n.Y = op.Position[0], op.Position[1]
		nodes[op.NodeID] = n
	}
}

// VerifyMarker recomputes the hash of a committed state and reports
// whether it matches m.
func VerifyMarker(st *State, m *Marker) (bool, error) {
	full, err := markerHash(st, m.PrevHash, m.TimestampMs)
	if err != nil {
		return false, err
	}
	return full == m.Hash, nil
}
