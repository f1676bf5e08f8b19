package kernel

import (
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/mandala"
	"github.com/roach88/autus/internal/node"
	"github.com/roach88/autus/internal/patch"
)

// NormalizeSessionID returns the NFC form of id. Session ids are hashed in
// NFC, so two ids that differ only in normalization name one session.
func NormalizeSessionID(id string) string {
	return norm.NFC.String(id)
}

// Mode is the UI mode of a session. SIM until the first commit, LIVE after.
type Mode string

const (
	ModeSim  Mode = "SIM"
	ModeLive Mode = "LIVE"
)

// Defaults for a fresh state.
const (
	DefaultMass     = 0.5
	DefaultEnergy   = 0.5
	DefaultPressure = 0.5
	DefaultLeak     = 0.1
	DefaultVolume   = 0.5
	DefaultSigma    = 0.3
	DefaultDensity  = 0.5
)

// Node is a graph node managed by Page2 operations.
type Node struct {
	ID   string  `json:"id"`
	Mass float64 `json:"mass"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// State is the mutable record of one session.
type State struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Mode      Mode   `json:"mode"`

	Mass      float64 `json:"mass"`
	Energy    float64 `json:"energy"`
	Pressure  float64 `json:"pressure"`
	Leak      float64 `json:"leak"`
	Volume    float64 `json:"volume"`
	Sigma     float64 `json:"sigma"`
	Density   float64 `json:"density"`
	Stability float64 `json:"stability"`

	Horizon     patch.Horizon      `json:"horizon"`
	MassFilter  float64            `json:"mass_filter"`
	Anchor      [2]float64         `json:"anchor"`
	Allocations mandala.Allocation `json:"allocations"`
	Nodes       map[string]Node    `json:"nodes"`

	LastHash string      `json:"last_hash"`
	Draft    patch.Draft `json:"draft"`
}

// NewState returns the initial state for a session.
func NewState(sessionID string) *State {
	return &State{
		SessionID:   NormalizeSessionID(sessionID),
		Mode:        ModeSim,
		Mass:        DefaultMass,
		Energy:      DefaultEnergy,
		Pressure:    DefaultPressure,
		Leak:        DefaultLeak,
		Volume:      DefaultVolume,
		Sigma:       DefaultSigma,
		Density:     DefaultDensity,
		Stability:   mandala.Stability(DefaultSigma),
		Horizon:     patch.DefaultHorizon,
		Allocations: mandala.Default(),
		Nodes:       map[string]Node{},
		Draft:       patch.NewDraft(),
	}
}

// Clone returns a deep copy.
func (st *State) Clone() *State {
	out := *st
	out.Nodes = make(map[string]Node, len(st.Nodes))
	for id, n := range st.Nodes {
		out.Nodes[id] = n
	}
	out.Draft = st.Draft.Clone()
	return &out
}

// Stage merges already validated patches into the draft.
func (st *State) Stage(patches ...patch.Patch) {
	for _, p := range patches {
		st.Draft.Apply(p)
	}
}

// StageRaw validates a raw patch for page and stages it. On error the
// draft is unchanged.
func (st *State) StageRaw(page patch.Page, raw map[string]any) error {
	p, err := patch.Validate(page, raw)
	if err != nil {
		return err
	}
	st.Draft.Apply(p)
	return nil
}

// StageDocuments validates every document (each naming its own "page")
// before staging any of them. One invalid document rejects the batch.
func (st *State) StageDocuments(docs ...map[string]any) error {
	patches := make([]patch.Patch, 0, len(docs))
	for _, doc := range docs {
		p, err := patch.ValidateDocument(doc)
		if err != nil {
			return err
		}
		patches = append(patches, p)
	}
	st.Stage(patches...)
	return nil
}

// NodeType classifies the current scalars.
func (st *State) NodeType() node.Type {
	stability := st.Stability
	return node.Classify(st.Mass, st.Energy, st.Sigma, st.Density, &stability)
}

// SortedNodes returns nodes ordered by id.
func (st *State) SortedNodes() []Node {
	out := make([]Node, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VisibleNodes returns nodes whose mass is at least the mass filter,
// ordered by id.
func (st *State) VisibleNodes() []Node {
	all := st.SortedNodes()
	out := all[:0]
	for _, n := range all {
		if n.Mass >= st.MassFilter {
			out = append(out, n)
		}
	}
	return out
}

// Canonical returns the hashed view of the state: everything except the
// draft and the hash chain pointer.
func (st *State) Canonical() canon.Object {
	nodes := make(canon.Object, len(st.Nodes))
	for id, n := range st.Nodes {
		nodes[id] = canon.Object{
			"mass": canon.Float(n.Mass),
			"x":    canon.Float(n.X),
			"y":    canon.Float(n.Y),
		}
	}

	return canon.Object{
		"session_id":  canon.String(st.SessionID),
		"seq":         canon.Int(st.Seq),
		"mode":        canon.String(st.Mode),
		"mass":        canon.Float(st.Mass),
		"energy":      canon.Float(st.Energy),
		"pressure":    canon.Float(st.Pressure),
		"leak":        canon.Float(st.Leak),
		"volume":      canon.Float(st.Volume),
		"sigma":       canon.Float(st.Sigma),
		"density":     canon.Float(st.Density),
		"stability":   canon.Float(st.Stability),
		"horizon":     canon.String(st.Horizon),
		"mass_filter": canon.Float(st.MassFilter),
		"anchor":      canon.Floats(st.Anchor[0], st.Anchor[1]),
		"allocations": patch.AllocationValue(st.Allocations),
		"nodes":       nodes,
	}
}

// View is the display form of a state carried on markers.
type View struct {
	SessionID   string             `json:"session_id"`
	Seq         int64              `json:"seq"`
	Mode        Mode               `json:"mode"`
	Mass        float64            `json:"mass"`
	Energy      float64            `json:"energy"`
	Pressure    float64            `json:"pressure"`
	Leak        float64            `json:"leak"`
	Volume      float64            `json:"volume"`
	Sigma       float64            `json:"sigma"`
	Density     float64            `json:"density"`
	Stability   float64            `json:"stability"`
	Horizon     patch.Horizon      `json:"horizon"`
	MassFilter  float64            `json:"mass_filter"`
	Anchor      [2]float64         `json:"anchor"`
	Allocations map[string]float64 `json:"allocations"`
	Nodes       []Node             `json:"nodes"`
}

// View returns the display form, with floats rounded as they are hashed.
func (st *State) View() View {
	alloc := st.Allocations.Map()
	for k, v := range alloc {
		alloc[k] = canon.Round6(v)
	}
	nodes := st.SortedNodes()
	for i := range nodes {
		nodes[i].Mass = canon.Round6(nodes[i].Mass)
		nodes[i].X = canon.Round6(nodes[i].X)
		nodes[i].Y = canon.Round6(nodes[i].Y)
	}
	return View{
		SessionID:   st.SessionID,
		Seq:         st.Seq,
		Mode:        st.Mode,
		Mass:        canon.Round6(st.Mass),
		Energy:      canon.Round6(st.Energy),
		Pressure:    canon.Round6(st.Pressure),
		Leak:        canon.Round6(st.Leak),
		Volume:      canon.Round6(st.Volume),
		Sigma:       canon.Round6(st.Sigma),
		Density:     canon.Round6(st.Density),
		Stability:   canon.Round6(st.Stability),
		Horizon:     st.Horizon,
		MassFilter:  canon.Round6(st.MassFilter),
		Anchor:      [2]float64{canon.Round6(st.Anchor[0]), canon.Round6(st.Anchor[1])},
		Allocations: alloc,
		Nodes:       nodes,
	}
}
