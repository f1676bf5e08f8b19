package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/node"
	"github.com/roach88/autus/internal/patch"
)

type stagedCommit struct {
	ts   int64
	docs []map[string]any
}

func runCommits(t *testing.T, id string, commits []stagedCommit) (*State, []*Marker) {
	t.Helper()
	st := NewState(id)
	var markers []*Marker
	for _, c := range commits {
		require.NoError(t, st.StageDocuments(c.docs...))
		m, err := Commit(st, c.ts)
		require.NoError(t, err)
		markers = append(markers, m)
	}
	return st, markers
}

func TestCommit_DefaultDraft(t *testing.T) {
	st := NewState("s-1")

	m, err := Commit(st, 1700000000000)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.Seq)
	assert.Equal(t, "", m.PrevHash)
	assert.Len(t, m.Hash, 64)
	assert.Equal(t, m.Hash[:canon.ShortHashLen], m.StateHash)
	assert.Equal(t, ProcessingSteps(), m.ProcessingSteps)

	assert.Equal(t, ModeLive, st.Mode)
	assert.Equal(t, int64(1), st.Seq)
	assert.Equal(t, m.Hash, st.LastHash)
	assert.InDelta(t, 0.85, st.Energy, 1e-12)
	assert.InDelta(t, 0.15, st.Sigma, 1e-12)
	assert.InDelta(t, 0.85, st.Stability, 1e-12)
	assert.Equal(t, node.Stable, m.NodeType)
	assert.Equal(t, ModeLive, m.State.Mode)
}

func TestCommit_ChainsPrevHash(t *testing.T) {
	st, markers := runCommits(t, "s-1", []stagedCommit{
		{ts: 1},
		{ts: 2},
		{ts: 3},
	})
	require.Len(t, markers, 3)
	assert.Equal(t, "", markers[0].PrevHash)
	assert.Equal(t, markers[0].Hash, markers[1].PrevHash)
	assert.Equal(t, markers[1].Hash, markers[2].PrevHash)
	assert.Equal(t, markers[2].Hash, st.LastHash)
	assert.NotEqual(t, markers[0].Hash, markers[1].Hash)
}

func TestCommit_ReplayIsDeterministic(t *testing.T) {
	commits := []stagedCommit{
		{ts: 1700000000000, docs: []map[string]any{
			{"page": 3, "allocations": map[string]any{"E": 0.6, "S": 0.2, "NW": 0.2}},
			{"page": 1, "mass_modifier": 0.2},
		}},
		{ts: 1700000001000, docs: []map[string]any{
			{"page": 2, "ops": []any{
				map[string]any{"type": "CREATE", "op_id": "o1", "timestamp_ms": 1, "node_id": "n1", "mass": 0.7, "position": []any{0.1, -0.2}},
				map[string]any{"type": "MOVE", "op_id": "o2", "timestamp_ms": 2, "node_id": "n1", "position": []any{0.3, 0.3}},
			}},
		}},
	}

	a, ma := runCommits(t, "s-1", commits)
	b, mb := runCommits(t, "s-1", commits)

	assert.Equal(t, a.LastHash, b.LastHash)
	for i := range ma {
		assert.Equal(t, ma[i].Hash, mb[i].Hash, "commit %d", i)
	}
	assert.Equal(t, Node{ID: "n1", Mass: 0.7, X: 0.3, Y: 0.3}, a.Nodes["n1"])
}

func TestCommit_SessionIDAndTimestampAreHashed(t *testing.T) {
	_, base := runCommits(t, "s-1", []stagedCommit{{ts: 10}})
	_, otherSession := runCommits(t, "s-2", []stagedCommit{{ts: 10}})
	_, otherTS := runCommits(t, "s-1", []stagedCommit{{ts: 11}})

	assert.NotEqual(t, base[0].Hash, otherSession[0].Hash)
	assert.NotEqual(t, base[0].Hash, otherTS[0].Hash)
}

func TestCommit_DistinctAllocationsDistinctHashes(t *testing.T) {
	_, east := runCommits(t, "s-1", []stagedCommit{{ts: 1, docs: []map[string]any{
		{"page": 3, "allocations": map[string]any{"E": 1.0}},
	}}})
	_, south := runCommits(t, "s-1", []stagedCommit{{ts: 1, docs: []map[string]any{
		{"page": 3, "allocations": map[string]any{"S": 1.0}},
	}}})

	assert.NotEqual(t, east[0].Hash, south[0].Hash)
	assert.NotEqual(t, east[0].StateHash, south[0].StateHash)
}

func TestCommit_MassModifierClamped(t *testing.T) {
	st := NewState("s-1")
	require.NoError(t, st.StageRaw(patch.Page1, map[string]any{"mass_modifier": 10.0}))
	assert.Equal(t, 0.5, st.Draft.Page1.MassModifier)

	_, err := Commit(st, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, st.Mass, 1e-12)

	for i := 0; i < 5; i++ {
		require.NoError(t, st.StageRaw(patch.Page1, map[string]any{"mass_modifier": 0.5}))
		_, err := Commit(st, int64(i+2))
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, st.Mass, "mass stays within [0,1]")
}

func TestCommit_HorizonOverride(t *testing.T) {
	st := NewState("s-1")
	require.NoError(t, st.StageRaw(patch.Page1, map[string]any{"horizon_override": "D90"}))
	_, err := Commit(st, 1)
	require.NoError(t, err)
	assert.Equal(t, patch.D90, st.Horizon)

	_, err = Commit(st, 2)
	require.NoError(t, err)
	assert.Equal(t, patch.D90, st.Horizon, "horizon persists across commits without override")
}

func TestCommit_DraftResets(t *testing.T) {
	st := NewState("s-1")
	require.NoError(t, st.StageRaw(patch.Page1, map[string]any{"mass_modifier": 0.3}))
	require.NoError(t, st.StageRaw(patch.Page3, map[string]any{"allocations": map[string]any{"W": 1.0}}))

	_, err := Commit(st, 1)
	require.NoError(t, err)
	assert.True(t, st.Draft.IsDefault())

	// The next commit applies {E:1} again.
	m, err := Commit(st, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, m.State.Energy, 1e-12)
}

func TestCommit_Page2(t *testing.T) {
	st := NewState("s-1")
	st.Nodes["a"] = Node{ID: "a", Mass: 0.2}
	st.Nodes["gone"] = Node{ID: "gone", Mass: 0.2}
	st.Anchor = [2]float64{0.8, -0.8}

	require.NoError(t, st.StageRaw(patch.Page2, map[string]any{
		"mass_filter":          0.3,
		"virtual_anchor_shift": []any{0.5, -0.5},
		"ops": []any{
			map[string]any{"type": "UPDATE", "op_id": "1", "timestamp_ms": 1, "node_id": "a", "mass": 0.6},
			map[string]any{"type": "DELETE", "op_id": "2", "timestamp_ms": 2, "node_id": "gone"},
			map[string]any{"type": "DELETE", "op_id": "3", "timestamp_ms": 3, "node_id": "never"},
			map[string]any{"type": "UPDATE", "op_id": "4", "timestamp_ms": 4, "node_id": "missing", "mass": 0.9},
			map[string]any{"type": "MOVE", "op_id": "5", "timestamp_ms": 5, "node_id": "missing", "position": []any{0.1, 0.1}},
			map[string]any{"type": "CREATE", "op_id": "6", "timestamp_ms": 6, "node_id": "b"},
			map[string]any{"type": "UPDATE", "op_id": "7", "timestamp_ms": 7, "node_id": "a", "mass": 0.4},
		},
	}))

	_, err := Commit(st, 1)
	require.NoError(t, err)

	assert.Equal(t, 0.3, st.MassFilter)
	assert.Equal(t, [2]float64{1, -1}, st.Anchor)
	require.Len(t, st.Nodes, 2)
	assert.Equal(t, Node{ID: "a", Mass: 0.4}, st.Nodes["a"], "last write wins")
	assert.Equal(t, Node{ID: "b", Mass: patch.DefaultNodeMass}, st.Nodes["b"])
	assert.NotContains(t, st.Nodes, "missing")

	visible := st.VisibleNodes()
	require.Len(t, visible, 2)
}

func TestCommit_Page2EquivalentNodeIDs(t *testing.T) {
	st := NewState("s-1")
	require.NoError(t, st.StageRaw(patch.Page2, map[string]any{
		"ops": []any{
			map[string]any{"type": "CREATE", "op_id": "1", "timestamp_ms": 1, "node_id": "\u00e9"},
			map[string]any{"type": "CREATE", "op_id": "2", "timestamp_ms": 2, "node_id": "e\u0301", "mass": 0.7},
		},
	}))

	_, err := Commit(st, 1)
	require.NoError(t, err)
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, 0.7, st.Nodes["\u00e9"].Mass)
	assert.True(t, st.Draft.IsDefault())
}

func TestCommit_PageStepsFollowCommitOrder(t *testing.T) {
	pageSteps := map[patch.Page]string{
		patch.Page1: StepMass,
		patch.Page2: StepNodeOps,
		patch.Page3: StepMandala,
	}
	want := make([]string, 0, len(patch.CommitOrder))
	for _, page := range patch.CommitOrder {
		want = append(want, pageSteps[page])
	}

	m, err := Commit(NewState("s-1"), 1)
	require.NoError(t, err)
	assert.Equal(t, want, m.ProcessingSteps[:len(want)])
}

func TestCommit_SerializationFailureLeavesStateUnchanged(t *testing.T) {
	st := NewState("s-1")
	st.Nodes["bad"] = Node{ID: "bad", Mass: math.Inf(1)}
	require.NoError(t, st.StageRaw(patch.Page1, map[string]any{"mass_modifier": 0.2}))
	before := st.Clone()

	m, err := Commit(st, 1)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, canon.IsSerializationError(err))
	assert.Equal(t, before, st)
}

func TestNext_DoesNotMutate(t *testing.T) {
	st := NewState("s-1")
	require.NoError(t, st.StageRaw(patch.Page3, map[string]any{"allocations": map[string]any{"N": 1.0}}))
	before := st.Clone()

	next, m, err := Next(st, 5)
	require.NoError(t, err)
	assert.Equal(t, before, st)
	assert.Equal(t, int64(1), next.Seq)
	assert.Equal(t, next.LastHash, m.Hash)
}

func TestVerifyMarker(t *testing.T) {
	st, markers := runCommits(t, "s-1", []stagedCommit{{ts: 1}, {ts: 2}})

	ok, err := VerifyMarker(st, markers[1])
	require.NoError(t, err)
	assert.True(t, ok)

	st.Mass = 0.123
	ok, err = VerifyMarker(st, markers[1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassificationScenarios(t *testing.T) {
	tests := []struct {
		name  string
		alloc map[string]any
		want  node.Type
	}{
		{"east is stable", map[string]any{"E": 1.0}, node.Stable},
		{"west is entropy dominant", map[string]any{"W": 1.0}, node.EntropyDominant},
		{"south-west is unclassified", map[string]any{"SW": 1.0}, node.Unclassified},
		{"south and south-west is potential", map[string]any{"S": 0.5, "SW": 0.5}, node.Potential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, markers := runCommits(t, "s-1", []stagedCommit{{ts: 1, docs: []map[string]any{
				{"page": 3, "allocations": tt.alloc},
			}}})
			assert.Equal(t, tt.want, markers[0].NodeType)
		})
	}
}
