package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/node"
	"github.com/roach88/autus/internal/patch"
	"github.com/roach88/autus/internal/script"
	"github.com/roach88/autus/internal/testutil"
)

func loadScript(t *testing.T, name string) *script.Script {
	t.Helper()
	sc, err := script.Load(filepath.Join("testdata", "scripts", name+".yaml"))
	require.NoError(t, err)
	return sc
}

func parseScript(t *testing.T, src string) *script.Script {
	t.Helper()
	sc, err := script.Parse("inline.yaml", []byte(src))
	require.NoError(t, err)
	return sc
}

func TestRun_EnergyPush(t *testing.T) {
	result, err := Run(loadScript(t, "energy-push"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Markers, 2)
	assert.Equal(t, int64(testutil.DefaultStartMs), result.Markers[0].TimestampMs)
	assert.Equal(t, int64(testutil.DefaultStartMs+testutil.DefaultStepMs), result.Markers[1].TimestampMs,
		"clock continues after an explicit timestamp")
	assert.Equal(t, "dbe119a1ca469fef", result.Last().StateHash)

	require.NotNil(t, result.Final)
	assert.Equal(t, int64(2), result.Final.Seq)
	assert.Equal(t, kernel.Node{ID: "n1", Mass: 0.7, X: 0.1, Y: -0.2}, result.Final.Nodes["n1"])
}

func TestRun_Deterministic(t *testing.T) {
	for _, name := range []string{"energy-push", "node-lifecycle", "mass-clamp"} {
		t.Run(name, func(t *testing.T) {
			a, err := Run(loadScript(t, name))
			require.NoError(t, err)
			b, err := Run(loadScript(t, name))
			require.NoError(t, err)

			require.Equal(t, len(a.Markers), len(b.Markers))
			for i := range a.Markers {
				assert.Equal(t, a.Markers[i].Hash, b.Markers[i].Hash, "marker %d", i)
			}
			assert.Equal(t, a.Final.LastHash, b.Final.LastHash)
		})
	}
}

func TestRun_ExpectationFailures(t *testing.T) {
	sc := parseScript(t, `
name: wrong-expect
session: s-1
commits:
  - patches: []
expect:
  state_hash: "0000000000000000"
  node_type: THRESHOLD
  seq: 5
`)
	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "state_hash")
	assert.Contains(t, result.Errors[1], "node_type: got STABLE, want THRESHOLD")
	assert.Contains(t, result.Errors[2], "seq: got 1, want 5")
}

func TestRun_FullHashExpectation(t *testing.T) {
	sc := loadScript(t, "energy-push")
	sc.Expect.StateHash = "dbe119a1ca469fefead46e26d00365f864c42f69c6cafe2be91a70b9953a12c2"

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RejectedPatchAborts(t *testing.T) {
	sc := parseScript(t, `
name: bad-key
session: s-1
commits:
  - patches:
      - page: 1
        mass_modifier: 0.1
  - patches:
      - page: 1
        energy: 0.9
`)
	result, err := Run(sc)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "commits[1]")
	assert.Equal(t, patch.ReasonInvalidKey, patch.ReasonOf(err))
}

func TestRun_WithRegistryAndClock(t *testing.T) {
	r := kernel.NewRegistry()
	clock := testutil.NewMillisClock(5000, 10)
	sc := parseScript(t, `
name: shared
session: s-shared
commits:
  - patches: []
  - patches: []
`)

	result, err := Run(sc, WithRegistry(r), WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), result.Markers[0].TimestampMs)
	assert.Equal(t, int64(5010), result.Markers[1].TimestampMs)

	st, ok := r.Snapshot("s-shared")
	require.True(t, ok)
	assert.Equal(t, int64(2), st.Seq)
	assert.Equal(t, node.Stable, st.NodeType())
}

func TestRunContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunContext(ctx, loadScript(t, "energy-push"))
	require.ErrorIs(t, err, context.Canceled)
}
