package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"energy-push", "node-lifecycle", "mass-clamp"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScript(t, name))
			require.NoError(t, err)
			assert.NotEmpty(t, result.Markers)
		})
	}
}

func TestTraceJSON_Empty(t *testing.T) {
	got, err := TraceJSON("empty", "s", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"markers":[],"script":"empty","session":"s"}`, string(got))
}
