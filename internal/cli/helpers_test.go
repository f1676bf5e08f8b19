package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/autus/internal/testutil"
)

const fixedNowMs int64 = 1700000000000

// testCLI runs root commands against one temp database.
type testCLI struct {
	t   *testing.T
	db  string
	ids *testutil.FixedSessionGenerator
}

func newTestCLI(t *testing.T, ids ...string) *testCLI {
	t.Helper()
	return &testCLI{
		t:   t,
		db:  filepath.Join(t.TempDir(), "autus.db"),
		ids: testutil.NewFixedSessionGenerator(ids...),
	}
}

// run executes one command line with stdin and returns captured output.
func (c *testCLI) run(stdin string, args ...string) (stdout, stderr string, err error) {
	c.t.Helper()
	opts := &RootOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		IDGen:  c.ids,
		Now:    func() int64 { return fixedNowMs },
	}
	cmd := newRootCommand(opts)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", c.db}, args...))

	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// mustRun fails the test if the command errors.
func (c *testCLI) mustRun(args ...string) string {
	c.t.Helper()
	out, errOut, err := c.run("", args...)
	require.NoError(c.t, err, "args %v\nstdout: %s\nstderr: %s", args, out, errOut)
	return out
}

// decodeResponse decodes a JSON CLIResponse, with Data decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return CLIResponse{Status: resp.Status, Error: resp.Error}
}
