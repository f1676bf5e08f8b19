package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/harness"
	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/script"
	"github.com/roach88/autus/internal/testutil"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	StartMs int64
	StepMs  int64
}

// ApplyResult is the outcome of applying a script.
type ApplyResult struct {
	Script    string          `json:"script"`
	SessionID string          `json:"session_id"`
	Pass      bool            `json:"pass"`
	Markers   []kernel.Marker `json:"markers"`
	Errors    []string        `json:"errors,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <script.yaml>",
		Short: "Run a script of commits against the database",
		Long: `Run a YAML script of commits against its session, persisting every
commit, then check the script's expectations.

Commits without timestamp_ms take timestamps from a clock starting at
--start-ms and advancing by --step-ms.

Exit codes:
  0 - All commits applied and expectations held
  1 - An expectation failed
  2 - Command error (invalid script, rejected patch, database error)

Examples:
  autus apply scripts/energy-push.yaml
  autus apply scripts/energy-push.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd, args[0])
		},
	}

	cmd.Flags().Int64Var(&opts.StartMs, "start-ms", testutil.DefaultStartMs, "first clock timestamp in unix milliseconds")
	cmd.Flags().Int64Var(&opts.StepMs, "step-ms", testutil.DefaultStepMs, "clock step in milliseconds")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	sc, err := script.Load(path)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeScript, "invalid script", err)
	}

	s, err := opts.openStore()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer s.Close()

	result, err := harness.RunContext(ctx, sc,
		harness.WithRegistry(opts.registry(s)),
		harness.WithClock(testutil.NewMillisClock(opts.StartMs, opts.StepMs)),
		harness.WithLogger(opts.Logger),
	)
	if err != nil {
		return out.Fail(ExitCommandError, failureCode(err, ErrCodeStore), "apply failed", err)
	}

	applied := ApplyResult{
		Script:    sc.Name,
		SessionID: sc.Session,
		Pass:      result.Pass,
		Markers:   result.Markers,
		Errors:    result.Errors,
	}

	if !result.Pass {
		if opts.Format == "json" {
			resp := CLIResponse{
				Status: "error",
				Data:   applied,
				Error: &CLIError{
					Code:    ErrCodeExpectation,
					Message: "expectations failed",
					Details: result.Errors,
				},
			}
			if err := out.encode(resp); err != nil {
				return err
			}
		} else {
			writeApply(out.Writer, applied, opts.Verbose)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("script %s: expectations failed", sc.Name))
	}

	return out.Success(applied, func(w io.Writer) {
		writeApply(w, applied, opts.Verbose)
	})
}

func writeApply(w io.Writer, r ApplyResult, verbose bool) {
	fmt.Fprintf(w, "Script %s: %d commit(s) on session %s\n", r.Script, len(r.Markers), r.SessionID)
	for _, m := range r.Markers {
		writeMarker(w, m, verbose)
	}
	if r.Pass {
		fmt.Fprintln(w, "✓ Expectations met")
		return
	}
	fmt.Fprintln(w, "✗ Expectations failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
