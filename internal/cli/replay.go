package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	SessionID string // optional - specific session only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []store.ReplayReport `json:"sessions"`
	TotalSessions    int                  `json:"total_sessions"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stored commits and verify determinism",
		Long: `Rebuild each session from its initial state by re-committing every
journaled draft with its recorded timestamp, and compare each recomputed
marker hash with the stored one.

Exit codes:
  0 - All sessions are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  autus replay --db ./autus.db
  autus replay --db ./autus.db --session 0190...
  autus replay --db ./autus.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	s, err := opts.openStore()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer s.Close()

	var reports []store.ReplayReport
	if opts.SessionID != "" {
		if _, err := requireSession(ctx, out, s, opts.SessionID); err != nil {
			return err
		}
		report, err := s.ReplaySession(ctx, opts.SessionID)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to replay session %s", opts.SessionID), err)
		}
		reports = []store.ReplayReport{report}
	} else {
		reports, err = s.ReplayAll(ctx)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeStore, "failed to replay sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         reports,
		TotalSessions:    len(reports),
		AllDeterministic: true,
	}
	for _, r := range reports {
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, r := range result.Sessions {
		status := "✓"
		if !r.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, r.SessionID)
		fmt.Fprintf(w, "  Commits: %d\n", r.Commits)
		if verbose {
			fmt.Fprintf(w, "  Final hash: %s\n", shortOrEmpty(r.FinalHash))
		}

		if !r.Deterministic {
			fmt.Fprintf(w, "  Diverged at seq %d (%s)\n", r.DivergedAt, r.Reason)
			if verbose {
				fmt.Fprintf(w, "    expected: %s\n", shortOrEmpty(r.Expected))
				fmt.Fprintf(w, "    got:      %s\n", shortOrEmpty(r.Got))
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
