package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/kernel"
)

// CommitOptions holds flags for the commit command.
type CommitOptions struct {
	*RootOptions
	TimestampMs int64
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit <session>",
		Short: "Commit a session's draft and print the marker",
		Long: `Apply the session's draft in page order 3, 1, 2, reset the draft, and
append a hash-chained marker. The commit, the marker and the new snapshot are
written in one transaction.

Without --ts the current time is used.

Examples:
  autus commit 0190...
  autus commit 0190... --ts 1700000000000 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(opts, cmd, args[0])
		},
	}

	cmd.Flags().Int64Var(&opts.TimestampMs, "ts", 0, "commit timestamp in unix milliseconds")

	return cmd
}

func runCommit(opts *CommitOptions, cmd *cobra.Command, sessionID string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	s, err := opts.openStore()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer s.Close()

	if _, err := requireSession(ctx, out, s, sessionID); err != nil {
		return err
	}

	ts := opts.TimestampMs
	if !cmd.Flags().Changed("ts") {
		ts = opts.Now()
	}

	m, err := opts.registry(s).Commit(ctx, sessionID, ts)
	if err != nil {
		return out.Fail(ExitCommandError, failureCode(err, ErrCodeStore), "commit failed", err)
	}
	return out.Success(m, func(w io.Writer) {
		writeMarker(w, *m, opts.Verbose)
	})
}

// writeMarker renders one marker in text form.
func writeMarker(w io.Writer, m kernel.Marker, verbose bool) {
	fmt.Fprintf(w, "seq %d  %s  %s\n", m.Seq, m.StateHash, m.NodeType)
	if !verbose {
		return
	}
	fmt.Fprintf(w, "  hash:      %s\n", m.Hash)
	fmt.Fprintf(w, "  prev_hash: %s\n", shortOrEmpty(m.PrevHash))
	fmt.Fprintf(w, "  timestamp: %d\n", m.TimestampMs)
	fmt.Fprintf(w, "  steps:     %v\n", m.ProcessingSteps)
}
