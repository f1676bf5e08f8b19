package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/node"
)

// ShowResult is a session's current state with its derived node type.
type ShowResult struct {
	State     kernel.View `json:"state"`
	NodeType  node.Type   `json:"node_type"`
	LastHash  string      `json:"last_hash"`
	DraftHash string      `json:"draft_hash"`
	Pending   bool        `json:"pending"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	return &cobra.Command{
		Use:   "show <session>",
		Short: "Print a session's state and node type",
		Long: `Print the session's latest committed state, its node type, and whether
a non-default draft is waiting to be committed.

Examples:
  autus show 0190...
  autus show 0190... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			s, err := opts.openStore()
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
			}
			defer s.Close()

			st, err := requireSession(cmd.Context(), out, s, args[0])
			if err != nil {
				return err
			}
			draftHash, err := st.Draft.Hash()
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeSerialization, "failed to hash draft", err)
			}

			result := ShowResult{
				State:     st.View(),
				NodeType:  st.NodeType(),
				LastHash:  st.LastHash,
				DraftHash: draftHash,
				Pending:   !st.Draft.IsDefault(),
			}
			return out.Success(result, func(w io.Writer) {
				writeState(w, result)
			})
		},
	}
}

func writeState(w io.Writer, r ShowResult) {
	v := r.State
	fmt.Fprintf(w, "session %s  seq %d  %s  %s\n", v.SessionID, v.Seq, v.Mode, r.NodeType)
	fmt.Fprintf(w, "  mass %g  energy %g  pressure %g  leak %g\n", v.Mass, v.Energy, v.Pressure, v.Leak)
	fmt.Fprintf(w, "  volume %g  sigma %g  density %g  stability %g\n", v.Volume, v.Sigma, v.Density, v.Stability)
	fmt.Fprintf(w, "  horizon %s  mass_filter %g  anchor [%g %g]\n", v.Horizon, v.MassFilter, v.Anchor[0], v.Anchor[1])
	fmt.Fprintf(w, "  nodes %d  last_hash %s\n", len(v.Nodes), shortOrEmpty(r.LastHash))
	if r.Pending {
		fmt.Fprintf(w, "  draft %s pending\n", shortOrEmpty(r.DraftHash))
	}
}
