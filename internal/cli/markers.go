package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewMarkersCommand creates the markers command.
func NewMarkersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	return &cobra.Command{
		Use:   "markers <session>",
		Short: "List a session's commit markers in seq order",
		Long: `List the markers of every commit in the session, oldest first.

Examples:
  autus markers 0190...
  autus markers 0190... -v
  autus markers 0190... --format json`,
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

			if _, err := requireSession(cmd.Context(), out, s, args[0]); err != nil {
				return err
			}
			markers, err := s.ReadMarkers(cmd.Context(), args[0])
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeStore, "failed to read markers", err)
			}
			return out.Success(markers, func(w io.Writer) {
				if len(markers) == 0 {
					fmt.Fprintln(w, "No commits yet.")
					return
				}
				for _, m := range markers {
					writeMarker(w, m, opts.Verbose)
				}
			})
		},
	}
}
