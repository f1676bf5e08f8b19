package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/kernel"
	"github.com/roach88/autus/internal/store"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and list sessions",
	}
	cmd.AddCommand(newSessionNewCommand(rootOpts))
	cmd.AddCommand(newSessionListCommand(rootOpts))
	return cmd
}

func newSessionNewCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a session with a fresh UUIDv7 id",
		Long: `Create a session in its initial SIM state and print its id.

Examples:
  autus session new
  autus session new --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			s, err := opts.openStore()
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
			}
			defer s.Close()

			id := opts.IDGen.Generate()
			if err := s.SaveSnapshot(cmd.Context(), kernel.NewState(id)); err != nil {
				return out.Fail(ExitCommandError, ErrCodeStore, "failed to save session", err)
			}
			return out.Success(map[string]string{"session_id": id}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}
}

func newSessionListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored sessions with their sequence and last hash",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			s, err := opts.openStore()
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
			}
			defer s.Close()

			sessions, err := s.ListSessions(cmd.Context())
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
			}
			return out.Success(sessions, func(w io.Writer) {
				if len(sessions) == 0 {
					fmt.Fprintln(w, "No sessions found in database.")
					return
				}
				for _, info := range sessions {
					fmt.Fprintf(w, "%s  seq=%d  last_hash=%s\n", info.ID, info.Seq, shortOrEmpty(info.LastHash))
				}
			})
		},
	}
}

// requireSession fails with E_NOT_FOUND when the session was never saved.
func requireSession(ctx context.Context, out *OutputFormatter, s *store.Store, id string) (*kernel.State, error) {
	st, found, err := s.LoadSession(ctx, id)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, "failed to load session", err)
	}
	if !found {
		return nil, out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session %q not found", id), nil)
	}
	return st, nil
}

func shortOrEmpty(hash string) string {
	if hash == "" {
		return "-"
	}
	return canon.Short(hash)
}
