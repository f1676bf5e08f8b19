package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/canon"
	"github.com/roach88/autus/internal/patch"
)

// StageOptions holds flags for the stage command.
type StageOptions struct {
	*RootOptions
	Page  int
	Patch string
}

// StageResult is the draft after a patch was staged.
type StageResult struct {
	SessionID string      `json:"session_id"`
	Draft     patch.Draft `json:"draft"`
	DraftHash string      `json:"draft_hash"`
}

// NewStageCommand creates the stage command.
func NewStageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stage <session>",
		Short: "Validate a patch and merge it into a session's draft",
		Long: `Validate a page patch and merge it into the session's draft. Nothing
is committed; the draft is saved with the session snapshot.

Without --page the patch must carry its own "page" key. Use --patch - to read
the patch from stdin.

Examples:
  autus stage 0190... --page 3 --patch '{"allocations":{"E":2,"S":1}}'
  autus stage 0190... --patch '{"page":1,"mass_modifier":0.2}'
  echo '{"ops":[{"type":"CREATE","op_id":"op-1","timestamp_ms":0,"node_id":"n1"}]}' | autus stage 0190... --page 2 --patch -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Page, "page", 0, "page the patch targets (1, 2 or 3)")
	cmd.Flags().StringVar(&opts.Patch, "patch", "", "patch as a JSON object, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("patch")

	return cmd
}

func runStage(opts *StageOptions, cmd *cobra.Command, sessionID string) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	raw, err := readPatch(opts.Patch, cmd.InOrStdin())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid patch", err)
	}

	s, err := opts.openStore()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer s.Close()

	if _, err := requireSession(ctx, out, s, sessionID); err != nil {
		return err
	}

	reg := opts.registry(s)
	if cmd.Flags().Changed("page") {
		err = reg.Stage(ctx, sessionID, patch.Page(opts.Page), raw)
	} else {
		err = reg.StageDocuments(ctx, sessionID, raw)
	}
	if err != nil {
		return out.Fail(ExitCommandError, failureCode(err, ErrCodeStore), "patch rejected", err)
	}

	st, _ := reg.Snapshot(sessionID)
	if err := s.SaveSnapshot(ctx, st); err != nil {
		return out.Fail(ExitCommandError, failureCode(err, ErrCodeStore), "failed to save draft", err)
	}
	draftHash, err := st.Draft.Hash()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeSerialization, "failed to hash draft", err)
	}

	out.VerboseLog("staged patch for session %s", sessionID)
	result := StageResult{SessionID: sessionID, Draft: st.Draft, DraftHash: draftHash}
	return out.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "staged draft %s for session %s\n", canon.Short(draftHash), sessionID)
		if opts.Verbose {
			if data, err := canon.MarshalCanonical(st.Draft.Canonical()); err == nil {
				fmt.Fprintf(w, "  %s\n", data)
			}
		}
	})
}

// readPatch decodes a JSON object from arg, or from stdin when arg is "-".
// Numbers are kept as json.Number so integer and float literals survive.
func readPatch(arg string, stdin io.Reader) (map[string]any, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode patch: trailing data after object")
	}
	if raw == nil {
		return nil, fmt.Errorf("decode patch: expected a JSON object")
	}
	return raw, nil
}
