package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/canon"
)

// HashResult is the canonical form of a JSON value and its digests.
type HashResult struct {
	Canonical string `json:"canonical"`
	Hash      string `json:"hash"`
	Short     string `json:"short"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := rootOpts

	return &cobra.Command{
		Use:   "hash <json>",
		Short: "Print the canonical JSON and SHA-256 of a value",
		Long: `Encode a JSON value canonically (sorted keys, no whitespace, floats
rounded to 6 decimals) and print it with its SHA-256 digest. Use - to read
the value from stdin.

Examples:
  autus hash '{"b":1,"a":[0.1234567]}'
  echo '[1,2,3]' | autus hash -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)

			data := []byte(args[0])
			if args[0] == "-" {
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return out.Fail(ExitCommandError, ErrCodeInput, "failed to read stdin", err)
				}
			}

			v, err := canon.ParseJSON(data)
			if err != nil {
				return out.Fail(ExitCommandError, failureCode(err, ErrCodeInput), "invalid JSON", err)
			}
			b, err := canon.MarshalCanonical(v)
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeSerialization, "value has no canonical form", err)
			}

			full := canon.Hash(b)
			result := HashResult{Canonical: string(b), Hash: full, Short: canon.Short(full)}
			return out.Success(result, func(w io.Writer) {
				fmt.Fprintln(w, result.Canonical)
				fmt.Fprintln(w, result.Hash)
			})
		},
	}
}
