package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/autus/internal/node"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	*RootOptions
	Mass      float64
	Energy    float64
	Sigma     float64
	Density   float64
	Stability float64
}

// ClassifyResult echoes the inputs with the derived node type.
type ClassifyResult struct {
	Mass      float64   `json:"mass"`
	Energy    float64   `json:"energy"`
	Sigma     float64   `json:"sigma"`
	Density   float64   `json:"density"`
	Stability *float64  `json:"stability,omitempty"`
	NodeType  node.Type `json:"node_type"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify scalars into a node type",
		Long: `Classify scalars with the same rules commits use. Without --stability
the STABLE rule cannot match.

Examples:
  autus classify --mass 0.5 --energy 0.2 --sigma 0.3 --density 0.5
  autus classify --mass 0.5 --energy 0.5 --sigma 0.2 --density 0.5 --stability 0.8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := ClassifyResult{
				Mass:    opts.Mass,
				Energy:  opts.Energy,
				Sigma:   opts.Sigma,
				Density: opts.Density,
			}
			if cmd.Flags().Changed("stability") {
				result.Stability = node.Ptr(opts.Stability)
			}
			result.NodeType = node.Classify(result.Mass, result.Energy, result.Sigma, result.Density, result.Stability)

			return opts.formatter(cmd).Success(result, func(w io.Writer) {
				fmt.Fprintln(w, result.NodeType)
			})
		},
	}

	cmd.Flags().Float64Var(&opts.Mass, "mass", 0, "mass (required)")
	cmd.Flags().Float64Var(&opts.Energy, "energy", 0, "energy (required)")
	cmd.Flags().Float64Var(&opts.Sigma, "sigma", 0, "sigma (required)")
	cmd.Flags().Float64Var(&opts.Density, "density", 0, "density (required)")
	cmd.Flags().Float64Var(&opts.Stability, "stability", 0, "stability (optional)")
	for _, name := range []string{"mass", "energy", "sigma", "density"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
