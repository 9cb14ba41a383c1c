package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the model weights in use",
		Long:  "Loads the configured weights, validates layer shapes and prints the layer stack.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, store, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			network, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source:     %s\n", cfg.Model.Weights)
			if network.Name() != "" {
				fmt.Fprintf(out, "name:       %s\n", network.Name())
			}
			fmt.Fprintf(out, "input_dim:  %d\n", network.InputDim())
			fmt.Fprintf(out, "timesteps:  %d\n", network.Timesteps())
			fmt.Fprintf(out, "seq_length: %d\n", cfg.Model.SeqLength)
			fmt.Fprintln(out, "layers:")
			for i, l := range network.Layers() {
				fmt.Fprintf(out, "  %d. %s\n", i+1, l)
			}
			return nil
		},
	}
}
