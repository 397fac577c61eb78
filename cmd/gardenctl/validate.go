package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <patch>",
	Short: "Check a patch for unknown types, bad ports and cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		g, err := loadGarden(cfg, logger, args[0], nil)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		if _, err := g.Order(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		snap := g.Snapshot()
		fmt.Fprintf(cmd.OutOrStdout(), "Patch is valid: %d nodes, %d edges\n", len(snap.Nodes), len(snap.Edges))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
