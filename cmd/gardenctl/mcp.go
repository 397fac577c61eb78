package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-garden/internal/introspect"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [patch]",
	Short: "Serve graph introspection tools over MCP (stdio)",
	Long: `Builds the patch and exposes graph_snapshot, graph_processing_order,
graph_signal_path and engine_stats as Model Context Protocol tools on stdin
and stdout. Logs go to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		g, err := loadGarden(cfg, logger, patchArg(args), nil)
		if err != nil {
			return err
		}

		log.SetOutput(os.Stderr)
		logger.Info("starting MCP server (stdio)")

		return introspect.NewMCPServer(g, Version).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
