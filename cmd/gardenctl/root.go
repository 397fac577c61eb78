package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-garden/internal/config"
	"github.com/cwbudde/algo-garden/internal/garden"
	"github.com/cwbudde/algo-garden/internal/logging"
	"github.com/cwbudde/algo-garden/internal/metrics"
	"github.com/cwbudde/algo-garden/internal/patch"
)

// Version is the release reported by the version command and the MCP server.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "gardenctl",
	Short:         "gardenctl drives real-time audio/MIDI processing graphs",
	Long:          `gardenctl builds processing graphs from patch files, renders them offline and serves them for inspection over HTTP and MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// setup loads the configuration and builds the logger shared by all
// commands.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}

	return cfg, logging.New(level), nil
}

// loadGarden builds a garden and loads the patch at path, falling back to
// the configured patch.
func loadGarden(cfg config.Config, logger *slog.Logger, path string, collector *metrics.Collector) (*garden.Garden, error) {
	if path == "" {
		path = cfg.Patch
	}

	opts := []garden.Option{garden.WithLogger(logger)}
	if collector != nil {
		opts = append(opts, garden.WithMetrics(collector))
	}

	g := garden.New(cfg.Processor(), opts...)

	if path == "" {
		return g, nil
	}

	p, err := patch.Load(path)
	if err != nil {
		return nil, err
	}

	if err := g.LoadPatch(p); err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}

	return g, nil
}

func patchArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return ""
}
