package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-garden/dsp/engine"
	"github.com/cwbudde/algo-garden/dsp/signal"
	"github.com/cwbudde/algo-garden/measure/probe"
)

type renderReport struct {
	Ticks   int           `json:"ticks"`
	Seconds float64       `json:"seconds"`
	Stats   engine.Stats  `json:"stats"`
	Probe   *probe.Result `json:"probe,omitempty"`
}

var renderCmd = &cobra.Command{
	Use:   "render <patch>",
	Short: "Run a patch offline for a number of ticks",
	Long: `Runs the reference engine over the patch and prints engine counters. With
--probe NODE the audio at the node's port is recorded and analyzed for level
and dominant frequency.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		ticks, _ := cmd.Flags().GetInt("ticks")
		probeRef, _ := cmd.Flags().GetString("probe")
		port, _ := cmd.Flags().GetString("port")

		if ticks <= 0 {
			return errors.New("--ticks must be positive")
		}

		g, err := loadGarden(cfg, logger, args[0], nil)
		if err != nil {
			return err
		}

		pc := g.Config()

		var visit func(*engine.Engine) error

		var rec *probe.Recorder

		if probeRef != "" {
			id, err := g.Resolve(probeRef)
			if err != nil {
				return err
			}

			rec = probe.NewRecorder(ticks*pc.BlockSize, pc.Channels)
			visit = func(e *engine.Engine) error {
				buf, err := e.OutputBuffer(id, port)
				if err != nil {
					buf, err = e.InputBuffer(id, port)
				}

				if err != nil {
					return fmt.Errorf("probe %s: %w", probeRef, err)
				}

				audio, ok := buf.(*signal.AudioBuffer)
				if !ok {
					return fmt.Errorf("probe %s: port %q is not audio", probeRef, port)
				}

				rec.Append(audio.Samples)

				return nil
			}
		}

		if err := g.Render(ticks, visit); err != nil {
			return err
		}

		report := renderReport{
			Ticks:   ticks,
			Seconds: float64(ticks*pc.BlockSize) / pc.SampleRate,
			Stats:   g.Stats(),
		}

		if rec != nil {
			res, err := rec.Analyze(pc.SampleRate)
			if err != nil {
				return err
			}

			report.Probe = &res
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().IntP("ticks", "n", 100, "Number of blocks to render")
	renderCmd.Flags().String("probe", "", "Node (name or UUID) whose audio is analyzed")
	renderCmd.Flags().String("port", "out", "Port of the probed node; inputs are tried when no output matches")
}
