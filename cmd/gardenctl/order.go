package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:   "order <patch>",
	Short: "Print the per-tick processing order of a patch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		g, err := loadGarden(cfg, logger, args[0], nil)
		if err != nil {
			return err
		}

		ids, err := g.Order()
		if err != nil {
			return err
		}

		snap := g.Snapshot()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tTYPE\tID")

		for i, id := range ids {
			d, _ := snap.Node(id)
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, d.Name, d.TypeID, id)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.Flags().Bool("json", false, "Print the ordered node IDs as JSON")
}
