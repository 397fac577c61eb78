package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-garden/internal/config"
	"github.com/cwbudde/algo-garden/internal/snapshotstore"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Store and fetch graph snapshots in Redis",
}

func openStore(cmd *cobra.Command) (*snapshotstore.Store, config.Config, *slog.Logger, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}

	if addr, _ := cmd.Flags().GetString("redis"); addr != "" {
		cfg.Redis.Addr = addr
	}

	if cfg.Redis.Addr == "" {
		return nil, cfg, nil, errors.New("no redis address: set redis.addr or --redis")
	}

	store := snapshotstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		snapshotstore.WithPrefix(cfg.Redis.Prefix), snapshotstore.WithTTL(cfg.Redis.TTL))

	return store, cfg, logger, nil
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <name> <patch>",
	Short: "Build a patch and store its snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, logger, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		g, err := loadGarden(cfg, logger, args[1], nil)
		if err != nil {
			return err
		}

		if err := store.Save(cmd.Context(), args[0], g.Snapshot()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved snapshot %q\n", args[0])

		return nil
	},
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Print a stored snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(snap)
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, _, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.List(cmd.Context())
		if err != nil {
			return err
		}

		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}

		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Delete(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.PersistentFlags().String("redis", "", "Redis address, overriding redis.addr")
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd, snapshotListCmd, snapshotDeleteCmd)
}
