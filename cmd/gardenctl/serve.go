package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-garden/internal/introspect"
	"github.com/cwbudde/algo-garden/internal/metrics"
	"github.com/cwbudde/algo-garden/internal/snapshotstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve [patch]",
	Short: "Run a patch in real time and serve the introspection API",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		collector := metrics.New()

		g, err := loadGarden(cfg, logger, patchArg(args), collector)
		if err != nil {
			return err
		}

		opts := []introspect.HandlerOption{
			introspect.WithLogger(logger),
			introspect.WithMetrics(collector.Handler()),
		}

		if cfg.Redis.Addr != "" {
			store := snapshotstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				snapshotstore.WithPrefix(cfg.Redis.Prefix), snapshotstore.WithTTL(cfg.Redis.TTL))
			defer store.Close()

			opts = append(opts, introspect.WithSnapshotStore(store))
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           introspect.NewHandler(g, opts...),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errs := make(chan error, 2)

		go func() {
			logger.Info("introspection server listening", "addr", srv.Addr)
			errs <- srv.ListenAndServe()
		}()

		go func() {
			errs <- g.Play(ctx)
		}()

		select {
		case err := <-errs:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "error", err)
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "error", err)
			return srv.Close()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address, overriding server.addr")
}
