// cmd/multiselect/serve.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/multiselect/pkg/attach"
	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/resource"
	"github.com/chmenegatti/multiselect/pkg/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the multiselect HTTP endpoints",
		Long: `Starts the HTTP server with the resources declared in the configuration.
The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			catalog, err := resource.FromConfig(cfg.Resources)
			if err != nil {
				return err
			}

			ds, err := dialects.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer ds.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pivots, closeStore, err := openPivotStore(ctx, cfg.Relations, ds, catalog, logger)
			if err != nil {
				return fmt.Errorf("failed to open relations store: %w", err)
			}
			defer func() {
				if err := closeStore(context.Background()); err != nil {
					logger.Error("closing relations store", "error", err)
				}
			}()

			repo := resource.NewRepository(ds, logger)
			srv := server.New(
				cfg.Server,
				cfg.Auth.Users,
				catalog,
				attach.NewController(catalog, repo, pivots, logger),
				resource.NewSaver(repo, pivots, logger),
				logger,
			)
			logger.Info("starting", "dialect", cfg.Database.Dialect, "relations", cfg.Relations.Store,
				"resources", len(catalog.Types()))
			return srv.ListenAndServe(ctx)
		},
	}
}
