// cmd/multiselect/migrate.go
package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/dialects"
	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/migration"
	"github.com/chmenegatti/multiselect/pkg/resource"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Allows creating, applying (up), reverting (down), and checking the status of migrations, and printing the pivot table DDL of the declared resources.`,
	}
	cmd.AddCommand(
		newMigrateCreateCmd(opts),
		newMigrateUpCmd(opts),
		newMigrateDownCmd(opts),
		newMigrateStatusCmd(opts),
		newMigrateSQLCmd(opts),
	)
	return cmd
}

// pivotSQL renders the pivot tables of the configured resources.
func pivotSQL(cfg config.Config) (up, down []string, err error) {
	catalog, err := resource.FromConfig(cfg.Resources)
	if err != nil {
		return nil, nil, err
	}
	d, err := dialectFor(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	up, down = migration.PivotSQL(d, catalog.Pivots())
	return up, down, nil
}

// withRunner connects to the database and hands a runner to fn.
func withRunner(cfg config.Config, logger *slog.Logger, fn func(*migration.Runner) error) error {
	ds, err := dialects.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func(ds common.DataSource) {
		if err := ds.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}(ds)
	return fn(migration.NewRunner(ds, cfg.Migration, logger))
}

func newMigrateCreateCmd(opts *rootOptions) *cobra.Command {
	var pivots bool
	cmd := &cobra.Command{
		Use:   "create <migration_name>",
		Short: "Create a new SQL migration file",
		Long: `Creates a new timestamped SQL migration file in the configured migration directory.
With --pivots the file is filled with the pivot tables of the declared resources.
Example: multiselect migrate create AddPostTags --pivots`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			var up, down []string
			if pivots {
				if up, down, err = pivotSQL(cfg); err != nil {
					return err
				}
			}
			// Creating a file does not need a connection.
			path, err := migration.NewRunner(nil, cfg.Migration, logger).Create(args[0], up, down)
			if err != nil {
				return fmt.Errorf("migration create command failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created migration file: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pivots, "pivots", false, "Fill the migration with the pivot tables of the configured resources")
	return cmd
}

func newMigrateUpCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Long:  `Executes the 'Up' section of every migration that has not yet been applied to the database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			return withRunner(cfg, logger, func(r *migration.Runner) error {
				ids, err := r.Up(cmd.Context())
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", id)
				}
				if err != nil {
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
				}
				return nil
			})
		},
	}
}

func newMigrateDownCmd(opts *rootOptions) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the last applied migration(s)",
		Long:  `Executes the 'Down' section of the specified number of last applied migrations. Defaults to reverting one migration.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			return withRunner(cfg, logger, func(r *migration.Runner) error {
				ids, err := r.Down(cmd.Context(), steps)
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "Reverted %s\n", id)
				}
				if err != nil {
					return fmt.Errorf("failed to revert migrations: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "s", 1, "Number of migrations to revert")
	return cmd
}

func newMigrateStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of all migrations",
		Long:  `Displays which migrations have been applied and which are pending based on files in the migration directory and records in the database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			return withRunner(cfg, logger, func(r *migration.Runner) error {
				status, err := r.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("migration status command failed: %w", err)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, status []migration.Status) {
	out := cmd.OutOrStdout()
	if len(status) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return
	}
	for _, s := range status {
		switch {
		case s.Missing:
			fmt.Fprintf(out, "%-16s %-30s applied %s (file missing)\n", s.ID, "?", s.AppliedAt)
		case s.Applied:
			fmt.Fprintf(out, "%-16s %-30s applied %s\n", s.ID, s.Name, s.AppliedAt)
		default:
			fmt.Fprintf(out, "%-16s %-30s pending\n", s.ID, s.Name)
		}
	}
}

func newMigrateSQLCmd(opts *rootOptions) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the pivot table DDL of the configured resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			up, drop, err := pivotSQL(cfg)
			if err != nil {
				return err
			}
			stmts := up
			if down {
				stmts = drop
			}
			for _, s := range stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Print the DROP statements instead")
	return cmd
}
