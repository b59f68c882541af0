// cmd/multiselect/main.go
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/multiselect/pkg/config"
	"github.com/chmenegatti/multiselect/pkg/logging"

	// Register every SQL dialect.
	_ "github.com/chmenegatti/multiselect/pkg/dialects/mysql"
	_ "github.com/chmenegatti/multiselect/pkg/dialects/postgres"
	_ "github.com/chmenegatti/multiselect/pkg/dialects/sqlite"
	_ "github.com/chmenegatti/multiselect/pkg/dialects/sqlserver"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile string
}

// load reads the configuration named by --config (or the default search
// path) and builds the logger it describes.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return cfg, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, logging.New(cfg.Logging), nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "multiselect",
		Short: "Multiselect field service and pivot table migrations",
		Long: `The multiselect CLI serves the multiselect field endpoints
(relationship candidates, field descriptors and two-phase saves) and
manages the migrations of the pivot tables behind relationship fields.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "Configuration file (default is ./multiselect.yaml or $HOME/.multiselect/multiselect.yaml)")

	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: '%s'\n", err)
		os.Exit(1)
	}
}
