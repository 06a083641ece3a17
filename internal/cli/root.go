// Package cli holds the bookshelf command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entrypoint"
)

type rootFlags struct {
	dbPath  string
	noColor bool
}

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand(version string) *cobra.Command {
	flags := &rootFlags{}
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "bookshelf",
		Short:         "Import, export and move reading data between services",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initColor(flags.noColor)
			config.LoadEnvFiles()
			cfg = config.NewConfig()
			if flags.dbPath != "" {
				cfg.Database.Path = flags.dbPath
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			entrypoint.Run(cfg, version)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Path to the database file (default: $DATABASE_PATH or "+config.DefaultDatabasePath+")")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	current := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(current, version),
		newImportCmd(current),
		newExportCmd(current),
		newJobsCmd(current),
	)
	return root
}

// Execute runs the command line and exits non-zero on error.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func newServeCmd(cfg func() *config.Config, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entrypoint.Run(cfg(), version)
			return nil
		},
	}
}

// openApp builds the services against the configured database.
func openApp(cfg *config.Config) (*entrypoint.App, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return entrypoint.NewApp(cfg)
}

func initColor(noColor bool) {
	if noColor {
		color.NoColor = true
		return
	}
	if fi, err := os.Stdout.Stat(); err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		color.NoColor = true
	}
}

func ok(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.GreenString("✓"), fmt.Sprintf(format, a...))
}

func warn(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.YellowString("!"), fmt.Sprintf(format, a...))
}

func header(w io.Writer, title string) {
	fmt.Fprintln(w, color.New(color.Bold).Sprintf("=== %s ===", title))
}
