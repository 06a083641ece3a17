package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entrypoint"
	"github.com/mrlokans/bookshelf/internal/exporters"
)

type ExportCommand struct {
	UserID string
	Format string
	Types  []string
	From   string
	To     string
	// OutPath is a file or directory; "-" writes to Out.
	OutPath string

	Out io.Writer
	Log io.Writer
}

func newExportCmd(cfg func() *config.Config) *cobra.Command {
	ec := &ExportCommand{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a library as JSON, CSV or Goodreads CSV",
		Long: `Export a user's library from the local database.

Examples:
  bookshelf export --format json --out backup.json
  bookshelf export --format goodreads --out ./exports/
  bookshelf export --types userBooks,readingSessions --from 2024-01-01 --out -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg())
			if err != nil {
				return err
			}
			defer app.Close()
			ec.Out = cmd.OutOrStdout()
			ec.Log = cmd.ErrOrStderr()
			_, err = ec.Run(cmd.Context(), app)
			return err
		},
	}
	cmd.Flags().StringVarP(&ec.UserID, "user", "u", config.DefaultUserID, "User whose library is exported")
	cmd.Flags().StringVar(&ec.Format, "format", string(canonical.FormatJSON), "Output format: json, csv or goodreads")
	cmd.Flags().StringSliceVar(&ec.Types, "types", nil, "Record types to include (default: all)")
	cmd.Flags().StringVar(&ec.From, "from", "", "Only reading sessions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ec.To, "to", "", "Only reading sessions on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&ec.OutPath, "out", "o", ".", "Output file or directory, or - for stdout")
	return cmd
}

// Run exports the library and returns the path written, or "-".
func (ec *ExportCommand) Run(ctx context.Context, app *entrypoint.App) (string, error) {
	if ec.Out == nil {
		ec.Out = os.Stdout
	}
	if ec.Log == nil {
		ec.Log = os.Stderr
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := ec.options()
	if err != nil {
		return "", err
	}
	payload, err := app.Exports.Export(ctx, ec.UserID, opts)
	if err != nil {
		return "", err
	}

	if ec.OutPath == "-" {
		_, err := ec.Out.Write(payload.Body)
		return "-", err
	}

	path := ec.OutPath
	if path == "" {
		path = "."
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, payload.Filename)
	}
	if err := os.WriteFile(path, payload.Body, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	ok(ec.Log, "Exported %d records to %s", payload.Metadata.TotalRecords, path)
	return path, nil
}

func (ec *ExportCommand) options() (exporters.Options, error) {
	format, err := canonical.ParseFormat(ec.Format)
	if err != nil {
		return exporters.Options{}, err
	}
	opts := exporters.Options{Format: format}
	for _, raw := range ec.Types {
		t, err := canonical.ParseRecordType(strings.TrimSpace(raw))
		if err != nil {
			return opts, err
		}
		opts.DataTypes = append(opts.DataTypes, t)
	}

	from, err := parseDay("from", ec.From)
	if err != nil {
		return opts, err
	}
	to, err := parseDay("to", ec.To)
	if err != nil {
		return opts, err
	}
	if from != nil || to != nil {
		opts.DateRange = &canonical.DateRange{From: from, To: to}
	}
	return opts, nil
}

func parseDay(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", name, raw)
	}
	return &t, nil
}
