package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/entrypoint"
	"github.com/mrlokans/bookshelf/internal/jobs"
	"github.com/mrlokans/bookshelf/internal/services"
)

// ImportCommand imports a file into a user's library without the server.
// The job runs in the foreground.
type ImportCommand struct {
	FilePath string
	UserID   string
	Format   string
	Strategy string
	Strict   bool
	DryRun   bool
	Verbose  bool

	Out io.Writer
}

func newImportCmd(cfg func() *config.Config) *cobra.Command {
	ic := &ImportCommand{}
	cmd := &cobra.Command{
		Use:   "import --file <path>",
		Short: "Import a JSON, CSV or Goodreads export into a library",
		Long: `Import a library file into the local database.

The format is detected from the file name and contents unless --format is set.
Duplicates of books already in the library are resolved with --strategy.

Examples:
  bookshelf import --file goodreads_library_export.csv
  bookshelf import --file backup.json --strategy merge --user alice
  bookshelf import --file books.csv --dry-run --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg())
			if err != nil {
				return err
			}
			defer app.Close()
			ic.Out = cmd.OutOrStdout()
			_, err = ic.Run(cmd.Context(), app)
			return err
		},
	}
	cmd.Flags().StringVarP(&ic.FilePath, "file", "f", "", "File to import (required)")
	cmd.Flags().StringVarP(&ic.UserID, "user", "u", config.DefaultUserID, "User that owns the imported records")
	cmd.Flags().StringVar(&ic.Format, "format", "", "Input format: json, csv or goodreads (detected when empty)")
	cmd.Flags().StringVarP(&ic.Strategy, "strategy", "s", string(canonical.DefaultStrategy), "Duplicate strategy: skip, update, merge or create_new")
	cmd.Flags().BoolVar(&ic.Strict, "strict", false, "Fail the whole import on the first invalid record")
	cmd.Flags().BoolVar(&ic.DryRun, "dry-run", false, "Preview the file without staging or importing it")
	cmd.Flags().BoolVarP(&ic.Verbose, "verbose", "v", false, "List duplicates and record errors")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// Run previews the file and, unless DryRun is set, imports it. A dry run
// leaves both the library and the staging area untouched. The finished job is
// returned; nil on a dry run.
func (ic *ImportCommand) Run(ctx context.Context, app *entrypoint.App) (*jobs.Job, error) {
	if ic.Out == nil {
		ic.Out = os.Stdout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var format canonical.Format
	if ic.Format != "" {
		f, err := canonical.ParseFormat(ic.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	file, err := os.Open(ic.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat import file: %w", err)
	}

	preview, err := app.Imports.Preview(ctx, services.PreviewRequest{
		UserID:   ic.UserID,
		Filename: filepath.Base(ic.FilePath),
		Format:   format,
		Size:     info.Size(),
		Body:     file,
		DryRun:   ic.DryRun,
	})
	if err != nil {
		return nil, err
	}

	header(ic.Out, "Preview")
	fmt.Fprintf(ic.Out, "File: %s (%s)\n", ic.FilePath, preview.Format)
	for _, t := range canonical.AllRecordTypes {
		if n := preview.Counts[t]; n > 0 {
			fmt.Fprintf(ic.Out, "  %-16s %d\n", t, n)
		}
	}
	fmt.Fprintf(ic.Out, "Total records: %d\n", preview.TotalRecords)
	ic.printDuplicates(preview.PreviewData.Duplicates)
	ic.printErrors(preview.PreviewData.Errors)

	if ic.DryRun {
		fmt.Fprintln(ic.Out, "\nDry run complete. Use without --dry-run to import.")
		return nil, nil
	}

	app.Imports.SetRunner(services.InlineRunner(app.Imports.Process))
	job, err := app.Imports.Confirm(ctx, services.ConfirmRequest{
		UserID:   ic.UserID,
		UploadID: preview.UploadID,
		Strategy: canonical.Strategy(ic.Strategy),
		Strict:   ic.Strict,
	})
	if err != nil {
		return nil, err
	}
	job, err = app.Imports.Jobs().Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(ic.Out)
	header(ic.Out, "Import Summary")
	printJob(ic.Out, job)
	if job.Summary != nil {
		ic.printErrors(job.Summary.Errors)
	}

	if job.Status != jobs.StatusCompleted {
		return job, fmt.Errorf("import %s: %s", job.Status, job.Error)
	}
	ok(ic.Out, "Imported %d books (rollback with: bookshelf jobs rollback %s)", job.Summary.BooksAdded(), job.ID)
	return job, nil
}

func (ic *ImportCommand) printDuplicates(dups []canonical.DuplicateMatch) {
	if len(dups) == 0 {
		return
	}
	warn(ic.Out, "%d possible duplicates of books already in the library", len(dups))
	if !ic.Verbose {
		return
	}
	for _, d := range dups {
		fmt.Fprintf(ic.Out, "  #%d %q ~ %q (%.2f, %s)\n", d.IncomingIndex, d.IncomingTitle, d.ExistingTitle, d.Score, d.Method)
	}
}

func (ic *ImportCommand) printErrors(errors []canonical.ImportError) {
	if len(errors) == 0 {
		return
	}
	warn(ic.Out, "%d records have errors", len(errors))
	if !ic.Verbose {
		return
	}
	for _, e := range errors {
		loc := fmt.Sprintf("#%d", e.Index)
		if e.Line > 0 {
			loc = fmt.Sprintf("line %d", e.Line)
		}
		fmt.Fprintf(ic.Out, "  [%s] %s: %s\n", e.Kind, loc, e.Message)
	}
}
