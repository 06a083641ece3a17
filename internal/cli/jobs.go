package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/jobs"
)

func newJobsCmd(cfg func() *config.Config) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and roll back import jobs",
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", config.DefaultUserID, "User that owns the jobs")

	list := &cobra.Command{
		Use:   "list",
		Short: "List import jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			all, err := app.Imports.Jobs().List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No import jobs")
				return nil
			}
			for _, job := range all {
				fmt.Fprintf(out, "%s  %-10s  %3d%%  %s  %s\n",
					job.ID, statusText(job.Status), job.Progress, job.Format, job.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state and summary of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			job, err := app.Imports.Jobs().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if job.UserID != userID {
				return jobs.ErrNotFound
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback <job-id>",
		Short: "Delete the records a finished import added",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			removed, err := app.Imports.Rollback(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Removed %d records added by job %s", removed, args[0])
			return nil
		},
	}

	cmd.AddCommand(list, status, rollback)
	return cmd
}

func statusText(s jobs.Status) string {
	switch s {
	case jobs.StatusCompleted:
		return color.GreenString(string(s))
	case jobs.StatusFailed:
		return color.RedString(string(s))
	case jobs.StatusCancelled:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func printJob(w io.Writer, job *jobs.Job) {
	fmt.Fprintf(w, "Job: %s\n", job.ID)
	fmt.Fprintf(w, "Status: %s (%d%%, %d/%d records)\n", statusText(job.Status), job.Progress, job.Processed, job.TotalRecords)
	if job.Strategy != "" {
		fmt.Fprintf(w, "Strategy: %s\n", job.Strategy)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", job.Error)
	}
	if job.Summary == nil {
		return
	}
	fmt.Fprintf(w, "%-16s %6s %8s %8s %7s\n", "", "added", "updated", "skipped", "failed")
	for _, t := range canonical.AllRecordTypes {
		c := job.Summary.For(t)
		fmt.Fprintf(w, "%-16s %6d %8d %8d %7d\n", t, c.Added, c.Updated, c.Skipped, c.Failed)
	}
	for _, msg := range job.Summary.Warnings {
		warn(w, "%s", msg)
	}
}
