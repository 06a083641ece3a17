package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// ImportTask runs one confirmed import job.
type ImportTask struct {
	JobID string `json:"job_id"`
}

// Config returns the queue configuration for import tasks. A job is never
// retried: a failed attempt has already been recorded on the job and may have
// written records.
func (t ImportTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_job",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     DefaultConfig().ImportTimeout,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ProcessFunc runs an import job to completion.
type ProcessFunc func(ctx context.Context, jobID string) error

// ImportProcessor creates a processor function for ImportTask.
func ImportProcessor(process ProcessFunc) backlite.QueueProcessor[ImportTask] {
	return func(ctx context.Context, task ImportTask) error {
		if process == nil {
			return fmt.Errorf("import processor not configured")
		}
		start := time.Now()
		if err := process(ctx, task.JobID); err != nil {
			return fmt.Errorf("import job %s: %w", task.JobID, err)
		}
		log.Printf("[TASK] Import job %s finished in %s", task.JobID, time.Since(start).Round(time.Millisecond))
		return nil
	}
}

// NewImportQueue creates a backlite queue for import tasks.
func NewImportQueue(process ProcessFunc) backlite.Queue {
	return backlite.NewQueue(ImportProcessor(process))
}
