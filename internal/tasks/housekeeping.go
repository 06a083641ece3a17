package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// AuditEventCleaner provides the ability to delete old audit events.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// UploadExpirer drops staged uploads past their expiry.
type UploadExpirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// JobPruner deletes finished jobs older than a retention period.
type JobPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

// CleanupRecorder is told about every housekeeping run. May be nil.
type CleanupRecorder interface {
	LogCleanup(action string, removed int, err error)
}

func housekeepingConfig(name string) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func record(rec CleanupRecorder, action string, removed int, err error) {
	if rec != nil {
		rec.LogCleanup(action, removed, err)
	}
}

// CleanupAuditEventsTask removes audit events older than RetentionDays.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return housekeepingConfig("cleanup_audit_events")
}

// CleanupAuditEventsProcessor creates a processor function for CleanupAuditEventsTask.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}

		days := task.RetentionDays
		if days <= 0 {
			days = 90
		}
		deleted, err := cleaner.DeleteOldEvents(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d audit events older than %d days", deleted, days)
		return nil
	}
}

// ExpireUploadsTask deletes staged uploads that were never confirmed.
type ExpireUploadsTask struct{}

func (t ExpireUploadsTask) Config() backlite.QueueConfig {
	return housekeepingConfig("expire_uploads")
}

// ExpireUploadsProcessor creates a processor function for ExpireUploadsTask.
func ExpireUploadsProcessor(store UploadExpirer, rec CleanupRecorder) backlite.QueueProcessor[ExpireUploadsTask] {
	return func(ctx context.Context, _ ExpireUploadsTask) error {
		if store == nil {
			return fmt.Errorf("upload store not configured")
		}
		n, err := store.DeleteExpired(ctx, time.Now())
		record(rec, "expire_uploads", n, err)
		if err != nil {
			return fmt.Errorf("expire uploads: %w", err)
		}
		if n > 0 {
			log.Printf("[TASK] Expired %d staged uploads", n)
		}
		return nil
	}
}

// PruneJobsTask deletes jobs that finished more than RetentionDays ago.
type PruneJobsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t PruneJobsTask) Config() backlite.QueueConfig {
	return housekeepingConfig("prune_jobs")
}

// PruneJobsProcessor creates a processor function for PruneJobsTask.
func PruneJobsProcessor(pruner JobPruner, rec CleanupRecorder) backlite.QueueProcessor[PruneJobsTask] {
	return func(ctx context.Context, task PruneJobsTask) error {
		if pruner == nil {
			return fmt.Errorf("job pruner not configured")
		}
		days := task.RetentionDays
		if days <= 0 {
			days = 30
		}
		n, err := pruner.Prune(ctx, time.Duration(days)*24*time.Hour)
		record(rec, "prune_jobs", n, err)
		if err != nil {
			return fmt.Errorf("prune jobs: %w", err)
		}
		return nil
	}
}

// Deps are the stores the housekeeping queues work on.
type Deps struct {
	Audit    AuditEventCleaner
	Uploads  UploadExpirer
	Jobs     JobPruner
	Recorder CleanupRecorder
}

// NewHousekeepingQueues creates the backlite queues for every housekeeping
// task.
func NewHousekeepingQueues(d Deps) []backlite.Queue {
	return []backlite.Queue{
		backlite.NewQueue(CleanupAuditEventsProcessor(d.Audit)),
		backlite.NewQueue(ExpireUploadsProcessor(d.Uploads, d.Recorder)),
		backlite.NewQueue(PruneJobsProcessor(d.Jobs, d.Recorder)),
	}
}
