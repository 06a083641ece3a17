// Package importjobs persists import job state so status survives restarts.
//
// # Interface Implementation
//
//	var _ jobs.Store = (*Repository)(nil)
package importjobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/jobs"
)

// Repository handles import job database operations.
type Repository struct {
	db *gorm.DB
}

var _ jobs.Store = (*Repository)(nil)

// NewRepository creates a new import job repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, job *jobs.Job) error {
	row := toEntity(job)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*jobs.Job, error) {
	var row entities.ImportJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromEntity(row), nil
}

// Update overwrites the stored job. Unknown ids return jobs.ErrNotFound.
func (r *Repository) Update(ctx context.Context, job *jobs.Job) error {
	row := toEntity(job)
	res := r.db.WithContext(ctx).Model(&entities.ImportJob{}).
		Where("id = ?", job.ID).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

// List returns jobs newest first. An empty userID lists every user's jobs.
func (r *Repository) List(ctx context.Context, userID string) ([]*jobs.Job, error) {
	var rows []entities.ImportJob
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*jobs.Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromEntity(row))
	}
	return out, nil
}

// DeleteFinishedBefore removes terminal jobs that finished before cutoff.
func (r *Repository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND finished_at IS NOT NULL AND finished_at < ?", terminalStatuses, cutoff.UTC()).
		Delete(&entities.ImportJob{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

var terminalStatuses = []entities.ImportJobStatus{
	entities.ImportJobCompleted,
	entities.ImportJobFailed,
	entities.ImportJobCancelled,
}

func toEntity(j *jobs.Job) entities.ImportJob {
	return entities.ImportJob{
		ID:           j.ID,
		UserID:       j.UserID,
		UploadID:     j.UploadID,
		Format:       string(j.Format),
		Strategy:     string(j.Strategy),
		Strict:       j.Strict,
		Overrides:    j.Overrides,
		Status:       entities.ImportJobStatus(j.Status),
		Progress:     j.Progress,
		TotalRecords: j.TotalRecords,
		Processed:    j.Processed,
		Summary:      j.Summary,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    utc(j.StartedAt),
		FinishedAt:   utc(j.FinishedAt),
	}
}

// utc keeps stored timestamps comparable as text.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromEntity(e entities.ImportJob) *jobs.Job {
	return &jobs.Job{
		ID:           e.ID,
		UserID:       e.UserID,
		UploadID:     e.UploadID,
		Format:       canonical.Format(e.Format),
		Strategy:     canonical.Strategy(e.Strategy),
		Strict:       e.Strict,
		Overrides:    e.Overrides,
		Status:       jobs.Status(e.Status),
		Progress:     e.Progress,
		TotalRecords: e.TotalRecords,
		Processed:    e.Processed,
		Summary:      e.Summary,
		Error:        e.Error,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
	}
}
