package entities

import (
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

type ImportJobStatus string

const (
	ImportJobQueued     ImportJobStatus = "queued"
	ImportJobProcessing ImportJobStatus = "processing"
	ImportJobCompleted  ImportJobStatus = "completed"
	ImportJobFailed     ImportJobStatus = "failed"
	ImportJobCancelled  ImportJobStatus = "cancelled"
)

// ImportJob is the persisted state of an asynchronous import.
type ImportJob struct {
	ID           string                     `gorm:"primaryKey;size:36" json:"id"`
	UserID       string                     `gorm:"index;size:64;not null" json:"user_id"`
	UploadID     string                     `gorm:"size:36" json:"upload_id,omitempty"`
	Format       string                     `gorm:"size:20" json:"format,omitempty"`
	Strategy     string                     `gorm:"size:20" json:"strategy,omitempty"`
	Strict       bool                       `json:"strict"`
	Overrides    map[int]canonical.Strategy `gorm:"serializer:json" json:"overrides,omitempty"`
	Status       ImportJobStatus            `gorm:"size:20;index" json:"status"`
	Progress     int                        `json:"progress"`
	TotalRecords int                        `json:"total_records"`
	Processed    int                        `json:"processed"`
	Summary      *canonical.ImportSummary   `gorm:"serializer:json" json:"summary,omitempty"`
	Error        string                     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time                  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
	StartedAt    *time.Time                 `json:"started_at,omitempty"`
	FinishedAt   *time.Time                 `gorm:"index" json:"finished_at,omitempty"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

// StagedUpload is a previewed file waiting for confirmation.
type StagedUpload struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	UserID    string         `gorm:"index;size:64;not null" json:"user_id"`
	Filename  string         `gorm:"size:255" json:"filename"`
	Format    string         `gorm:"size:20" json:"format"`
	Path      string         `gorm:"size:1024" json:"-"`
	Counts    map[string]int `gorm:"serializer:json" json:"counts"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `gorm:"index" json:"expires_at"`
}

func (StagedUpload) TableName() string {
	return "staged_uploads"
}
