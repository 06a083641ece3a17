// Package jobs tracks asynchronous import jobs.
//
// A job moves queued → processing → completed | failed | cancelled. Terminal
// states are final. Exactly one worker mutates a job while any number of
// readers poll it through Manager.Get, which always returns a consistent copy.
//
// # Usage
//
//	mgr := jobs.NewManager(jobs.NewMemoryStore(), jobs.NewMemoryFlags())
//	job, _ := mgr.Submit(ctx, jobs.Request{UserID: "u1", TotalRecords: 250})
//	_ = mgr.Start(ctx, job.ID)
//	_ = mgr.ReportProgress(ctx, job.ID, 100)
//	_ = mgr.Complete(ctx, job.ID, summary)
package jobs

import (
	"context"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrNotFound    = errs.New(errs.KindNotFound, "job not found")
	ErrJobFinished = errs.New(errs.KindInvalidState, "job has already finished")
)

// Job is the tracked state of one import.
type Job struct {
	ID           string                     `json:"id"`
	UserID       string                     `json:"userId"`
	UploadID     string                     `json:"uploadId,omitempty"`
	Format       canonical.Format           `json:"format,omitempty"`
	Strategy     canonical.Strategy         `json:"strategy,omitempty"`
	Strict       bool                       `json:"strict"`
	Overrides    map[int]canonical.Strategy `json:"overrides,omitempty"`
	Status       Status                     `json:"status"`
	Progress     int                        `json:"progress"`
	TotalRecords int                        `json:"totalRecords"`
	Processed    int                        `json:"processed"`
	Summary      *canonical.ImportSummary   `json:"summary,omitempty"`
	Error        string                     `json:"error,omitempty"`
	CreatedAt    time.Time                  `json:"createdAt"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
	StartedAt    *time.Time                 `json:"startedAt,omitempty"`
	FinishedAt   *time.Time                 `json:"finishedAt,omitempty"`

	// EstimatedSecondsRemaining is filled in on snapshots of unfinished jobs.
	EstimatedSecondsRemaining *int `json:"estimatedTimeRemaining,omitempty"`
}

// StrategyFor returns the strategy for the user book at the 1-based index.
func (j *Job) StrategyFor(index int) canonical.Strategy {
	if s, ok := j.Overrides[index]; ok {
		return s
	}
	if j.Strategy == "" {
		return canonical.DefaultStrategy
	}
	return j.Strategy
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Summary = j.Summary.Clone()
	if j.Overrides != nil {
		out.Overrides = make(map[int]canonical.Strategy, len(j.Overrides))
		for k, v := range j.Overrides {
			out.Overrides[k] = v
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	if j.EstimatedSecondsRemaining != nil {
		v := *j.EstimatedSecondsRemaining
		out.EstimatedSecondsRemaining = &v
	}
	return &out
}

// Store persists jobs. Get returns ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, job *Job) error
	List(ctx context.Context, userID string) ([]*Job, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CancelFlags records cancel requests for running jobs. Workers poll it
// between records.
type CancelFlags interface {
	Set(id string)
	IsSet(id string) bool
	Clear(id string)
}
