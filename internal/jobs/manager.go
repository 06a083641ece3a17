package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
)

// DefaultRecordsPerSecond seeds time estimates before a job has made progress.
const DefaultRecordsPerSecond = 100.0

// Request describes a job to submit.
type Request struct {
	UserID       string
	UploadID     string
	Format       canonical.Format
	Strategy     canonical.Strategy
	Strict       bool
	Overrides    map[int]canonical.Strategy
	TotalRecords int
}

// Manager owns job state transitions. All mutations go through its mutex so a
// reader never observes progress and summary from different moments.
type Manager struct {
	mu    sync.Mutex
	store Store
	flags CancelFlags
	now   func() time.Time
	rate  float64
}

type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecordsPerSecond sets the throughput assumed for estimates.
func WithRecordsPerSecond(rate float64) Option {
	return func(m *Manager) {
		if rate > 0 {
			m.rate = rate
		}
	}
}

func NewManager(store Store, flags CancelFlags, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		flags: flags,
		now:   time.Now,
		rate:  DefaultRecordsPerSecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EstimateSeconds returns the expected processing time for n records.
func (m *Manager) EstimateSeconds(n int) int {
	return int(math.Ceil(float64(n) / m.rate))
}

// Submit creates a queued job.
func (m *Manager) Submit(ctx context.Context, req Request) (*Job, error) {
	now := m.now()
	job := &Job{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		UploadID:     req.UploadID,
		Format:       req.Format,
		Strategy:     req.Strategy,
		Strict:       req.Strict,
		Overrides:    req.Overrides,
		Status:       StatusQueued,
		TotalRecords: req.TotalRecords,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	log.Printf("[JOB] Queued job %s for user %s (%d records)", job.ID, job.UserID, job.TotalRecords)
	return m.snapshot(job), nil
}

// Start moves a queued job to processing.
func (m *Manager) Start(ctx context.Context, id string) error {
	return m.transition(ctx, id, func(job *Job, now time.Time) error {
		if job.Status != StatusQueued {
			return invalidTransition(job, StatusProcessing)
		}
		job.Status = StatusProcessing
		job.StartedAt = &now
		return nil
	})
}

// ReportProgress records that processed records have been consumed. Progress
// never decreases and stays below 100 until the job completes. Updates for a
// finished job return ErrJobFinished and change nothing.
func (m *Manager) ReportProgress(ctx context.Context, id string, processed int) error {
	return m.transition(ctx, id, func(job *Job, _ time.Time) error {
		if job.Status != StatusProcessing {
			return invalidTransition(job, StatusProcessing)
		}
		if processed > job.Processed {
			job.Processed = processed
		}
		if p := percent(job.Processed, job.TotalRecords); p > job.Progress {
			job.Progress = p
		}
		return nil
	})
}

// Complete attaches the summary and finishes a processing job.
func (m *Manager) Complete(ctx context.Context, id string, summary *canonical.ImportSummary) error {
	defer m.flags.Clear(id)
	return m.transition(ctx, id, func(job *Job, now time.Time) error {
		if job.Status != StatusProcessing {
			return invalidTransition(job, StatusCompleted)
		}
		job.Status = StatusCompleted
		job.Progress = 100
		job.Processed = job.TotalRecords
		job.Summary = summary.Clone()
		job.FinishedAt = &now
		log.Printf("[JOB] Job %s completed", job.ID)
		return nil
	})
}

// Fail finishes a queued or processing job with cause. Progress stays where it
// was and the summary always carries at least one error describing cause.
func (m *Manager) Fail(ctx context.Context, id string, cause error, summary *canonical.ImportSummary) error {
	defer m.flags.Clear(id)
	return m.transition(ctx, id, func(job *Job, now time.Time) error {
		if job.Status.Terminal() {
			return ErrJobFinished
		}
		if cause == nil {
			cause = errs.New(errs.KindInternal, "job failed")
		}
		if summary == nil {
			summary = canonical.NewImportSummary()
		} else {
			summary = summary.Clone()
		}
		kind := errs.KindOf(cause)
		summary.Errors = append(summary.Errors, canonical.ImportError{
			Message: cause.Error(),
			Kind:    string(kind),
		})
		job.Status = StatusFailed
		job.Summary = summary
		job.Error = cause.Error()
		job.FinishedAt = &now
		log.Printf("[JOB] Job %s failed: %v", job.ID, cause)
		return nil
	})
}

// Cancel requests cancellation. A queued job is cancelled at once; a processing
// job is flagged and its worker finishes the cancellation between records.
func (m *Manager) Cancel(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case StatusQueued:
		now := m.now()
		job.Status = StatusCancelled
		job.UpdatedAt = now
		job.FinishedAt = &now
		if err := m.store.Update(ctx, job); err != nil {
			return nil, fmt.Errorf("update job: %w", err)
		}
		log.Printf("[JOB] Job %s cancelled before start", job.ID)
	case StatusProcessing:
		m.flags.Set(id)
		log.Printf("[JOB] Cancellation requested for job %s", job.ID)
	default:
		return nil, ErrJobFinished
	}
	return m.snapshot(job), nil
}

// CancelRequested reports whether the worker for id should stop.
func (m *Manager) CancelRequested(id string) bool {
	return m.flags.IsSet(id)
}

// FinishCancelled moves a processing job to cancelled, keeping what the worker
// already wrote.
func (m *Manager) FinishCancelled(ctx context.Context, id string, summary *canonical.ImportSummary) error {
	err := m.transition(ctx, id, func(job *Job, now time.Time) error {
		if job.Status != StatusProcessing {
			return invalidTransition(job, StatusCancelled)
		}
		job.Status = StatusCancelled
		job.Summary = summary.Clone()
		job.FinishedAt = &now
		log.Printf("[JOB] Job %s cancelled after %d of %d records", job.ID, job.Processed, job.TotalRecords)
		return nil
	})
	m.flags.Clear(id)
	return err
}

// Get returns a snapshot with an estimate of the remaining time for unfinished
// jobs.
func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.snapshot(job), nil
}

// List returns snapshots of a user's jobs, newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(list))
	for _, job := range list {
		out = append(out, m.snapshot(job))
	}
	return out, nil
}

// Prune deletes finished jobs older than retention.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.store.DeleteFinishedBefore(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	if n > 0 {
		log.Printf("[JOB] Pruned %d finished jobs", n)
	}
	return n, nil
}

func (m *Manager) transition(ctx context.Context, id string, apply func(job *Job, now time.Time) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	now := m.now()
	if err := apply(job, now); err != nil {
		return err
	}
	job.UpdatedAt = now
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (m *Manager) snapshot(job *Job) *Job {
	out := job.Clone()
	out.EstimatedSecondsRemaining = nil
	if out.Status.Terminal() {
		return out
	}

	remaining := out.TotalRecords - out.Processed
	if remaining < 0 {
		remaining = 0
	}
	rate := m.rate
	if out.StartedAt != nil && out.Processed > 0 {
		if elapsed := m.now().Sub(*out.StartedAt).Seconds(); elapsed > 0 {
			rate = float64(out.Processed) / elapsed
		}
	}
	eta := int(math.Ceil(float64(remaining) / rate))
	out.EstimatedSecondsRemaining = &eta
	return out
}

func percent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := processed * 100 / total
	if p > 99 {
		p = 99
	}
	return p
}

func invalidTransition(job *Job, to Status) error {
	if job.Status.Terminal() {
		return ErrJobFinished
	}
	return errs.New(errs.KindInvalidState, "job %s cannot move from %s to %s", job.ID, job.Status, to)
}

// IsFinished reports whether err says the job had already reached a terminal
// state.
func IsFinished(err error) bool {
	return errors.Is(err, ErrJobFinished)
}
