// Package scheduler runs periodic housekeeping on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is a named action run on a cron schedule. An empty or "off" Schedule
// disables it.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

func (j Job) disabled() bool {
	return j.Schedule == "" || j.Schedule == "off"
}

// Housekeeping owns the cron instance for every housekeeping job.
type Housekeeping struct {
	jobs []Job
	cron *cron.Cron

	mu        sync.RWMutex
	entries   map[string]cron.EntryID
	busy      map[string]bool
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHousekeeping(jobs ...Job) *Housekeeping {
	return &Housekeeping{
		jobs:    jobs,
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		busy:    make(map[string]bool),
	}
}

// Start schedules every enabled job. It stops on its own when ctx is done.
func (h *Housekeeping) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isRunning {
		return nil
	}

	for _, job := range h.jobs {
		if job.disabled() {
			continue
		}
		if err := ValidateCronSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", job.Schedule, job.Name, err)
		}
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	for _, job := range h.jobs {
		if job.disabled() {
			log.Printf("Housekeeping: %s disabled", job.Name)
			continue
		}
		job := job
		id, err := h.cron.AddFunc(job.Schedule, func() { h.run(job) })
		if err != nil {
			h.cancel()
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		h.entries[job.Name] = id
		log.Printf("Housekeeping: %s scheduled %s", job.Name, Describe(job.Schedule))
	}

	h.cron.Start()
	h.isRunning = true

	go func(done <-chan struct{}) {
		<-done
		h.Stop()
	}(h.ctx.Done())

	return nil
}

// Stop waits for running jobs and removes every schedule.
func (h *Housekeeping) Stop() {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = false
	cancel := h.cancel
	h.mu.Unlock()

	cancel()
	<-h.cron.Stop().Done()

	h.mu.Lock()
	for name, id := range h.entries {
		h.cron.Remove(id)
		delete(h.entries, name)
	}
	h.mu.Unlock()
	log.Printf("Housekeeping: stopped")
}

// RunNow runs the named job immediately and returns its error.
func (h *Housekeeping) RunNow(ctx context.Context, name string) error {
	for _, job := range h.jobs {
		if job.Name == name {
			return h.exec(ctx, job)
		}
	}
	return fmt.Errorf("unknown housekeeping job %q", name)
}

func (h *Housekeeping) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isRunning
}

// NextRun returns when the named job fires next, or nil if it is not scheduled.
func (h *Housekeeping) NextRun(name string) *time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	id, ok := h.entries[name]
	if !ok {
		return nil
	}
	next := h.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

func (h *Housekeeping) run(job Job) {
	h.mu.RLock()
	ctx := h.ctx
	h.mu.RUnlock()
	if err := h.exec(ctx, job); err != nil {
		log.Printf("Housekeeping: %s failed: %v", job.Name, err)
	}
}

// exec skips a job that is still running from its previous trigger.
func (h *Housekeeping) exec(ctx context.Context, job Job) error {
	h.mu.Lock()
	if h.busy[job.Name] {
		h.mu.Unlock()
		log.Printf("Housekeeping: %s skipped (already running)", job.Name)
		return nil
	}
	h.busy[job.Name] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.busy, job.Name)
		h.mu.Unlock()
	}()

	return job.Run(ctx)
}

// ValidateCronSchedule validates a cron schedule string.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Describe returns a human-readable description of a cron schedule.
func Describe(schedule string) string {
	switch schedule {
	case "0 * * * *", "@hourly":
		return "every hour at :00"
	case "*/15 * * * *":
		return "every 15 minutes"
	case "*/30 * * * *":
		return "every 30 minutes"
	case "0 */6 * * *":
		return "every 6 hours"
	case "0 0 * * *", "@daily", "@midnight":
		return "daily at midnight"
	case "0 3 * * *":
		return "daily at 03:00"
	case "0 0 * * 0", "@weekly":
		return "weekly on Sunday at midnight"
	default:
		return "custom schedule: " + schedule
	}
}
