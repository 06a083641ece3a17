package services

import (
	"context"
	"log"
	"sync"
)

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, jobID string) error

func (f RunnerFunc) Enqueue(ctx context.Context, jobID string) error {
	return f(ctx, jobID)
}

// InlineRunner processes a job before Enqueue returns. A job that fails is
// still enqueued successfully: its failure is recorded on the job.
func InlineRunner(process func(ctx context.Context, jobID string) error) Runner {
	return RunnerFunc(func(ctx context.Context, jobID string) error {
		if err := process(ctx, jobID); err != nil {
			log.Printf("[IMPORT] Job %s finished with error: %v", jobID, err)
		}
		return nil
	})
}

// GoroutineRunner processes each job on its own goroutine, detached from the
// request that confirmed it.
type GoroutineRunner struct {
	process func(ctx context.Context, jobID string) error
	ctx     context.Context
	wg      sync.WaitGroup
}

func NewGoroutineRunner(ctx context.Context, process func(ctx context.Context, jobID string) error) *GoroutineRunner {
	return &GoroutineRunner{process: process, ctx: ctx}
}

func (r *GoroutineRunner) Enqueue(_ context.Context, jobID string) error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.process(r.ctx, jobID); err != nil {
			log.Printf("[IMPORT] Job %s finished with error: %v", jobID, err)
		}
	}()
	return nil
}

// Wait blocks until every enqueued job has returned.
func (r *GoroutineRunner) Wait() {
	r.wg.Wait()
}
