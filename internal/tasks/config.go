package tasks

import "time"

// Config holds configuration for the task queue.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ImportTimeout bounds a single import job. Default: 30m
	ImportTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to the queue. Default: 45m
	ReleaseAfter time.Duration

	// CleanupInterval is how often backlite purges finished tasks. Default: 1h
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ImportTimeout:   30 * time.Minute,
		ReleaseAfter:    45 * time.Minute,
		CleanupInterval: time.Hour,
	}
}
