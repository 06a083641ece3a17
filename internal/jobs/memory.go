package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps jobs in process memory. Values are copied on the way in
// and out.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, job := range s.jobs {
		if userID == "" || job.UserID == userID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// MemoryFlags is an in-process CancelFlags.
type MemoryFlags struct {
	mu    sync.RWMutex
	flags map[string]struct{}
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{flags: make(map[string]struct{})}
}

var _ CancelFlags = (*MemoryFlags)(nil)

func (f *MemoryFlags) Set(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[id] = struct{}{}
}

func (f *MemoryFlags) IsSet(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.flags[id]
	return ok
}

func (f *MemoryFlags) Clear(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, id)
}
