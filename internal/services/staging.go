package services

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrlokans/bookshelf/internal/errs"
)

// ErrUploadNotFound is returned for unknown and expired uploads alike.
var ErrUploadNotFound = errs.New(errs.KindNotFound, "upload not found or expired")

// MemoryUploadStore keeps staged uploads in process memory.
type MemoryUploadStore struct {
	mu      sync.Mutex
	uploads map[string]*StagedUpload
	now     func() time.Time
}

func NewMemoryUploadStore() *MemoryUploadStore {
	return &MemoryUploadStore{uploads: make(map[string]*StagedUpload), now: time.Now}
}

var _ UploadStore = (*MemoryUploadStore)(nil)

func (s *MemoryUploadStore) Put(_ context.Context, u *StagedUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.uploads[u.ID] = &cp
	return nil
}

func (s *MemoryUploadStore) Get(_ context.Context, id string) (*StagedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok || (!u.ExpiresAt.IsZero() && !s.now().Before(u.ExpiresAt)) {
		return nil, ErrUploadNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUploadStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.uploads[id]; ok {
		delete(s.uploads, id)
		return RemoveStagedFile(u.Path)
	}
	return nil
}

func (s *MemoryUploadStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, u := range s.uploads {
		if !u.ExpiresAt.IsZero() && !now.Before(u.ExpiresAt) {
			delete(s.uploads, id)
			RemoveStagedFiles(u.Path)
			n++
		}
	}
	return n, nil
}

const stagedFileExt = ".upload"

// createStagedFile opens a new file for upload id in dir.
func createStagedFile(dir, id string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, id+stagedFileExt), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
}

// RemoveStagedFile deletes a staged upload file. A file that is already gone
// is not an error.
func RemoveStagedFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveStagedFiles deletes staged files and logs the ones it could not.
func RemoveStagedFiles(paths ...string) {
	for _, p := range paths {
		if err := RemoveStagedFile(p); err != nil {
			log.Printf("[IMPORT] Failed to remove staged file %s: %v", p, err)
		}
	}
}
