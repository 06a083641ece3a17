package services

import (
	"context"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
)

// RecordStore is the user's library as the engine sees it.
//
// Save methods insert when the record has no ID, assigning one, and update
// otherwise. Inserts made by an import carry its job id so Rollback can find
// them; updates never change that tag.
//
// Implementations:
//   - records.Repository (database/records) - gorm + SQLite
type RecordStore interface {
	ListUserBooks(ctx context.Context, userID string) ([]canonical.UserBook, error)
	SaveUserBook(ctx context.Context, ub *canonical.UserBook, jobID string) error

	ListWishlistItems(ctx context.Context, userID string) ([]canonical.WishlistItem, error)
	SaveWishlistItem(ctx context.Context, wi *canonical.WishlistItem, jobID string) error

	ListCollections(ctx context.Context, userID string) ([]canonical.Collection, error)
	SaveCollection(ctx context.Context, c *canonical.Collection, jobID string) error

	ListReadingSessions(ctx context.Context, userID string) ([]canonical.ReadingSession, error)
	SaveReadingSession(ctx context.Context, s *canonical.ReadingSession, jobID string) error

	// DeleteCreatedBy removes every record the job inserted and returns how
	// many were removed.
	DeleteCreatedBy(ctx context.Context, userID, jobID string) (int, error)
}

// StagedUpload is a parsed-and-previewed file waiting for confirmation. The
// file itself sits on disk at Path; every import pass re-reads it from there.
type StagedUpload struct {
	ID        string
	UserID    string
	Filename  string
	Format    canonical.Format
	Path      string
	Counts    map[canonical.RecordType]int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Total is the number of records the upload holds.
func (u *StagedUpload) Total() int {
	n := 0
	for _, c := range u.Counts {
		n += c
	}
	return n
}

// UploadStore keeps staged uploads until they are confirmed or expire. Get
// returns an errs.KindNotFound error for unknown or expired ids. Delete and
// DeleteExpired remove the staged files along with the rows.
type UploadStore interface {
	Put(ctx context.Context, u *StagedUpload) error
	Get(ctx context.Context, id string) (*StagedUpload, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Runner hands a confirmed job to a worker.
type Runner interface {
	Enqueue(ctx context.Context, jobID string) error
}

// AuditLogger records import and export outcomes. It must not block.
type AuditLogger interface {
	LogImport(userID, jobID, description string, summary *canonical.ImportSummary, err error)
	LogExport(userID string, format canonical.Format, records int, err error)
	LogRollback(userID, jobID string, removed int, err error)
}
