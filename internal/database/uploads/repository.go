// Package uploads keeps track of previewed import files until they are
// confirmed or expire. The files live in the staging directory; rows hold
// their paths.
//
// # Interface Implementation
//
//	var _ services.UploadStore = (*Repository)(nil)
package uploads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/services"
)

// Repository handles staged upload database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ services.UploadStore = (*Repository)(nil)

// NewRepository creates a new staged upload repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Put(ctx context.Context, u *services.StagedUpload) error {
	row := entities.StagedUpload{
		ID:        u.ID,
		UserID:    u.UserID,
		Filename:  u.Filename,
		Format:    string(u.Format),
		Path:      u.Path,
		Counts:    make(map[string]int, len(u.Counts)),
		CreatedAt: u.CreatedAt,
		ExpiresAt: u.ExpiresAt.UTC(),
	}
	for t, n := range u.Counts {
		row.Counts[string(t)] = n
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("stage upload %s: %w", u.ID, err)
	}
	return nil
}

// Get returns services.ErrUploadNotFound for unknown and expired uploads.
func (r *Repository) Get(ctx context.Context, id string) (*services.StagedUpload, error) {
	var row entities.StagedUpload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	if !row.ExpiresAt.IsZero() && !r.now().Before(row.ExpiresAt) {
		return nil, services.ErrUploadNotFound
	}

	u := &services.StagedUpload{
		ID:        row.ID,
		UserID:    row.UserID,
		Filename:  row.Filename,
		Format:    canonical.Format(row.Format),
		Path:      row.Path,
		Counts:    make(map[canonical.RecordType]int, len(row.Counts)),
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	for t, n := range row.Counts {
		u.Counts[canonical.RecordType(t)] = n
	}
	return u, nil
}

// Delete removes an upload and its staged file.
func (r *Repository) Delete(ctx context.Context, id string) error {
	var paths []string
	if err := r.db.WithContext(ctx).Model(&entities.StagedUpload{}).Where("id = ?", id).Pluck("path", &paths).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.StagedUpload{}).Error; err != nil {
		return err
	}
	for _, p := range paths {
		if err := services.RemoveStagedFile(p); err != nil {
			return fmt.Errorf("remove staged file for %s: %w", id, err)
		}
	}
	return nil
}

// DeleteExpired removes uploads whose expiry is at or before now, staged
// files included.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var rows []entities.StagedUpload
	err := r.db.WithContext(ctx).Select("id", "path").Where("expires_at <= ?", now.UTC()).Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]string, len(rows))
	paths := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		paths[i] = row.Path
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.StagedUpload{})
	if res.Error != nil {
		return 0, res.Error
	}
	services.RemoveStagedFiles(paths...)
	return int(res.RowsAffected), nil
}
