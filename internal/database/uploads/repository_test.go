package uploads

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/services"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db.DB)
}

func staged(t *testing.T, id string, expires time.Time) *services.StagedUpload {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".upload")
	require.NoError(t, os.WriteFile(path, []byte("Title,Author\nDune,Frank Herbert\n"), 0600))
	return &services.StagedUpload{
		ID:        id,
		UserID:    "user-1",
		Filename:  "goodreads_library_export.csv",
		Format:    canonical.FormatGoodreads,
		Path:      path,
		Counts:    map[canonical.RecordType]int{canonical.RecordUserBook: 1},
		CreatedAt: expires.Add(-time.Hour),
		ExpiresAt: expires,
	}
}

func TestRepository_PutGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	upload := staged(t, "u1", now.Add(time.Hour))
	require.NoError(t, repo.Put(ctx, upload))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, canonical.FormatGoodreads, got.Format)
	assert.Equal(t, upload.Path, got.Path)
	assert.Equal(t, 1, got.Total())

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrUploadNotFound)

	require.NoError(t, repo.Delete(ctx, "u1"))
	_, err = repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, services.ErrUploadNotFound)
	assert.NoFileExists(t, upload.Path)

	// deleting again is harmless
	assert.NoError(t, repo.Delete(ctx, "u1"))
}

func TestRepository_Expiry(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	stale := staged(t, "stale", now.Add(-time.Minute))
	fresh := staged(t, "fresh", now.Add(time.Minute))
	require.NoError(t, repo.Put(ctx, stale))
	require.NoError(t, repo.Put(ctx, fresh))

	_, err := repo.Get(ctx, "stale")
	assert.ErrorIs(t, err, services.ErrUploadNotFound)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, stale.Path)
	assert.FileExists(t, fresh.Path)

	_, err = repo.Get(ctx, "fresh")
	assert.NoError(t, err)

	n, err = repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
