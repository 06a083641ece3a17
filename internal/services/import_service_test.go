package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/jobs"
)

const testUser = "user-1"

const libraryJSON = `{
  "metadata": {"formatVersion": "1.0", "userId": "someone-else", "totalRecords": 999},
  "userBooks": [
    {"id": "src-1", "book": {"title": "The Hobbit", "authors": ["J.R.R. Tolkien"], "isbn13": "9780261103344"}, "status": "completed", "currentPage": 310},
    {"id": "src-2", "book": {"title": "Dune", "authors": ["Frank Herbert"]}, "status": "reading", "currentPage": 120}
  ],
  "wishlistItems": [
    {"book": {"title": "Hyperion", "authors": ["Dan Simmons"]}, "priority": "high"}
  ],
  "collections": [
    {"name": "Favourites", "items": [
      {"userBookId": "src-2", "sortOrder": 1},
      {"userBookId": "src-1", "sortOrder": 0},
      {"userBookId": "missing", "sortOrder": 2}
    ]}
  ],
  "readingSessions": [
    {"userBookId": "src-2", "startPage": 121, "endPage": 180, "sessionDate": "2024-03-01T00:00:00Z", "durationMinutes": 45}
  ]
}`

type recordingAudit struct {
	mu        sync.Mutex
	imports   []error
	exports   []int
	rollbacks []int
}

func (a *recordingAudit) LogImport(_, _, _ string, _ *canonical.ImportSummary, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.imports = append(a.imports, err)
}

func (a *recordingAudit) LogExport(_ string, _ canonical.Format, records int, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exports = append(a.exports, records)
}

func (a *recordingAudit) LogRollback(_, _ string, removed int, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollbacks = append(a.rollbacks, removed)
}

type fixture struct {
	svc     *ImportService
	records *memoryRecords
	uploads *MemoryUploadStore
	jobs    *jobs.Manager
	audit   *recordingAudit
}

func newFixture(t *testing.T, cfg ImportConfig) *fixture {
	t.Helper()
	f := &fixture{
		records: newMemoryRecords(),
		uploads: NewMemoryUploadStore(),
		jobs:    jobs.NewManager(jobs.NewMemoryStore(), jobs.NewMemoryFlags()),
		audit:   &recordingAudit{},
	}
	cfg.ProgressEvery = 1
	if cfg.StagingDir == "" {
		cfg.StagingDir = t.TempDir()
	}
	f.svc = NewImportService(f.records, f.uploads, f.jobs, nil, f.audit, cfg)
	f.svc.SetRunner(InlineRunner(f.svc.Process))
	return f
}

func (f *fixture) preview(t *testing.T, filename, content string) *Preview {
	t.Helper()
	p, err := f.svc.Preview(context.Background(), PreviewRequest{
		UserID:   testUser,
		Filename: filename,
		Body:     strings.NewReader(content),
	})
	require.NoError(t, err)
	return p
}

// importFile previews, confirms and runs an import, returning the finished job.
func (f *fixture) importFile(t *testing.T, filename, content string, req ConfirmRequest) *jobs.Job {
	t.Helper()
	ctx := context.Background()
	p := f.preview(t, filename, content)

	req.UserID = testUser
	req.UploadID = p.UploadID
	job, err := f.svc.Confirm(ctx, req)
	require.NoError(t, err)

	final, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	return final
}

func (f *fixture) seed(t *testing.T, ub canonical.UserBook) canonical.UserBook {
	t.Helper()
	ub.UserID = testUser
	require.NoError(t, f.records.SaveUserBook(context.Background(), &ub, ""))
	return ub
}

func bookByTitle(t *testing.T, books []canonical.UserBook, title string) canonical.UserBook {
	t.Helper()
	for _, ub := range books {
		if ub.Book.Title == title {
			return ub
		}
	}
	t.Fatalf("no user book titled %q", title)
	return canonical.UserBook{}
}

func TestImport_JSONEndToEnd(t *testing.T) {
	f := newFixture(t, ImportConfig{})

	job := f.importFile(t, "library.json", libraryJSON, ConfirmRequest{})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	s := job.Summary
	assert.Equal(t, 2, s.BooksAdded())
	assert.Equal(t, 1, s.For(canonical.RecordWishlistItem).Added)
	assert.Equal(t, 1, s.For(canonical.RecordReadingSession).Added)
	assert.Equal(t, 1, s.For(canonical.RecordCollection).Added)
	assert.Empty(t, s.Errors)
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], `"missing"`)
	assert.Equal(t, job.ID, s.RollbackID)

	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	require.Len(t, books, 2)
	hobbit := bookByTitle(t, books, "The Hobbit")
	dune := bookByTitle(t, books, "Dune")
	assert.Equal(t, testUser, dune.UserID, "records belong to the importing user")
	assert.Equal(t, 180, dune.CurrentPage, "sessions move the current page forward")

	sessions, _ := f.records.ListReadingSessions(context.Background(), testUser)
	require.Len(t, sessions, 1)
	assert.Equal(t, dune.ID, sessions[0].UserBookID)
	assert.Equal(t, 60, sessions[0].PagesRead)

	collections, _ := f.records.ListCollections(context.Background(), testUser)
	require.Len(t, collections, 1)
	assert.Equal(t, []canonical.CollectionItem{
		{UserBookID: hobbit.ID, SortOrder: 0},
		{UserBookID: dune.ID, SortOrder: 1},
	}, collections[0].Items)

	assert.Equal(t, []error{nil}, f.audit.imports)
}

func TestImport_SkipIsIdempotent(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	req := ConfirmRequest{Strategy: canonical.StrategySkip}

	first := f.importFile(t, "library.json", libraryJSON, req)
	require.Equal(t, jobs.StatusCompleted, first.Status)
	require.Equal(t, 2, first.Summary.BooksAdded())

	second := f.importFile(t, "library.json", libraryJSON, req)
	require.Equal(t, jobs.StatusCompleted, second.Status)
	s := second.Summary
	assert.Equal(t, 0, s.BooksAdded())
	assert.Equal(t, 2, s.For(canonical.RecordUserBook).Skipped)
	assert.Equal(t, 1, s.For(canonical.RecordWishlistItem).Skipped)
	assert.Equal(t, 1, s.For(canonical.RecordReadingSession).Skipped)
	assert.Equal(t, 1, s.For(canonical.RecordCollection).Skipped)
	assert.Empty(t, s.RollbackID)

	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	assert.Len(t, books, 2)
}

func TestImport_MergeNeverRegressesCurrentPage(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	f.seed(t, canonical.UserBook{
		Book:        canonical.Book{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Status:      canonical.StatusReading,
		CurrentPage: 50,
	})

	job := f.importFile(t, "books.csv", "Title,Authors,Status,CurrentPage,Review\nDune,Frank Herbert,reading,30,Spice\n",
		ConfirmRequest{Strategy: canonical.StrategyMerge})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.Summary.For(canonical.RecordUserBook).Updated)
	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	require.Len(t, books, 1)
	assert.Equal(t, 50, books[0].CurrentPage)
	assert.Equal(t, "Spice", books[0].Review)
}

func TestImport_CSVWithoutStatusColumn(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	f.seed(t, canonical.UserBook{
		Book:        canonical.Book{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Status:      canonical.StatusCompleted,
		CurrentPage: 412,
	})

	job := f.importFile(t, "books.csv", "Title,Authors\nDune,Frank Herbert\nEmma,Jane Austen\n",
		ConfirmRequest{Strategy: canonical.StrategyMerge})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	counts := job.Summary.For(canonical.RecordUserBook)
	assert.Equal(t, 1, counts.Updated)
	assert.Equal(t, 1, counts.Added)

	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	dune := bookByTitle(t, books, "Dune")
	assert.Equal(t, canonical.StatusCompleted, dune.Status)
	assert.Equal(t, 412, dune.CurrentPage)
	assert.Equal(t, canonical.DefaultStatus, bookByTitle(t, books, "Emma").Status)
}

func TestImport_PerRecordOverrides(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	f.seed(t, canonical.UserBook{Book: canonical.Book{Title: "Dune", Authors: []string{"Frank Herbert"}}, Status: canonical.StatusReading})
	f.seed(t, canonical.UserBook{Book: canonical.Book{Title: "Emma", Authors: []string{"Jane Austen"}}, Status: canonical.StatusReading})

	csv := "Title,Authors,Rating\nDune,Frank Herbert,4\nEmma,Jane Austen,5\n"
	job := f.importFile(t, "books.csv", csv, ConfirmRequest{
		Strategy:  canonical.StrategyUpdate,
		Overrides: map[int]canonical.Strategy{2: canonical.StrategySkip},
	})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	counts := job.Summary.For(canonical.RecordUserBook)
	assert.Equal(t, 1, counts.Updated)
	assert.Equal(t, 1, counts.Skipped)

	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	dune := bookByTitle(t, books, "Dune")
	emma := bookByTitle(t, books, "Emma")
	require.NotNil(t, dune.Rating)
	assert.Equal(t, 4, *dune.Rating)
	assert.Equal(t, canonical.StatusReading, dune.Status)
	assert.Nil(t, emma.Rating)
}

func TestImport_CreateNewAddsWithWarning(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	f.seed(t, canonical.UserBook{Book: canonical.Book{Title: "Dune", Authors: []string{"Frank Herbert"}}, Status: canonical.StatusReading})

	job := f.importFile(t, "books.csv", "Title,Authors\nDune,Frank Herbert\n", ConfirmRequest{Strategy: canonical.StrategyCreateNew})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.Summary.BooksAdded())
	assert.Len(t, job.Summary.Warnings, 1)
	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	assert.Len(t, books, 2)
}

func TestImport_RowErrorsAreCountedAndSkipped(t *testing.T) {
	f := newFixture(t, ImportConfig{})

	job := f.importFile(t, "books.csv", "Title,Authors,Rating\nDune,Frank Herbert,4\n,Nobody,3\nEmma,Jane Austen,9\n", ConfirmRequest{})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	counts := job.Summary.For(canonical.RecordUserBook)
	assert.Equal(t, 1, counts.Added)
	assert.Equal(t, 2, counts.Failed)
	require.Len(t, job.Summary.Errors, 2)
	assert.Equal(t, 3, job.Summary.Errors[0].Line)
	assert.Equal(t, "rating", job.Summary.Errors[1].Field)
}

func TestImport_StrictModeWritesNothing(t *testing.T) {
	f := newFixture(t, ImportConfig{})

	job := f.importFile(t, "books.csv", "Title,Authors\nDune,Frank Herbert\n,Nobody\nEmma,Jane Austen\n",
		ConfirmRequest{Strict: true})

	require.Equal(t, jobs.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "line 3")
	assert.Equal(t, 0, job.Summary.BooksAdded())
	assert.Equal(t, 1, job.Summary.For(canonical.RecordUserBook).Failed)
	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	assert.Empty(t, books)
	require.Len(t, f.audit.imports, 1)
	assert.Error(t, f.audit.imports[0])
}

func TestImport_CooperativeCancellation(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	ctx := context.Background()
	var once sync.Once
	f.records.afterSave = func() {
		once.Do(func() {
			list, err := f.jobs.List(ctx, testUser)
			require.NoError(t, err)
			for _, j := range list {
				if j.Status == jobs.StatusProcessing {
					_, err := f.jobs.Cancel(ctx, j.ID)
					require.NoError(t, err)
				}
			}
		})
	}

	job := f.importFile(t, "books.csv", "Title\nOne\nTwo\nThree\nFour\n", ConfirmRequest{})

	require.Equal(t, jobs.StatusCancelled, job.Status)
	assert.Equal(t, 1, job.Summary.BooksAdded())
	assert.Equal(t, job.ID, job.Summary.RollbackID)
	books, _ := f.records.ListUserBooks(ctx, testUser)
	assert.Len(t, books, 1)
	assert.False(t, f.jobs.CancelRequested(job.ID))
}

func TestImport_CancelBeforeStart(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	ctx := context.Background()
	var queued []string
	f.svc.SetRunner(RunnerFunc(func(_ context.Context, id string) error {
		queued = append(queued, id)
		return nil
	}))
	p := f.preview(t, "books.csv", "Title\nOne\n")

	job, err := f.svc.Confirm(ctx, ConfirmRequest{UserID: testUser, UploadID: p.UploadID})
	require.NoError(t, err)
	require.Equal(t, []string{job.ID}, queued)
	_, err = f.jobs.Cancel(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Process(ctx, job.ID))

	final, _ := f.jobs.Get(ctx, job.ID)
	assert.Equal(t, jobs.StatusCancelled, final.Status)
	books, _ := f.records.ListUserBooks(ctx, testUser)
	assert.Empty(t, books)
}

func TestImport_StorageFailureFailsJob(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	f.records.saveErr = errors.New("disk I/O error")

	job := f.importFile(t, "books.csv", "Title\nOne\nTwo\n", ConfirmRequest{})

	require.Equal(t, jobs.StatusFailed, job.Status)
	errsList := job.Summary.Errors
	require.NotEmpty(t, errsList)
	last := errsList[len(errsList)-1]
	assert.Equal(t, string(errs.KindDatabaseConnection), last.Kind)
	assert.Contains(t, last.Message, "disk I/O error")
}

func TestImport_MissingUploadFailsJob(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	ctx := context.Background()
	job, err := f.jobs.Submit(ctx, jobs.Request{UserID: testUser, UploadID: "gone", TotalRecords: 1})
	require.NoError(t, err)

	err = f.svc.Process(ctx, job.ID)

	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	final, _ := f.jobs.Get(ctx, job.ID)
	assert.Equal(t, jobs.StatusFailed, final.Status)
}

func TestImport_GoroutineRunner(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	ctx := context.Background()
	runner := NewGoroutineRunner(ctx, f.svc.Process)
	f.svc.SetRunner(runner)
	p := f.preview(t, "library.json", libraryJSON)

	job, err := f.svc.Confirm(ctx, ConfirmRequest{UserID: testUser, UploadID: p.UploadID})
	require.NoError(t, err)
	runner.Wait()

	final, err := f.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, final.Status)
	assert.Equal(t, 2, final.Summary.BooksAdded())
}

func TestPreview_ReportsWithoutWriting(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	existing := f.seed(t, canonical.UserBook{
		Book:   canonical.Book{Title: "Dune", Authors: []string{"Frank Herbert"}},
		Status: canonical.StatusReading,
	})

	p := f.preview(t, "books.csv", "Title,Authors\nDune,Frank Herbert\nNeuromancer,William Gibson\n,Nobody\n")

	assert.Equal(t, canonical.FormatCSV, p.Format)
	assert.Equal(t, 3, p.TotalRecords)
	assert.Equal(t, 3, p.Counts[canonical.RecordUserBook])
	assert.Equal(t, 1, p.EstimatedTimeSeconds)
	assert.NotEmpty(t, p.UploadID)
	assert.Len(t, p.PreviewData.UserBooks, 2)

	require.Len(t, p.PreviewData.Errors, 1)
	assert.Equal(t, 4, p.PreviewData.Errors[0].Line)

	require.Len(t, p.PreviewData.Duplicates, 1)
	dup := p.PreviewData.Duplicates[0]
	assert.Equal(t, existing.ID, dup.ExistingID)
	assert.Equal(t, 1, dup.IncomingIndex)
	assert.InDelta(t, 1.0, dup.Score, 1e-9)

	books, _ := f.records.ListUserBooks(context.Background(), testUser)
	assert.Len(t, books, 1)
	_, err := f.uploads.Get(context.Background(), p.UploadID)
	assert.NoError(t, err)
}

func TestPreview_DuplicatesWithinFile(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	csv := "Title,Authors\nDune,Frank Herbert\nDune,Frank Herbert\n,Nobody\nEmma,Jane Austen\n"

	p := f.preview(t, "books.csv", csv)

	require.Len(t, p.PreviewData.Duplicates, 1)
	dup := p.PreviewData.Duplicates[0]
	assert.Equal(t, 2, dup.IncomingIndex)
	assert.Equal(t, "incoming:1", dup.ExistingID)

	job, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		UserID: testUser, UploadID: p.UploadID, Strategy: canonical.StrategySkip,
	})
	require.NoError(t, err)
	final, err := f.jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	counts := final.Summary.For(canonical.RecordUserBook)
	assert.Equal(t, 2, counts.Added)
	assert.Equal(t, len(p.PreviewData.Duplicates), counts.Skipped)
}

func TestPreview_StagesUploadOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	f := newFixture(t, ImportConfig{StagingDir: dir})
	csv := "Title,Authors\nDune,Frank Herbert\n"

	p := f.preview(t, "books.csv", csv)

	upload, err := f.uploads.Get(context.Background(), p.UploadID)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(upload.Path))
	data, err := os.ReadFile(upload.Path)
	require.NoError(t, err)
	assert.Equal(t, csv, string(data))

	n, err := f.uploads.DeleteExpired(context.Background(), upload.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, upload.Path)
}

func TestPreview_DryRunStagesNothing(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, ImportConfig{StagingDir: dir})

	p, err := f.svc.Preview(context.Background(), PreviewRequest{
		UserID: testUser, Filename: "books.csv", DryRun: true,
		Body: strings.NewReader("Title,Authors\nDune,Frank Herbert\n"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalRecords)
	assert.Empty(t, p.UploadID)
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPreview_LimitsEchoedRecords(t *testing.T) {
	f := newFixture(t, ImportConfig{PreviewLimit: 2})

	p := f.preview(t, "books.csv", "Title\nA\nB\nC\nD\n")

	assert.Equal(t, 4, p.TotalRecords)
	assert.Len(t, p.PreviewData.UserBooks, 2)
}

func TestPreview_Rejections(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	t.Cleanup(func() {
		files, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, files, "rejected uploads leave no staged files")
	})

	t.Run("file too large", func(t *testing.T) {
		f := newFixture(t, ImportConfig{MaxUploadBytes: 16, StagingDir: dir})
		_, err := f.svc.Preview(ctx, PreviewRequest{
			UserID: testUser, Filename: "books.csv",
			Body: strings.NewReader("Title\n" + strings.Repeat("Long title\n", 5)),
		})
		assert.Equal(t, errs.KindFileSize, errs.KindOf(err))
	})

	t.Run("declared size too large", func(t *testing.T) {
		f := newFixture(t, ImportConfig{MaxUploadBytes: 16, StagingDir: dir})
		_, err := f.svc.Preview(ctx, PreviewRequest{
			UserID: testUser, Filename: "books.csv", Size: 1 << 20,
			Body: strings.NewReader("Title\nx\n"),
		})
		assert.Equal(t, errs.KindFileSize, errs.KindOf(err))
	})

	t.Run("unknown format", func(t *testing.T) {
		f := newFixture(t, ImportConfig{StagingDir: dir})
		_, err := f.svc.Preview(ctx, PreviewRequest{
			UserID: testUser, Filename: "notes.txt", Body: strings.NewReader("just some words"),
		})
		assert.Equal(t, errs.KindFileFormat, errs.KindOf(err))
	})

	t.Run("header only", func(t *testing.T) {
		f := newFixture(t, ImportConfig{StagingDir: dir})
		_, err := f.svc.Preview(ctx, PreviewRequest{
			UserID: testUser, Filename: "books.csv", Body: strings.NewReader("Title,Authors\n"),
		})
		assert.Equal(t, errs.KindParse, errs.KindOf(err))
	})

	t.Run("empty body", func(t *testing.T) {
		f := newFixture(t, ImportConfig{StagingDir: dir})
		_, err := f.svc.Preview(ctx, PreviewRequest{
			UserID: testUser, Filename: "books.csv", Body: strings.NewReader("  "),
		})
		assert.Equal(t, errs.KindFileFormat, errs.KindOf(err))
	})
}

func TestConfirm_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ImportConfig{})
	p := f.preview(t, "books.csv", "Title\nOne\n")

	_, err := f.svc.Confirm(ctx, ConfirmRequest{UserID: testUser, UploadID: "nope"})
	assert.ErrorIs(t, err, ErrUploadNotFound)

	_, err = f.svc.Confirm(ctx, ConfirmRequest{UserID: "intruder", UploadID: p.UploadID})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = f.svc.Confirm(ctx, ConfirmRequest{UserID: testUser, UploadID: p.UploadID, Strategy: "overwrite"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = f.svc.Confirm(ctx, ConfirmRequest{
		UserID: testUser, UploadID: p.UploadID,
		Overrides: map[int]canonical.Strategy{1: "sometimes"},
	})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestRollback(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	ctx := context.Background()
	kept := f.seed(t, canonical.UserBook{Book: canonical.Book{Title: "Emma", Authors: []string{"Jane Austen"}}, Status: canonical.StatusReading})
	job := f.importFile(t, "library.json", libraryJSON, ConfirmRequest{})
	require.Equal(t, jobs.StatusCompleted, job.Status)

	_, err := f.svc.Rollback(ctx, "intruder", job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	n, err := f.svc.Rollback(ctx, testUser, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	books, _ := f.records.ListUserBooks(ctx, testUser)
	require.Len(t, books, 1)
	assert.Equal(t, kept.ID, books[0].ID)
	sessions, _ := f.records.ListReadingSessions(ctx, testUser)
	assert.Empty(t, sessions)
	assert.Equal(t, []int{5}, f.audit.rollbacks)
}

func TestRollback_RequiresFinishedJob(t *testing.T) {
	f := newFixture(t, ImportConfig{})
	ctx := context.Background()
	job, err := f.jobs.Submit(ctx, jobs.Request{UserID: testUser})
	require.NoError(t, err)

	_, err = f.svc.Rollback(ctx, testUser, job.ID)

	assert.Equal(t, errs.KindInvalidState, errs.KindOf(err))
}
