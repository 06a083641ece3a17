package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/dedupe"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/importers"
	"github.com/mrlokans/bookshelf/internal/jobs"
	"github.com/mrlokans/bookshelf/internal/merge"
	"github.com/mrlokans/bookshelf/internal/utils"
	"github.com/mrlokans/bookshelf/internal/validation"
)

// ImportConfig tunes ImportService.
type ImportConfig struct {
	MaxUploadBytes int64
	UploadTTL      time.Duration
	// StagingDir holds uploaded files between preview and import.
	StagingDir string
	// PreviewLimit caps how many records of each type a preview echoes back.
	PreviewLimit int
	// ProgressEvery is how many records a worker processes between progress
	// reports.
	ProgressEvery int
}

func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		MaxUploadBytes: importers.MaxImportBytes,
		UploadTTL:      time.Hour,
		StagingDir:     filepath.Join(os.TempDir(), "bookshelf-uploads"),
		PreviewLimit:   50,
		ProgressEvery:  25,
	}
}

// ImportService drives an import from upload to finished job: Preview parses
// and stages a file, Confirm queues a job for it and Process is what the
// worker runs.
type ImportService struct {
	records   RecordStore
	uploads   UploadStore
	jobs      *jobs.Manager
	runner    Runner
	validator *validation.Validator
	detector  *dedupe.Detector
	resolver  *merge.Resolver
	audit     AuditLogger
	cfg       ImportConfig
	now       func() time.Time
}

func NewImportService(records RecordStore, uploads UploadStore, manager *jobs.Manager, detector *dedupe.Detector, audit AuditLogger, cfg ImportConfig) *ImportService {
	def := DefaultImportConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = def.UploadTTL
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = def.StagingDir
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = def.PreviewLimit
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}
	if detector == nil {
		detector = dedupe.NewDetector(dedupe.DefaultConfig())
	}
	if audit == nil {
		audit = nopAudit{}
	}
	return &ImportService{
		records:   records,
		uploads:   uploads,
		jobs:      manager,
		validator: validation.New(),
		detector:  detector,
		resolver:  merge.NewResolver(),
		audit:     audit,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetRunner sets the worker that confirmed jobs are handed to. Runners usually
// call back into Process, so they are attached after construction.
func (s *ImportService) SetRunner(r Runner) {
	s.runner = r
}

// Jobs exposes the job manager for status polling and cancellation.
func (s *ImportService) Jobs() *jobs.Manager {
	return s.jobs
}

// MaxUploadBytes is the largest file Preview accepts.
func (s *ImportService) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// PreviewRequest is an uploaded file.
type PreviewRequest struct {
	UserID   string
	Filename string
	// Format is detected from the file when empty.
	Format canonical.Format
	// Size is the declared size in bytes, or 0 when unknown.
	Size int64
	Body io.Reader
	// DryRun previews without staging the file; the preview has no UploadID.
	DryRun bool
}

// PreviewData is what the user reviews before confirming.
type PreviewData struct {
	UserBooks       []canonical.UserBook       `json:"userBooks"`
	WishlistItems   []canonical.WishlistItem   `json:"wishlistItems"`
	Collections     []canonical.Collection     `json:"collections"`
	ReadingSessions []canonical.ReadingSession `json:"readingSessions"`
	Duplicates      []canonical.DuplicateMatch `json:"duplicates"`
	Errors          []canonical.ImportError    `json:"errors"`
}

type Preview struct {
	UploadID             string                       `json:"uploadId"`
	Format               canonical.Format             `json:"format"`
	Counts               map[canonical.RecordType]int `json:"counts"`
	TotalRecords         int                          `json:"totalRecords"`
	EstimatedTimeSeconds int                          `json:"estimatedTimeSeconds"`
	ExpiresAt            time.Time                    `json:"expiresAt"`
	PreviewData          PreviewData                  `json:"previewData"`
}

// Preview parses and validates a file, reports duplicates against the user's
// library and stages the file for Confirm. Nothing is written to the library.
// The body is decoded as it is copied to the staging directory, so only the
// current record is held in memory.
func (s *ImportService) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	if req.UserID == "" {
		return nil, errs.New(errs.KindValidation, "user id is required")
	}
	if req.Size > 0 {
		if err := importers.CheckSize(req.Size, s.cfg.MaxUploadBytes); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	var file *os.File
	var sink io.Writer = io.Discard
	if !req.DryRun {
		f, err := createStagedFile(s.cfg.StagingDir, id)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "failed to stage upload")
		}
		file, sink = f, f
	}

	preview, err := s.scan(ctx, req, io.TeeReader(importers.LimitReader(req.Body, s.cfg.MaxUploadBytes), sink))
	if file != nil {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = errs.Wrap(errs.KindInternal, closeErr, "failed to stage upload")
		}
		if err != nil {
			RemoveStagedFiles(file.Name())
		}
	}
	if err != nil {
		return nil, err
	}
	pd := &preview.PreviewData
	if req.DryRun {
		log.Printf("[IMPORT] Dry run for user %s: %d records, %d errors, %d duplicates",
			req.UserID, preview.TotalRecords, len(pd.Errors), len(pd.Duplicates))
		return preview, nil
	}

	now := s.now()
	upload := &StagedUpload{
		ID:        id,
		UserID:    req.UserID,
		Filename:  utils.SanitizeFilename(req.Filename),
		Format:    preview.Format,
		Path:      file.Name(),
		Counts:    preview.Counts,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.UploadTTL),
	}
	if err := s.uploads.Put(ctx, upload); err != nil {
		RemoveStagedFiles(upload.Path)
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	preview.UploadID = upload.ID
	preview.ExpiresAt = upload.ExpiresAt
	log.Printf("[IMPORT] Staged upload %s for user %s: %d records, %d errors, %d duplicates",
		upload.ID, req.UserID, preview.TotalRecords, len(pd.Errors), len(pd.Duplicates))
	return preview, nil
}

// scan detects the format from the first bytes of src, decodes every record
// and reads src to the end so the whole file reaches the staging copy.
func (s *ImportService) scan(ctx context.Context, req PreviewRequest, src io.Reader) (*Preview, error) {
	br := bufio.NewReaderSize(src, importers.SniffLen)
	head, err := br.Peek(importers.SniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, readError(err)
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, errs.New(errs.KindFileFormat, "uploaded file is empty")
	}

	format := req.Format
	if format == "" {
		if format, err = importers.DetectFormat(req.Filename, head); err != nil {
			return nil, err
		}
	}

	lib, err := loadLibrary(ctx, s.records, req.UserID)
	if err != nil {
		return nil, err
	}

	dec, err := importers.NewDecoder(br, format)
	if err != nil {
		return nil, err
	}

	counts := make(map[canonical.RecordType]int, len(canonical.AllRecordTypes))
	preview := &Preview{Format: format, Counts: counts}
	pd := &preview.PreviewData
	for {
		rec, decErr := dec.Next()
		if errors.Is(decErr, io.EOF) {
			break
		}
		if decErr != nil {
			e, ok := errs.As(decErr)
			if !ok || !e.Kind.Recoverable() {
				return nil, decErr
			}
			counts[rec.Type]++
			pd.Errors = append(pd.Errors, importers.RowError(rec, e))
			continue
		}
		counts[rec.Type]++

		rec = claimRecord(rec, req.UserID)
		problems := s.validator.Validate(rec)
		pd.Errors = append(pd.Errors, problems...)
		s.previewRecord(pd, lib, rec, counts[rec.Type] <= s.cfg.PreviewLimit, len(problems) == 0)
	}
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, readError(err)
	}

	for _, n := range counts {
		preview.TotalRecords += n
	}
	preview.EstimatedTimeSeconds = s.jobs.EstimateSeconds(preview.TotalRecords)
	return preview, nil
}

func readError(err error) error {
	if errs.KindOf(err) == errs.KindFileSize {
		return err
	}
	return errs.Wrap(errs.KindFileFormat, err, "failed to read upload")
}

// previewRecord echoes rec and reports what it duplicates. Valid records that
// duplicate nothing join lib under a placeholder id, the way the import adds
// them, so later rows of the same file are matched against them.
func (s *ImportService) previewRecord(pd *PreviewData, lib *library, rec importers.Record, echo, valid bool) {
	incomingID := fmt.Sprintf("incoming:%d", rec.Index)
	switch rec.Type {
	case canonical.RecordUserBook:
		ub := *rec.UserBook
		if echo {
			pd.UserBooks = append(pd.UserBooks, ub)
		}
		if _, m, ok := lib.matchUserBook(s.detector, ub); ok {
			pd.Duplicates = append(pd.Duplicates, duplicateOf(rec, ub.Book.Title, m))
		} else if valid {
			ub.ID = incomingID
			lib.userBooks = append(lib.userBooks, ub)
		}
	case canonical.RecordWishlistItem:
		wi := *rec.WishlistItem
		if echo {
			pd.WishlistItems = append(pd.WishlistItems, wi)
		}
		if _, m, ok := lib.matchWishlistItem(s.detector, wi); ok {
			pd.Duplicates = append(pd.Duplicates, duplicateOf(rec, wi.Book.Title, m))
		} else if valid {
			wi.ID = incomingID
			lib.wishlist = append(lib.wishlist, wi)
		}
	case canonical.RecordCollection:
		c := *rec.Collection
		if echo {
			pd.Collections = append(pd.Collections, c)
		}
		if i := lib.matchCollection(c); i >= 0 {
			existing := lib.collections[i]
			pd.Duplicates = append(pd.Duplicates, duplicateOf(rec, c.Name, exactMatch(existing.ID, existing.Name)))
		} else if valid {
			c.ID = incomingID
			lib.collections = append(lib.collections, c)
		}
	case canonical.RecordReadingSession:
		if echo {
			pd.ReadingSessions = append(pd.ReadingSessions, *rec.ReadingSession)
		}
	}
}

func duplicateOf(rec importers.Record, title string, m dedupe.Match) canonical.DuplicateMatch {
	return canonical.DuplicateMatch{
		RecordType:    rec.Type,
		IncomingIndex: rec.Index,
		Line:          rec.Line,
		IncomingTitle: title,
		ExistingID:    m.ExistingID,
		ExistingTitle: m.ExistingTitle,
		Score:         m.Score,
		Method:        m.Method,
	}
}

// ConfirmRequest commits a staged upload. Overrides map the 1-based index of a
// user book in the file to the strategy used for it instead of Strategy.
type ConfirmRequest struct {
	UserID    string
	UploadID  string
	Strategy  canonical.Strategy
	Overrides map[int]canonical.Strategy
	Strict    bool
}

// Confirm queues an import job for a staged upload and hands it to the runner.
func (s *ImportService) Confirm(ctx context.Context, req ConfirmRequest) (*jobs.Job, error) {
	if s.runner == nil {
		return nil, errs.New(errs.KindInternal, "no import runner configured")
	}
	strategy, err := canonical.ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid strategy")
	}
	for index, st := range req.Overrides {
		if _, err := canonical.ParseStrategy(string(st)); err != nil || st == "" {
			e := errs.New(errs.KindValidation, "invalid strategy %q for record %d", st, index)
			e.Field = "overrides"
			return nil, e
		}
	}

	upload, err := s.uploads.Get(ctx, req.UploadID)
	if err != nil {
		return nil, err
	}
	if upload.UserID != req.UserID {
		return nil, ErrUploadNotFound
	}

	job, err := s.jobs.Submit(ctx, jobs.Request{
		UserID:       req.UserID,
		UploadID:     upload.ID,
		Format:       upload.Format,
		Strategy:     strategy,
		Strict:       req.Strict,
		Overrides:    req.Overrides,
		TotalRecords: upload.Total(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.runner.Enqueue(ctx, job.ID); err != nil {
		_ = s.jobs.Fail(ctx, job.ID, err, nil)
		return nil, fmt.Errorf("enqueue import job: %w", err)
	}
	return job, nil
}

var errCancelled = errors.New("import cancelled")

// Process runs a queued job to a terminal state. The returned error is the
// reason the job failed, if it did; the job itself already records it.
func (s *ImportService) Process(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		log.Printf("[IMPORT] Job %s is already %s, nothing to do", job.ID, job.Status)
		return nil
	}

	upload, err := s.uploads.Get(ctx, job.UploadID)
	if err != nil {
		if failErr := s.jobs.Fail(ctx, job.ID, err, nil); failErr != nil && !jobs.IsFinished(failErr) {
			return failErr
		}
		s.audit.LogImport(job.UserID, job.ID, "upload missing", nil, err)
		return err
	}

	if err := s.jobs.Start(ctx, job.ID); err != nil {
		if jobs.IsFinished(err) {
			// cancelled while queued
			return nil
		}
		return err
	}
	log.Printf("[IMPORT] Processing job %s (%s %s, %d records, strategy %s)", job.ID, upload.Format, upload.Filename, upload.Total(), job.Strategy)

	run := &importRun{
		svc:     s,
		job:     job,
		upload:  upload,
		summary: canonical.NewImportSummary(),
		ids:     make(map[string]string),
	}
	runErr := run.execute(ctx)
	if run.added() > 0 {
		run.summary.RollbackID = job.ID
	}

	switch {
	case errors.Is(runErr, errCancelled):
		err = s.jobs.FinishCancelled(ctx, job.ID, run.summary)
		s.audit.LogImport(job.UserID, job.ID, "import cancelled", run.summary, nil)
		return err

	case runErr != nil:
		if err := s.jobs.Fail(ctx, job.ID, runErr, run.summary); err != nil && !jobs.IsFinished(err) {
			return err
		}
		s.audit.LogImport(job.UserID, job.ID, "import failed", run.summary, runErr)
		return runErr
	}

	if err := s.jobs.Complete(ctx, job.ID, run.summary); err != nil {
		return err
	}
	log.Printf("[IMPORT] Job %s done: %d added, %d updated, %d skipped, %d failed",
		job.ID, run.added(), run.total(func(c *canonical.TypeCounts) int { return c.Updated }),
		run.total(func(c *canonical.TypeCounts) int { return c.Skipped }),
		run.total(func(c *canonical.TypeCounts) int { return c.Failed }))
	s.audit.LogImport(job.UserID, job.ID, fmt.Sprintf("imported %s file %s", upload.Format, upload.Filename), run.summary, nil)
	return nil
}

// Rollback removes the records a finished job inserted. Records the job
// updated in place are left as they are.
func (s *ImportService) Rollback(ctx context.Context, userID, jobID string) (int, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if job.UserID != userID {
		return 0, jobs.ErrNotFound
	}
	if !job.Status.Terminal() {
		return 0, errs.New(errs.KindInvalidState, "job %s is still %s", job.ID, job.Status)
	}

	n, err := s.records.DeleteCreatedBy(ctx, userID, jobID)
	if err != nil {
		err = storageError(err, "rollback")
		s.audit.LogRollback(userID, jobID, 0, err)
		return 0, err
	}
	log.Printf("[IMPORT] Rolled back job %s: removed %d records", jobID, n)
	s.audit.LogRollback(userID, jobID, n, nil)
	return n, nil
}

// claimRecord returns a copy of rec owned by userID. Imported records always
// belong to the importing user whatever the file says.
func claimRecord(rec importers.Record, userID string) importers.Record {
	switch rec.Type {
	case canonical.RecordUserBook:
		ub := *rec.UserBook
		ub.UserID = userID
		rec.UserBook = &ub
	case canonical.RecordWishlistItem:
		wi := *rec.WishlistItem
		wi.UserID = userID
		rec.WishlistItem = &wi
	case canonical.RecordCollection:
		c := *rec.Collection
		c.UserID = userID
		c.Items = append([]canonical.CollectionItem(nil), c.Items...)
		rec.Collection = &c
	case canonical.RecordReadingSession:
		rs := *rec.ReadingSession
		rec.ReadingSession = &rs
	}
	return rec
}

type nopAudit struct{}

func (nopAudit) LogImport(string, string, string, *canonical.ImportSummary, error) {}
func (nopAudit) LogExport(string, canonical.Format, int, error)                   {}
func (nopAudit) LogRollback(string, string, int, error)                           {}
