package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/importers"
	"github.com/mrlokans/bookshelf/internal/jobs"
	"github.com/mrlokans/bookshelf/internal/merge"
)

// importRun is the state of one job while its worker processes it.
//
// The staged file is streamed once per record type in canonical order, so
// user books are stored before the sessions and collections that point at
// them no matter how the file is laid out.
type importRun struct {
	svc       *ImportService
	job       *jobs.Job
	upload    *StagedUpload
	lib       *library
	summary   *canonical.ImportSummary
	processed int

	// ids maps user book ids found in the file to the ids they were stored
	// or matched under.
	ids map[string]string
}

func (r *importRun) execute(ctx context.Context) error {
	lib, err := loadLibrary(ctx, r.svc.records, r.job.UserID)
	if err != nil {
		return err
	}
	r.lib = lib

	if r.job.Strict {
		if err := r.prescan(); err != nil {
			return err
		}
	}

	for _, t := range canonical.AllRecordTypes {
		if r.upload.Counts != nil && r.upload.Counts[t] == 0 {
			continue
		}
		if err := r.pass(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// openDecoder opens the staged file for one pass. The caller closes it.
func (r *importRun) openDecoder() (importers.Decoder, io.Closer, error) {
	f, err := os.Open(r.upload.Path)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindInternal, err, "open staged upload")
	}
	dec, err := importers.NewDecoder(bufio.NewReader(f), r.upload.Format)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return dec, f, nil
}

// prescan validates the whole file and fails on the first problem so a strict
// import writes nothing unless every record is clean.
func (r *importRun) prescan() error {
	dec, file, err := r.openDecoder()
	if err != nil {
		return err
	}
	defer file.Close()
	var problems []canonical.ImportError
	for {
		rec, decErr := dec.Next()
		if errors.Is(decErr, io.EOF) {
			break
		}
		if decErr != nil {
			e, ok := errs.As(decErr)
			if !ok || !e.Kind.Recoverable() {
				return decErr
			}
			problems = append(problems, importers.RowError(rec, e))
			continue
		}
		problems = append(problems, r.svc.validator.Validate(claimRecord(rec, r.job.UserID))...)
	}
	if len(problems) == 0 {
		return nil
	}

	type position struct {
		t     canonical.RecordType
		index int
	}
	failed := make(map[position]bool)
	for _, p := range problems {
		if pos := (position{p.RecordType, p.Index}); !failed[pos] {
			failed[pos] = true
			r.summary.For(p.RecordType).Failed++
		}
	}
	r.summary.Errors = append(r.summary.Errors, problems...)
	first := problems[0]
	e := errs.AtLine(errs.KindValidation, first.Line, "strict import rejected: %s", first.Message)
	e.Field = first.Field
	return e
}

func (r *importRun) pass(ctx context.Context, t canonical.RecordType) error {
	dec, file, err := r.openDecoder()
	if err != nil {
		return err
	}
	defer file.Close()
	for {
		rec, decErr := dec.Next()
		if errors.Is(decErr, io.EOF) {
			return nil
		}
		if decErr != nil {
			if !errs.KindOf(decErr).Recoverable() {
				return decErr
			}
		}
		if rec.Type != t {
			continue
		}
		if err := r.checkpoint(ctx); err != nil {
			return err
		}

		if decErr != nil {
			e, _ := errs.As(decErr)
			r.recordFailure(importers.RowError(rec, e))
		} else if err := r.apply(ctx, claimRecord(rec, r.job.UserID)); err != nil {
			return err
		}

		r.processed++
		if r.processed%r.svc.cfg.ProgressEvery == 0 {
			if err := r.svc.jobs.ReportProgress(ctx, r.job.ID, r.processed); err != nil {
				return err
			}
		}
	}
}

// checkpoint runs between records: it is where cancellation takes effect.
func (r *importRun) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.KindInternal, err, "import interrupted")
	}
	if r.svc.jobs.CancelRequested(r.job.ID) {
		return errCancelled
	}
	return nil
}

func (r *importRun) apply(ctx context.Context, rec importers.Record) error {
	if problems := r.svc.validator.Validate(rec); len(problems) > 0 {
		r.summary.For(rec.Type).Failed++
		r.summary.Errors = append(r.summary.Errors, problems...)
		return nil
	}

	switch rec.Type {
	case canonical.RecordUserBook:
		return r.applyUserBook(ctx, rec)
	case canonical.RecordWishlistItem:
		return r.applyWishlistItem(ctx, rec)
	case canonical.RecordReadingSession:
		return r.applyReadingSession(ctx, rec)
	case canonical.RecordCollection:
		return r.applyCollection(ctx, rec)
	}
	return nil
}

func (r *importRun) applyUserBook(ctx context.Context, rec importers.Record) error {
	ub := *rec.UserBook
	incomingID := ub.ID
	counts := r.summary.For(rec.Type)

	idx, _, found := r.lib.matchUserBook(r.svc.detector, ub)
	if !found || idx < 0 {
		ub = ub.WithDefaults()
		ub.ID = ""
		if err := r.svc.records.SaveUserBook(ctx, &ub, r.job.ID); err != nil {
			return storageError(err, "save user book")
		}
		r.lib.userBooks = append(r.lib.userBooks, ub)
		r.remember(incomingID, ub.ID)
		counts.Added++
		return nil
	}

	existing := r.lib.userBooks[idx]
	res, err := r.svc.resolver.ResolveUserBook(existing, ub, r.job.StrategyFor(rec.Index))
	if err != nil {
		r.reject(rec, err)
		return nil
	}
	switch res.Outcome {
	case merge.OutcomeSkipped:
		counts.Skipped++
		r.remember(incomingID, existing.ID)
	case merge.OutcomeUpdated:
		stored := res.Record
		if err := r.svc.records.SaveUserBook(ctx, &stored, r.job.ID); err != nil {
			return storageError(err, "update user book")
		}
		r.lib.userBooks[idx] = stored
		r.remember(incomingID, stored.ID)
		counts.Updated++
	case merge.OutcomeAdded:
		stored := res.Record
		if err := r.svc.records.SaveUserBook(ctx, &stored, r.job.ID); err != nil {
			return storageError(err, "save user book")
		}
		r.lib.userBooks = append(r.lib.userBooks, stored)
		r.remember(incomingID, stored.ID)
		counts.Added++
		r.warn(res.Warning)
	}
	return nil
}

func (r *importRun) applyWishlistItem(ctx context.Context, rec importers.Record) error {
	wi := *rec.WishlistItem
	counts := r.summary.For(rec.Type)

	idx, _, found := r.lib.matchWishlistItem(r.svc.detector, wi)
	if !found {
		wi = wi.WithDefaults()
		wi.ID = ""
		if err := r.svc.records.SaveWishlistItem(ctx, &wi, r.job.ID); err != nil {
			return storageError(err, "save wishlist item")
		}
		r.lib.wishlist = append(r.lib.wishlist, wi)
		counts.Added++
		return nil
	}

	res, err := r.svc.resolver.ResolveWishlistItem(r.lib.wishlist[idx], wi, r.strategy())
	if err != nil {
		r.reject(rec, err)
		return nil
	}
	switch res.Outcome {
	case merge.OutcomeSkipped:
		counts.Skipped++
	case merge.OutcomeUpdated:
		stored := res.Record
		if err := r.svc.records.SaveWishlistItem(ctx, &stored, r.job.ID); err != nil {
			return storageError(err, "update wishlist item")
		}
		r.lib.wishlist[idx] = stored
		counts.Updated++
	case merge.OutcomeAdded:
		stored := res.Record
		if err := r.svc.records.SaveWishlistItem(ctx, &stored, r.job.ID); err != nil {
			return storageError(err, "save wishlist item")
		}
		r.lib.wishlist = append(r.lib.wishlist, stored)
		counts.Added++
		r.warn(res.Warning)
	}
	return nil
}

// applyReadingSession logs a session against the user book it references and
// moves that book's current page forward. Sessions are immutable, so an
// identical session already in the library is skipped unless the job creates
// duplicates on purpose.
func (r *importRun) applyReadingSession(ctx context.Context, rec importers.Record) error {
	s := *rec.ReadingSession
	counts := r.summary.For(rec.Type)

	ref, ok := r.userBookRef(s.UserBookID)
	if !ok {
		e := errs.AtLine(errs.KindValidation, rec.Line, "session refers to unknown user book %q", s.UserBookID)
		e.Field = "userBookId"
		r.reject(rec, e)
		return nil
	}
	s.ID = ""
	s.UserBookID = ref
	s.PagesRead = canonical.ComputePagesRead(s.StartPage, s.EndPage)

	if r.strategy() != canonical.StrategyCreateNew && r.lib.hasSession(s) {
		counts.Skipped++
		return nil
	}
	if err := r.svc.records.SaveReadingSession(ctx, &s, r.job.ID); err != nil {
		return storageError(err, "save reading session")
	}
	r.lib.sessions = append(r.lib.sessions, s)
	counts.Added++

	if i := r.lib.userBookIndex(ref); i >= 0 && s.EndPage > r.lib.userBooks[i].CurrentPage {
		ub := r.lib.userBooks[i]
		ub.CurrentPage = s.EndPage
		if err := r.svc.records.SaveUserBook(ctx, &ub, r.job.ID); err != nil {
			return storageError(err, "update current page")
		}
		r.lib.userBooks[i] = ub
	}
	return nil
}

func (r *importRun) applyCollection(ctx context.Context, rec importers.Record) error {
	c := *rec.Collection
	counts := r.summary.For(rec.Type)

	items := make([]canonical.CollectionItem, 0, len(c.Items))
	seen := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		ref, ok := r.userBookRef(it.UserBookID)
		if !ok {
			r.warn(fmt.Sprintf("collection %q: dropped unknown user book %q", c.Name, it.UserBookID))
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		items = append(items, canonical.CollectionItem{UserBookID: ref, SortOrder: it.SortOrder})
	}
	c.Items = items
	c.Resequence()

	idx := r.lib.matchCollection(c)
	if idx < 0 {
		c.ID = ""
		if err := r.svc.records.SaveCollection(ctx, &c, r.job.ID); err != nil {
			return storageError(err, "save collection")
		}
		r.lib.collections = append(r.lib.collections, c)
		counts.Added++
		return nil
	}

	res, err := r.svc.resolver.ResolveCollection(r.lib.collections[idx], c, r.strategy())
	if err != nil {
		r.reject(rec, err)
		return nil
	}
	switch res.Outcome {
	case merge.OutcomeSkipped:
		counts.Skipped++
	case merge.OutcomeUpdated:
		stored := res.Record
		if err := r.svc.records.SaveCollection(ctx, &stored, r.job.ID); err != nil {
			return storageError(err, "update collection")
		}
		r.lib.collections[idx] = stored
		counts.Updated++
	case merge.OutcomeAdded:
		stored := res.Record
		if err := r.svc.records.SaveCollection(ctx, &stored, r.job.ID); err != nil {
			return storageError(err, "save collection")
		}
		r.lib.collections = append(r.lib.collections, stored)
		counts.Added++
		r.warn(res.Warning)
	}
	return nil
}

// strategy is the job-wide strategy; per-record overrides only address user
// books.
func (r *importRun) strategy() canonical.Strategy {
	return r.job.StrategyFor(0)
}

// userBookRef resolves a user book id from the file: first through the ids
// seen in this import, then as an id already in the library.
func (r *importRun) userBookRef(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	if stored, ok := r.ids[id]; ok {
		return stored, true
	}
	if r.lib.userBookIndex(id) >= 0 {
		return id, true
	}
	return "", false
}

func (r *importRun) remember(incomingID, storedID string) {
	if incomingID != "" {
		r.ids[incomingID] = storedID
	}
}

func (r *importRun) reject(rec importers.Record, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.New(errs.KindInternal, "%v", err)
	}
	r.recordFailure(importers.RowError(rec, e))
}

func (r *importRun) recordFailure(ie canonical.ImportError) {
	r.summary.For(ie.RecordType).Failed++
	r.summary.Errors = append(r.summary.Errors, ie)
}

func (r *importRun) warn(msg string) {
	if msg != "" {
		r.summary.Warnings = append(r.summary.Warnings, msg)
	}
}

func (r *importRun) added() int {
	return r.total(func(c *canonical.TypeCounts) int { return c.Added })
}

func (r *importRun) total(field func(*canonical.TypeCounts) int) int {
	n := 0
	for _, c := range r.summary.Counts {
		n += field(c)
	}
	return n
}
