package services

import (
	"context"
	"log"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/exporters"
)

// ExportService renders a user's library in one of the interchange formats.
type ExportService struct {
	records RecordStore
	audit   AuditLogger
	now     func() time.Time
}

func NewExportService(records RecordStore, audit AuditLogger) *ExportService {
	if audit == nil {
		audit = nopAudit{}
	}
	return &ExportService{records: records, audit: audit, now: time.Now}
}

// Export loads the user's records and serializes those opts selects.
func (s *ExportService) Export(ctx context.Context, userID string, opts exporters.Options) (*exporters.Payload, error) {
	if userID == "" {
		return nil, errs.New(errs.KindValidation, "user id is required")
	}
	if _, err := exporters.SerializerFor(opts.Format); err != nil {
		return nil, err
	}

	ds, err := s.dataset(ctx, userID)
	if err != nil {
		s.audit.LogExport(userID, opts.Format, 0, err)
		return nil, err
	}

	payload, err := exporters.Build(ds, userID, opts, s.now())
	if err != nil {
		s.audit.LogExport(userID, opts.Format, 0, err)
		return nil, err
	}
	log.Printf("[EXPORT] Exported %d records for user %s as %s (%d bytes)",
		payload.Metadata.TotalRecords, userID, payload.Filename, len(payload.Body))
	s.audit.LogExport(userID, opts.Format, payload.Metadata.TotalRecords, nil)
	return payload, nil
}

func (s *ExportService) dataset(ctx context.Context, userID string) (*canonical.Dataset, error) {
	ds := &canonical.Dataset{}
	var err error
	if ds.UserBooks, err = s.records.ListUserBooks(ctx, userID); err != nil {
		return nil, storageError(err, "list user books")
	}
	if ds.WishlistItems, err = s.records.ListWishlistItems(ctx, userID); err != nil {
		return nil, storageError(err, "list wishlist items")
	}
	if ds.Collections, err = s.records.ListCollections(ctx, userID); err != nil {
		return nil, storageError(err, "list collections")
	}
	if ds.ReadingSessions, err = s.records.ListReadingSessions(ctx, userID); err != nil {
		return nil, storageError(err, "list reading sessions")
	}
	return ds, nil
}
