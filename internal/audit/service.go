package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/entities"
	"github.com/mrlokans/bookshelf/internal/services"
)

// Service provides high-level audit logging functionality. Events are written
// in the background so callers never wait on the audit table.
type Service struct {
	repo    *audit.Repository
	archive *Auditor
	wg      sync.WaitGroup
}

var _ services.AuditLogger = (*Service)(nil)

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// WithArchive makes the service keep a JSON copy of every import summary that
// carries errors. The file name is recorded in the event metadata.
func (s *Service) WithArchive(a *Auditor) *Service {
	s.archive = a
	return s
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until background writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogImport records the outcome of an import job.
func (s *Service) LogImport(userID, jobID, description string, summary *canonical.ImportSummary, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventImport,
		Action:      "import",
		Description: truncate(description, 500),
		JobID:       jobID,
		Status:      entities.AuditStatusSuccess,
	}

	if summary != nil {
		metadata := map[string]any{
			"counts":   summary.Counts,
			"errors":   len(summary.Errors),
			"warnings": len(summary.Warnings),
		}
		for _, c := range summary.Counts {
			event.Records += c.Added + c.Updated
		}
		if s.archive != nil && len(summary.Errors) > 0 {
			if name, aerr := s.archive.SaveJSON(summary); aerr == nil {
				metadata["archive"] = name
			} else {
				log.Printf("Failed to archive import summary for job %s: %v", jobID, aerr)
			}
		}
		if mdBytes, e := json.Marshal(metadata); e == nil {
			event.Metadata = string(mdBytes)
		}
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogExport records an export event.
func (s *Service) LogExport(userID string, format canonical.Format, records int, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventExport,
		Action:      fmt.Sprintf("%s_export", format),
		Description: fmt.Sprintf("Exported %d records as %s", records, format),
		Records:     records,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogRollback records the removal of the records an import inserted.
func (s *Service) LogRollback(userID, jobID string, removed int, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventRollback,
		Action:      "import_rollback",
		Description: fmt.Sprintf("Removed %d records added by import %s", removed, jobID),
		JobID:       jobID,
		Records:     removed,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogCleanup records a housekeeping run.
func (s *Service) LogCleanup(action string, removed int, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventCleanup,
		Action:      action,
		Description: fmt.Sprintf("Removed %d rows", removed),
		Records:     removed,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(userID, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(eventType entities.AuditEventType, userID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(eventType, userID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
