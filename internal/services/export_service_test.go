package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/exporters"
	"github.com/mrlokans/bookshelf/internal/jobs"
)

func importedLibrary(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, ImportConfig{})
	job := f.importFile(t, "library.json", libraryJSON, ConfirmRequest{})
	require.Equal(t, jobs.StatusCompleted, job.Status)
	return f
}

func TestExport_JSONRecomputesMetadata(t *testing.T) {
	f := importedLibrary(t)
	svc := NewExportService(f.records, f.audit)
	svc.now = func() time.Time { return time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC) }

	payload, err := svc.Export(context.Background(), testUser, exporters.Options{Format: canonical.FormatJSON})
	require.NoError(t, err)

	assert.Equal(t, "application/json", payload.ContentType)
	assert.Equal(t, "export_2024-06-02.json", payload.Filename)
	assert.Equal(t, 5, payload.Metadata.TotalRecords)

	var ds canonical.Dataset
	require.NoError(t, json.Unmarshal(payload.Body, &ds))
	assert.Equal(t, testUser, ds.Metadata.UserID)
	assert.Len(t, ds.UserBooks, 2)
	assert.Len(t, ds.ReadingSessions, 1)
	assert.Equal(t, []int{5}, f.audit.exports)
}

func TestExport_DateRangeAndTypes(t *testing.T) {
	f := importedLibrary(t)
	svc := NewExportService(f.records, nil)
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	payload, err := svc.Export(context.Background(), testUser, exporters.Options{
		Format:    canonical.FormatJSON,
		DataTypes: []canonical.RecordType{canonical.RecordReadingSession, canonical.RecordWishlistItem},
		DateRange: &canonical.DateRange{From: &from},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, payload.Metadata.TotalRecords)
	assert.Equal(t, []canonical.RecordType{canonical.RecordWishlistItem, canonical.RecordReadingSession}, payload.Metadata.DataTypes)
}

func TestExport_CSVOnlyCarriesUserBooks(t *testing.T) {
	f := importedLibrary(t)
	svc := NewExportService(f.records, nil)

	payload, err := svc.Export(context.Background(), testUser, exporters.Options{Format: canonical.FormatCSV})
	require.NoError(t, err)

	assert.Equal(t, "text/csv; charset=utf-8", payload.ContentType)
	assert.True(t, strings.HasSuffix(payload.Filename, ".csv"))
	assert.Equal(t, 2, payload.Metadata.TotalRecords)
	lines := strings.Split(strings.TrimSpace(string(payload.Body)), "\n")
	assert.Len(t, lines, 3)
}

func TestExport_ReimportIsIdempotent(t *testing.T) {
	f := importedLibrary(t)
	svc := NewExportService(f.records, nil)
	payload, err := svc.Export(context.Background(), testUser, exporters.Options{Format: canonical.FormatJSON})
	require.NoError(t, err)

	job := f.importFile(t, payload.Filename, string(payload.Body), ConfirmRequest{Strategy: canonical.StrategySkip})

	require.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 0, job.Summary.BooksAdded())
	assert.Equal(t, 2, job.Summary.For(canonical.RecordUserBook).Skipped)
	assert.Equal(t, 0, job.Summary.For(canonical.RecordReadingSession).Added)
}

func TestExport_Rejections(t *testing.T) {
	svc := NewExportService(newMemoryRecords(), nil)

	_, err := svc.Export(context.Background(), testUser, exporters.Options{Format: "xml"})
	assert.Equal(t, errs.KindFileFormat, errs.KindOf(err))

	_, err = svc.Export(context.Background(), "", exporters.Options{})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
