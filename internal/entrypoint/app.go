package entrypoint

import (
	"fmt"
	"log"

	"github.com/mrlokans/bookshelf/internal/audit"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/database"
	auditrepo "github.com/mrlokans/bookshelf/internal/database/audit"
	"github.com/mrlokans/bookshelf/internal/database/importjobs"
	"github.com/mrlokans/bookshelf/internal/database/records"
	"github.com/mrlokans/bookshelf/internal/database/uploads"
	"github.com/mrlokans/bookshelf/internal/dedupe"
	"github.com/mrlokans/bookshelf/internal/jobs"
	"github.com/mrlokans/bookshelf/internal/services"
)

// App holds the services shared by the HTTP server and the CLI commands.
// The import runner is left unset; callers pick one.
type App struct {
	DB      *database.Database
	Records *records.Repository
	Uploads *uploads.Repository
	Audit   *audit.Service
	Imports *services.ImportService
	Exports *services.ExportService
}

// NewApp opens the database and builds the import and export services.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	if cfg.Audit.Dir != "" {
		auditService.WithArchive(audit.NewAuditor(cfg.Audit.Dir))
	}

	recordStore := records.NewRepository(db.DB)
	uploadStore := uploads.NewRepository(db.DB)
	manager := jobs.NewManager(
		importjobs.NewRepository(db.DB),
		jobs.NewMemoryFlags(),
		jobs.WithRecordsPerSecond(cfg.Import.RecordsPerSecond),
	)
	detector := dedupe.NewDetector(dedupe.Config{
		TitleWeight:    cfg.Dedupe.TitleWeight,
		AuthorWeight:   cfg.Dedupe.AuthorWeight,
		Threshold:      cfg.Dedupe.Threshold,
		SubstringScore: cfg.Dedupe.SubstringScore,
	})

	imports := services.NewImportService(recordStore, uploadStore, manager, detector, auditService, services.ImportConfig{
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		UploadTTL:      cfg.Import.UploadTTL,
		StagingDir:     cfg.Import.StagingDir,
		PreviewLimit:   cfg.Import.PreviewLimit,
		ProgressEvery:  cfg.Import.ProgressEvery,
	})

	return &App{
		DB:      db,
		Records: recordStore,
		Uploads: uploadStore,
		Audit:   auditService,
		Imports: imports,
		Exports: services.NewExportService(recordStore, auditService),
	}, nil
}

// Close waits for pending audit writes and closes the database.
func (a *App) Close() {
	a.Audit.Wait()
	if err := a.DB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
