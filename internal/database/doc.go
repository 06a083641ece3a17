// Package database provides the data access layer for the engine.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── records/         # User books, wishlist, collections, reading sessions
//	├── importjobs/      # Import job state
//	├── uploads/         # Staged uploads awaiting confirmation
//	└── audit/           # Audit events
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./bookshelf.db")
//
//	recordsRepo := records.NewRepository(db.DB)
//	jobsRepo := importjobs.NewRepository(db.DB)
//
// # Interface Implementations
//
//   - records.Repository: implements services.RecordStore
//   - importjobs.Repository: implements jobs.Store
//   - uploads.Repository: implements services.UploadStore
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
//  6. Register its models in Models
package database
