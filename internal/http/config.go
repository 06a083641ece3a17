package http

import (
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/ratelimit"
	"github.com/mrlokans/bookshelf/internal/services"
)

// RouterConfig contains all dependencies and configuration needed to create
// the HTTP router.
type RouterConfig struct {
	Imports *services.ImportService
	Exports *services.ExportService

	// Limiter is optional; without it nothing is rate limited.
	Limiter *ratelimit.Limiter

	// Database is used by the health check only.
	Database *database.Database

	// UserHeader names the header carrying the caller's user id. DefaultUserID
	// is used when the header is absent; with neither, requests are rejected.
	UserHeader    string
	DefaultUserID string

	Version string
}
