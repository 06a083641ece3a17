package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/errs"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and other fields.
const multipartOverhead = 1 << 20

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := router.Group("/api", UserMiddleware(cfg.UserHeader, cfg.DefaultUserID))

	if cfg.Imports != nil {
		imports := NewImportsController(cfg.Imports, cfg.Limiter)
		api.POST("/imports", BodyLimit(cfg.Imports.MaxUploadBytes()), imports.Upload)
		api.POST("/imports/:uploadId/confirm", imports.Confirm)
		api.GET("/jobs", imports.ListJobs)
		api.GET("/jobs/:id", imports.JobStatus)
		api.POST("/jobs/:id/cancel", imports.Cancel)
		api.POST("/jobs/:id/rollback", imports.Rollback)
	}

	if cfg.Exports != nil {
		exports := NewExportsController(cfg.Exports, cfg.Limiter)
		api.GET("/exports", exports.Export)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, errs.New(errs.KindNotFound, "no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})

	return router
}

// BodyLimit rejects request bodies larger than maxBytes plus multipart
// overhead with a file size error.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	limit := maxBytes + multipartOverhead
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			respondError(c, errs.New(errs.KindFileSize, "upload exceeds %d bytes", maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
