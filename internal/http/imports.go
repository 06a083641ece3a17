package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/jobs"
	"github.com/mrlokans/bookshelf/internal/ratelimit"
	"github.com/mrlokans/bookshelf/internal/services"
)

type ImportsController struct {
	imports *services.ImportService
	limiter *ratelimit.Limiter
}

func NewImportsController(imports *services.ImportService, limiter *ratelimit.Limiter) *ImportsController {
	return &ImportsController{imports: imports, limiter: limiter}
}

// UploadResponse is the preview of an uploaded file. JobID is set when the
// upload asked for the import to start right away.
type UploadResponse struct {
	JobID string `json:"jobId,omitempty"`
	*services.Preview
}

// Upload parses a multipart "file" and returns its preview. Nothing is
// written unless a "strategy" field is given, in which case the import is
// confirmed immediately with that strategy and "strict".
func (ic *ImportsController) Upload(c *gin.Context) {
	userID := getUserID(c)
	if ic.limiter != nil {
		if err := ic.limiter.Allow(userID, ratelimit.ActionImport); err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(ic.limiter.Remaining(userID, ratelimit.ActionImport)))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, errs.New(errs.KindFileSize, "upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		respondBadRequest(c, "multipart field \"file\" is required")
		return
	}

	var format canonical.Format
	if raw := c.PostForm("format"); raw != "" {
		format, err = canonical.ParseFormat(raw)
		if err != nil {
			respondError(c, errs.Wrap(errs.KindFileFormat, err, "unsupported format"))
			return
		}
	}
	strict, err := parseBool(c.PostForm("strict"))
	if err != nil {
		respondBadRequest(c, "strict must be a boolean")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	preview, err := ic.imports.Preview(c.Request.Context(), services.PreviewRequest{
		UserID:   userID,
		Filename: fileHeader.Filename,
		Format:   format,
		Size:     fileHeader.Size,
		Body:     file,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := UploadResponse{Preview: preview}
	if strategy := c.PostForm("strategy"); strategy != "" {
		job, err := ic.imports.Confirm(c.Request.Context(), services.ConfirmRequest{
			UserID:   userID,
			UploadID: preview.UploadID,
			Strategy: canonical.Strategy(strategy),
			Strict:   strict,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		resp.JobID = job.ID
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmRequest is the body of a confirm call. Override keys are the 1-based
// position of a user book in the uploaded file.
type ConfirmRequest struct {
	Strategy  canonical.Strategy            `json:"strategy"`
	Overrides map[string]canonical.Strategy `json:"overrides"`
	Strict    bool                          `json:"strict"`
}

type ConfirmResponse struct {
	JobID                string `json:"jobId"`
	Status               string `json:"status"`
	EstimatedTimeSeconds int    `json:"estimatedTimeSeconds"`
}

// Confirm starts the import of a previewed upload.
func (ic *ImportsController) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	overrides := make(map[int]canonical.Strategy, len(req.Overrides))
	for key, strategy := range req.Overrides {
		index, err := strconv.Atoi(key)
		if err != nil || index < 1 {
			respondBadRequest(c, "override keys must be positive record indexes, got "+strconv.Quote(key))
			return
		}
		overrides[index] = strategy
	}

	job, err := ic.imports.Confirm(c.Request.Context(), services.ConfirmRequest{
		UserID:    getUserID(c),
		UploadID:  c.Param("uploadId"),
		Strategy:  req.Strategy,
		Overrides: overrides,
		Strict:    req.Strict,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// an inline runner may already have finished the job
	if current, err := ic.imports.Jobs().Get(c.Request.Context(), job.ID); err == nil {
		job = current
	}
	c.JSON(http.StatusAccepted, ConfirmResponse{
		JobID:                job.ID,
		Status:               string(job.Status),
		EstimatedTimeSeconds: ic.imports.Jobs().EstimateSeconds(job.TotalRecords),
	})
}

// JobResponse is a job snapshot with its errors lifted to the top level.
type JobResponse struct {
	*jobs.Job
	Errors []canonical.ImportError `json:"errors,omitempty"`
}

func newJobResponse(job *jobs.Job) JobResponse {
	resp := JobResponse{Job: job}
	if job.Summary != nil {
		resp.Errors = job.Summary.Errors
	}
	return resp
}

// ownJob loads the job and hides other users' jobs as not found.
func (ic *ImportsController) ownJob(c *gin.Context) (*jobs.Job, bool) {
	job, err := ic.imports.Jobs().Get(c.Request.Context(), c.Param("id"))
	if err == nil && job.UserID != getUserID(c) {
		err = jobs.ErrNotFound
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return job, true
}

func (ic *ImportsController) JobStatus(c *gin.Context) {
	job, ok := ic.ownJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

func (ic *ImportsController) ListJobs(c *gin.Context) {
	list, err := ic.imports.Jobs().List(c.Request.Context(), getUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]JobResponse, 0, len(list))
	for _, job := range list {
		out = append(out, newJobResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

// Cancel stops a queued job at once and asks a processing job to stop.
func (ic *ImportsController) Cancel(c *gin.Context) {
	if _, ok := ic.ownJob(c); !ok {
		return
	}
	job, err := ic.imports.Jobs().Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !job.Status.Terminal() {
		status = http.StatusAccepted
	}
	c.JSON(status, newJobResponse(job))
}

// Rollback deletes the records a finished job added.
func (ic *ImportsController) Rollback(c *gin.Context) {
	removed, err := ic.imports.Rollback(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": c.Param("id"), "removed": removed})
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}
