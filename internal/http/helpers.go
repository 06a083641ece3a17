package http

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/ratelimit"
)

// ContextKeyUserID is the gin context key holding the caller's user id.
const ContextKeyUserID = "user_id"

// --- Response Types ---

// APIError is the error body every failed request returns.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindParse, errs.KindValidation:
		return http.StatusUnprocessableEntity
	case errs.KindFileSize:
		return http.StatusRequestEntityTooLarge
	case errs.KindFileFormat:
		return http.StatusUnsupportedMediaType
	case errs.KindRateLimit:
		return http.StatusTooManyRequests
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInvalidState, errs.KindDuplicateHandling:
		return http.StatusConflict
	case errs.KindDatabaseConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the standard error shape and aborts the request.
// Server-side failures are logged and their text is not sent to the client.
func respondError(c *gin.Context, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = &errs.Error{Kind: errs.KindInternal, Err: err}
	}
	status := statusFor(e.Kind)

	body := APIError{Code: string(e.Kind), Message: e.Error(), Details: e.Details}
	if status >= http.StatusInternalServerError {
		log.Printf("Internal error (%s %s): %v", c.Request.Method, c.FullPath(), err)
		body.Message = "internal server error"
		if e.Kind == errs.KindDatabaseConnection {
			body.Message = "storage is temporarily unavailable"
		}
		body.Details = nil
	} else if body.Details == nil && (e.Line > 0 || e.Field != "") {
		body.Details = gin.H{"line": e.Line, "field": e.Field}
	}

	if d, ok := e.Details.(ratelimit.Exceeded); ok {
		c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Error: body})
}

// respondBadRequest rejects a malformed request before it reaches the engine.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, errs.New(errs.KindValidation, "%s", message))
}

// getUserID returns the caller's user id set by UserMiddleware.
func getUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// UserMiddleware resolves the caller from header, falling back to
// defaultUser. Requests with neither are rejected with 401.
func UserMiddleware(header, defaultUser string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := defaultUser
		if header != "" {
			if v := c.GetHeader(header); v != "" {
				user = v
			}
		}
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: APIError{
				Code:    "UNAUTHENTICATED",
				Message: "missing user identity",
			}})
			return
		}
		c.Set(ContextKeyUserID, user)
		c.Next()
	}
}
