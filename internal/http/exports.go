package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/canonical"
	"github.com/mrlokans/bookshelf/internal/errs"
	"github.com/mrlokans/bookshelf/internal/exporters"
	"github.com/mrlokans/bookshelf/internal/ratelimit"
	"github.com/mrlokans/bookshelf/internal/services"
)

type ExportsController struct {
	exports *services.ExportService
	limiter *ratelimit.Limiter
}

func NewExportsController(exports *services.ExportService, limiter *ratelimit.Limiter) *ExportsController {
	return &ExportsController{exports: exports, limiter: limiter}
}

// Export streams the caller's library as an attachment.
//
// Query: format=json|csv|goodreads, dataTypes=userBooks,readingSessions,...,
// from and to as YYYY-MM-DD or RFC 3339.
func (ec *ExportsController) Export(c *gin.Context) {
	opts, err := exportOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}

	userID := getUserID(c)
	if ec.limiter != nil {
		if err := ec.limiter.Allow(userID, ratelimit.ActionExport); err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(ec.limiter.Remaining(userID, ratelimit.ActionExport)))
	}

	payload, err := ec.exports.Export(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", payload.Filename))
	c.Header("X-Total-Records", fmt.Sprint(payload.Metadata.TotalRecords))
	c.Data(http.StatusOK, payload.ContentType, payload.Body)
}

func exportOptions(c *gin.Context) (exporters.Options, error) {
	var opts exporters.Options

	format, err := canonical.ParseFormat(c.DefaultQuery("format", string(canonical.FormatJSON)))
	if err != nil {
		return opts, errs.Wrap(errs.KindFileFormat, err, "unsupported export format")
	}
	opts.Format = format

	if raw := c.Query("dataTypes"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t, err := canonical.ParseRecordType(strings.TrimSpace(part))
			if err != nil {
				e := errs.Wrap(errs.KindValidation, err, "invalid data type")
				e.Field = "dataTypes"
				return opts, e
			}
			opts.DataTypes = append(opts.DataTypes, t)
		}
	}

	from, err := parseDateParam(c, "from")
	if err != nil {
		return opts, err
	}
	to, err := parseDateParam(c, "to")
	if err != nil {
		return opts, err
	}
	if from != nil || to != nil {
		if from != nil && to != nil && to.Before(*from) {
			e := errs.New(errs.KindValidation, "to must not be before from")
			e.Field = "to"
			return opts, e
		}
		opts.DateRange = &canonical.DateRange{From: from, To: to}
	}
	return opts, nil
}

func parseDateParam(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	e := errs.New(errs.KindValidation, "%s must be a date (YYYY-MM-DD), got %q", name, raw)
	e.Field = name
	return nil, e
}
