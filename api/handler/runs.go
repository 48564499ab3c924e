package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gamedeck/api/middleware"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/exporter"
	"github.com/use-agent/gamedeck/models"
	"github.com/use-agent/gamedeck/pipeline"
)

// PostRun returns a handler for POST /api/v1/runs.
// An empty body or view list runs defaults. Request-supplied views need an
// authenticated caller and http(s) sources; local documents come only from
// configuration.
func PostRun(store *RunStore, defaults []config.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				abortError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
				return
			}
		}

		views := defaults
		if len(req.Views) > 0 {
			if !middleware.Authenticated(c) {
				abortError(c, http.StatusForbidden, models.ErrCodeForbidden,
					"choosing views requires an API key; configure GAMEDECK_API_KEYS or post an empty body")
				return
			}
			views = make([]config.View, len(req.Views))
			for i, v := range req.Views {
				if !remoteSource(v.URL) || !remoteSource(v.Document) {
					abortError(c, http.StatusBadRequest, models.ErrCodeInvalidInput,
						"view "+v.Platform+": url and document must be http(s) URLs")
					return
				}
				views[i] = config.View{Platform: v.Platform, URL: v.URL, Document: v.Document}
			}
		}
		if err := pipeline.Validate(views); err != nil {
			abortError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}

		id, err := store.Start(views)
		if errors.Is(err, ErrRunInProgress) {
			abortError(c, http.StatusConflict, models.ErrCodeRunInProgress,
				err.Error()+": "+store.Active())
			return
		}
		if err != nil {
			abortError(c, http.StatusInternalServerError, models.ErrCodeInternal, err.Error())
			return
		}

		c.JSON(http.StatusAccepted, models.RunAccepted{
			ID:     id,
			Status: models.RunStatusRunning,
			Views:  len(views),
		})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(store *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := store.Get(c.Param("id"))
		if !ok {
			abortError(c, http.StatusNotFound, models.ErrCodeInvalidInput, "run not found")
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// GetRunRecords returns a handler for GET /api/v1/runs/:id/records.
// The body has the same shape as the output file.
func GetRunRecords(store *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := store.Get(c.Param("id"))
		if !ok {
			abortError(c, http.StatusNotFound, models.ErrCodeInvalidInput, "run not found")
			return
		}
		if report.Status == models.RunStatusRunning {
			abortError(c, http.StatusConflict, models.ErrCodeRunInProgress, "run has not finished")
			return
		}

		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Status(http.StatusOK)
		if err := exporter.Encode(c.Writer, report.Records); err != nil {
			_ = c.Error(err)
		}
	}
}

// remoteSource reports whether s is empty or an http(s) URL.
func remoteSource(s string) bool {
	if s == "" {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}
