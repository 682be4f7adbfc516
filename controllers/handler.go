package controllers

import (
	"net/http"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/middleware"
	"accreditation-api/services"
	"accreditation-api/utils"

	"github.com/gin-gonic/gin"
)

// Handler serves the HTTP API on top of the workflow services.
type Handler struct {
	app      *services.App
	settings config.Settings
}

func NewHandler(app *services.App, settings config.Settings) *Handler {
	return &Handler{app: app, settings: settings}
}

var statusByKind = map[services.Kind]int{
	services.KindNotFound:         http.StatusNotFound,
	services.KindForbidden:        http.StatusForbidden,
	services.KindValidation:       http.StatusBadRequest,
	services.KindConflict:         http.StatusConflict,
	services.KindCapacityExceeded: http.StatusBadRequest,
	services.KindUpstream:         http.StatusBadGateway,
	services.KindUnauthorized:     http.StatusUnauthorized,
}

// respondError writes the error envelope for err. Internal causes are logged and hidden in release mode.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, ok := statusByKind[services.KindOf(err)]
	if ok {
		c.JSON(status, gin.H{"success": false, "message": services.MessageOf(err)})
		return
	}

	config.Log.Errorw("request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	body := gin.H{"success": false, "message": "Server error"}
	if h.settings.GinMode != gin.ReleaseMode {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

func pageFrom(c *gin.Context) utils.Pagination {
	return utils.NewPagination(c.Query("page"), c.Query("limit"), utils.DefaultPageLimit)
}

// parseTime accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
func parseTime(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func actor(c *gin.Context) *services.Actor {
	return middleware.Actor(c)
}

func requestContext(c *gin.Context) services.RequestContext {
	return middleware.RequestContext(c)
}
