package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"accreditation-api/models"
	"accreditation-api/services"
	"accreditation-api/utils"

	"github.com/gin-gonic/gin"
)

const (
	logPageLimit     = 50
	userLogPageLimit = 30
)

func logFilterFrom(c *gin.Context, defaultLimit int) (services.LogFilter, bool) {
	from, ok := parseTime(c.Query("startDate"))
	if !ok {
		badRequest(c, "Invalid startDate")
		return services.LogFilter{}, false
	}
	to, ok := parseTime(c.Query("endDate"))
	if !ok {
		badRequest(c, "Invalid endDate")
		return services.LogFilter{}, false
	}
	return services.LogFilter{
		Category: c.Query("category"),
		Action:   c.Query("action"),
		Severity: c.Query("severity"),
		Status:   c.Query("status"),
		UserID:   c.Query("user"),
		From:     from,
		To:       to,
		Search:   c.Query("search"),
		Page:     utils.NewPagination(c.Query("page"), c.Query("limit"), defaultLimit),
	}, true
}

func (h *Handler) GetLogs(c *gin.Context) {
	filter, ok := logFilterFrom(c, logPageLimit)
	if !ok {
		return
	}
	page, err := h.app.Log.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

// GetUserLogs returns one user's entries to an admin or to that user.
func (h *Handler) GetUserLogs(c *gin.Context) {
	filter, ok := logFilterFrom(c, userLogPageLimit)
	if !ok {
		return
	}
	page, err := h.app.Log.ListByUser(c.Request.Context(), actor(c), c.Param("userId"), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

func (h *Handler) GetActivitySummary(c *gin.Context) {
	summary, err := h.app.Log.Summary(c.Request.Context(), c.DefaultQuery("timeframe", "24h"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}

type ExportLogsRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Format    string `json:"format"`
	Filters   struct {
		Category string `json:"category"`
		Action   string `json:"action"`
		Severity string `json:"severity"`
		Status   string `json:"status"`
		User     string `json:"user"`
	} `json:"filters"`
}

// ExportLogs returns the matching entries as a CSV or JSON attachment.
func (h *Handler) ExportLogs(c *gin.Context) {
	var req ExportLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid export request")
		return
	}
	from, ok := parseTime(req.StartDate)
	if !ok {
		badRequest(c, "Invalid startDate")
		return
	}
	to, ok := parseTime(req.EndDate)
	if !ok {
		badRequest(c, "Invalid endDate")
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}

	ctx := c.Request.Context()
	body, contentType, err := h.app.Log.Export(ctx, services.LogFilter{
		Category: req.Filters.Category,
		Action:   req.Filters.Action,
		Severity: req.Filters.Severity,
		Status:   req.Filters.Status,
		UserID:   req.Filters.User,
		From:     from,
		To:       to,
	}, req.Format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.app.Log.Record(ctx, models.ActionDataExport, actor(c), requestContext(c), services.LogDetails{
		Fields: map[string]interface{}{"format": req.Format, "bytes": len(body)},
	})
	filename := fmt.Sprintf("activity-logs-%s.%s", time.Now().Format("2006-01-02"), req.Format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, contentType, body)
}

// CleanupLogs runs the retention cleanup now. Protected entries survive unless includeProtected is set.
func (h *Handler) CleanupLogs(c *gin.Context) {
	var req struct {
		Days             int  `json:"days"`
		IncludeProtected bool `json:"includeProtected"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid cleanup request")
			return
		}
	}
	if req.Days < 0 {
		badRequest(c, "Days must be positive")
		return
	}

	res, err := h.app.Retention.RunOnce(c.Request.Context(), actor(c), services.CleanupOptions{
		Days:             req.Days,
		IncludeProtected: req.IncludeProtected,
	})
	if errors.Is(err, services.ErrRetentionAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Log cleanup is already running"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, fmt.Sprintf("Deleted %d old log entries", res.Deleted+res.DeletedProtected), res)
}
