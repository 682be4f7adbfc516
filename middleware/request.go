package middleware

import (
	"strings"
	"time"

	"accreditation-api/metrics"
	"accreditation-api/models"
	"accreditation-api/services"
	"accreditation-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	correlationKey    = "correlationId"
	CorrelationHeader = "X-Request-ID"
)

// Correlation reuses the caller's X-Request-ID or mints one, and echoes it back.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header(CorrelationHeader, id)
		c.Next()
	}
}

// RequestContext collects the request metadata that activity entries and audit trails carry.
func RequestContext(c *gin.Context) services.RequestContext {
	rc := services.RequestContext{
		IP: utils.ClientIP(utils.IPSource{
			Explicit:     c.ClientIP(),
			RemoteAddr:   c.Request.RemoteAddr,
			ForwardedFor: c.GetHeader("X-Forwarded-For"),
			RealIP:       c.GetHeader("X-Real-IP"),
		}),
		UserAgent:     c.Request.UserAgent(),
		CorrelationID: c.GetString(correlationKey),
	}
	if claims := Claims(c); claims != nil {
		rc.SessionID = claims.SessionID
	}
	return rc
}

// Metrics records request counts and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

var skipActivityPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// ActivityLogger writes one api_request_<method> entry per routed request.
func ActivityLogger(log *services.ActivityLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skipActivityPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		if c.FullPath() == "" {
			return
		}
		status := c.Writer.Status()
		details := services.LogDetails{
			Duration: time.Since(start),
			Fields: map[string]interface{}{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"route":      c.FullPath(),
				"statusCode": status,
			},
		}
		if status >= 400 {
			details.Severity = models.SeverityHigh
			details.Status = models.LogFailure
		}
		if q := c.Request.URL.RawQuery; q != "" {
			details.Fields["query"] = q
		}
		log.Record(c.Request.Context(), models.APIRequestAction(c.Request.Method), Actor(c), RequestContext(c), details)
	}
}
