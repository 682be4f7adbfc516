package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accreditation_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// DocumentTransitions counts committed document status changes.
	DocumentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_document_transitions_total",
			Help: "Document status transitions by source and target status",
		},
		[]string{"from", "to"},
	)

	ActivityLogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_activity_log_writes_total",
			Help: "Activity log writes by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	ActivityLogPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accreditation_activity_log_pruned_total",
			Help: "Activity log entries removed by retention cleanup",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_notifications_total",
			Help: "Outbound notification emails by kind and result",
		},
		[]string{"kind", "result"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // "success", "invalid", "locked"
	)

	DashboardCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_dashboard_cache_total",
			Help: "Admin dashboard cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

func RecordTransition(from, to string) {
	DocumentTransitions.WithLabelValues(from, to).Inc()
}

func RecordActivityLogWrite(ok bool) {
	if ok {
		ActivityLogWrites.WithLabelValues("success").Inc()
		return
	}
	ActivityLogWrites.WithLabelValues("failure").Inc()
}

func RecordNotification(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	NotificationsTotal.WithLabelValues(kind, result).Inc()
}
