package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/metrics"
	"accreditation-api/models"
	"accreditation-api/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RetentionHorizon is the age past which even protected entries may be pruned by an operator.
const RetentionHorizon = 2 * 365 * 24 * time.Hour

// DefaultRetentionDays is the cleanup window used when the operator passes none.
const DefaultRetentionDays = 365

// Actor is the authenticated caller as the workflow sees it.
type Actor struct {
	ID    string
	Role  models.Role
	Name  string
	Email string
}

func (a *Actor) Is(role models.Role) bool {
	return a != nil && a.Role == role
}

// RequestContext carries the request metadata copied into activity entries and audit trails.
type RequestContext struct {
	IP            string
	UserAgent     string
	SessionID     string
	CorrelationID string
}

// client returns the caller's IP and user agent with "unknown" placeholders for missing values.
func (rc RequestContext) client() (ip, ua string) {
	ip, ua = rc.IP, rc.UserAgent
	if ip == "" {
		ip = "unknown"
	}
	if ua == "" {
		ua = "Unknown"
	}
	return ip, ua
}

// LogDetails holds the optional overrides and free-form fields of one activity entry.
type LogDetails struct {
	Target    *models.TargetResource
	Severity  models.Severity
	Status    models.LogStatus
	Err       error
	ErrorCode string
	Duration  time.Duration
	Tags      []string
	Fields    map[string]interface{}
}

type ActivityLog struct {
	db  *gorm.DB
	now func() time.Time
}

func NewActivityLog(db *gorm.DB) *ActivityLog {
	if db == nil {
		db = config.DB
	}
	return &ActivityLog{db: db, now: time.Now}
}

// Record appends one entry. Persistence failures are logged and swallowed.
func (l *ActivityLog) Record(ctx context.Context, action models.Action, actor *Actor, rc RequestContext, d LogDetails) {
	entry := l.build(action, actor, rc, d)
	if err := l.db.WithContext(persistentContext(ctx)).Create(entry).Error; err != nil {
		metrics.RecordActivityLogWrite(false)
		config.Log.Warnw("activity log write failed", "action", action, "error", err)
		return
	}
	metrics.RecordActivityLogWrite(true)
}

func (l *ActivityLog) build(action models.Action, actor *Actor, rc RequestContext, d LogDetails) *models.ActivityLog {
	ua := utils.ParseUserAgent(rc.UserAgent)
	ip, userAgent := rc.client()
	entry := &models.ActivityLog{
		CreatedAt:     l.now(),
		Action:        action,
		Category:      models.CategoryFor(action),
		Severity:      models.SeverityFor(action),
		Status:        models.LogSuccess,
		Details:       datatypes.JSONMap{},
		IP:            ip,
		UserAgent:     userAgent,
		Device:        ua.Device,
		Browser:       ua.Browser,
		OS:            ua.OS,
		SessionID:     rc.SessionID,
		CorrelationID: rc.CorrelationID,
		DurationMs:    d.Duration.Milliseconds(),
		Tags:          datatypes.JSONSlice[string](d.Tags),
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = newCorrelationID()
	}
	if entry.Tags == nil {
		entry.Tags = datatypes.JSONSlice[string]{}
	}
	if actor != nil && actor.ID != "" {
		id := actor.ID
		entry.UserID = &id
	}
	for k, v := range d.Fields {
		entry.Details[k] = v
	}
	if d.Target != nil {
		entry.Target = *d.Target
	}
	if d.Severity.Valid() {
		entry.Severity = d.Severity
	}
	if d.Status.Valid() {
		entry.Status = d.Status
	}
	if d.Err != nil {
		entry.ErrorMessage = d.Err.Error()
		entry.ErrorCode = d.ErrorCode
		if entry.ErrorCode == "" {
			entry.ErrorCode = string(KindOf(d.Err))
		}
		entry.Status = models.LogFailure
	}
	return entry
}

func newCorrelationID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type LogFilter struct {
	Category string
	Action   string
	Severity string
	Status   string
	UserID   string
	From     *time.Time
	To       *time.Time
	Search   string
	Page     utils.Pagination
}

func (l *ActivityLog) query(ctx context.Context, f LogFilter) *gorm.DB {
	q := l.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(action) LIKE ? OR LOWER(ip) LIKE ? OR LOWER(target_name) LIKE ?", like, like, like)
	}
	return q
}

// CountBucket is one row of a group-and-count aggregation.
type CountBucket struct {
	Key   string `gorm:"column:bucket_key" json:"key"`
	Count int64  `gorm:"column:count" json:"count"`
}

type LogPage struct {
	Logs       []models.ActivityLog `json:"logs"`
	Pagination utils.Pagination     `json:"pagination"`
	Categories []CountBucket        `json:"categories"`
}

func (l *ActivityLog) List(ctx context.Context, f LogFilter) (*LogPage, error) {
	if f.Page.Limit == 0 {
		f.Page = utils.NewPagination("", "", 50)
	}
	var total int64
	if err := l.query(ctx, f).Count(&total).Error; err != nil {
		return nil, internal("failed to count logs", err)
	}
	var logs []models.ActivityLog
	if err := l.query(ctx, f).Preload("User").
		Order("created_at DESC").Limit(f.Page.Limit).Offset(f.Page.Offset()).
		Find(&logs).Error; err != nil {
		return nil, internal("failed to load logs", err)
	}
	var cats []CountBucket
	if err := l.query(ctx, f).Select("category AS bucket_key, COUNT(*) AS count").Group("category").Scan(&cats).Error; err != nil {
		return nil, internal("failed to aggregate logs", err)
	}
	return &LogPage{Logs: logs, Pagination: f.Page.WithTotal(total), Categories: cats}, nil
}

// ListByUser lets admins read anyone's entries and everyone else only their own.
func (l *ActivityLog) ListByUser(ctx context.Context, requester *Actor, userID string, f LogFilter) (*LogPage, error) {
	if requester == nil || (requester.Role != models.RoleAdmin && requester.ID != userID) {
		return nil, forbidden("Access denied")
	}
	f.UserID = userID
	return l.List(ctx, f)
}

var summaryWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

type UserActivity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Count  int64  `json:"count"`
}

type HourBucket struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

type Summary struct {
	Timeframe     string         `json:"timeframe"`
	Since         time.Time      `json:"since"`
	Total         int64          `json:"total"`
	Categories    []CountBucket  `json:"categories"`
	TopActions    []CountBucket  `json:"top_actions"`
	FailedActions []CountBucket  `json:"failed_actions"`
	TopUsers      []UserActivity `json:"top_users"`
	Hourly        []HourBucket   `json:"hourly"`
}

// Summary aggregates a rolling window. Unknown timeframes fall back to 7d.
func (l *ActivityLog) Summary(ctx context.Context, timeframe string) (*Summary, error) {
	window, ok := summaryWindows[timeframe]
	if !ok {
		timeframe, window = "7d", summaryWindows["7d"]
	}
	now := l.now()
	since := now.Add(-window)
	base := func() *gorm.DB {
		return l.db.WithContext(ctx).Model(&models.ActivityLog{}).Where("activity_logs.created_at >= ?", since)
	}

	out := &Summary{Timeframe: timeframe, Since: since}
	if err := base().Count(&out.Total).Error; err != nil {
		return nil, internal("failed to count logs", err)
	}
	if err := base().Select("category AS bucket_key, COUNT(*) AS count").
		Group("category").Order("count DESC").Scan(&out.Categories).Error; err != nil {
		return nil, internal("failed to aggregate categories", err)
	}
	if err := base().Select("action AS bucket_key, COUNT(*) AS count").
		Group("action").Order("count DESC").Limit(10).Scan(&out.TopActions).Error; err != nil {
		return nil, internal("failed to aggregate actions", err)
	}
	if err := base().Where("activity_logs.status = ?", models.LogFailure).Select("action AS bucket_key, COUNT(*) AS count").
		Group("action").Order("count DESC").Scan(&out.FailedActions).Error; err != nil {
		return nil, internal("failed to aggregate failures", err)
	}
	if err := base().Joins("JOIN users ON users.id = activity_logs.user_id").
		Select("activity_logs.user_id AS user_id, users.name AS name, users.email AS email, COUNT(*) AS count").
		Group("activity_logs.user_id, users.name, users.email").Order("count DESC").Limit(10).
		Scan(&out.TopUsers).Error; err != nil {
		return nil, internal("failed to aggregate users", err)
	}

	hourly, err := l.hourly(ctx, now)
	if err != nil {
		return nil, err
	}
	out.Hourly = hourly
	return out, nil
}

// hourly buckets the last 24h in process so the SQL stays portable across drivers.
func (l *ActivityLog) hourly(ctx context.Context, now time.Time) ([]HourBucket, error) {
	var stamps []time.Time
	if err := l.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Pluck("created_at", &stamps).Error; err != nil {
		return nil, internal("failed to load hourly activity", err)
	}
	counts := map[time.Time]int64{}
	for _, ts := range stamps {
		counts[ts.Truncate(time.Hour)]++
	}
	out := make([]HourBucket, 0, len(counts))
	for hour, n := range counts {
		out = append(out, HourBucket{Hour: hour, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out, nil
}

// ExportLimit caps how many entries one export returns.
const ExportLimit = 10000

var csvHeader = []string{"Timestamp", "User", "Role", "Action", "Category", "Status", "IP", "Details"}

// Export renders filtered entries as "csv" or "json" and returns the body and its content type.
func (l *ActivityLog) Export(ctx context.Context, f LogFilter, format string) ([]byte, string, error) {
	var logs []models.ActivityLog
	if err := l.query(ctx, f).Preload("User").Order("created_at DESC").Limit(ExportLimit).Find(&logs).Error; err != nil {
		return nil, "", internal("failed to load logs", err)
	}

	switch format {
	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(csvHeader); err != nil {
			return nil, "", internal("failed to write csv", err)
		}
		for _, entry := range logs {
			user, role := "System", ""
			if entry.User != nil {
				user, role = entry.User.Name, string(entry.User.Role)
			}
			details, _ := json.Marshal(entry.Details)
			if err := w.Write([]string{
				entry.CreatedAt.UTC().Format(time.RFC3339),
				user,
				role,
				string(entry.Action),
				string(entry.Category),
				string(entry.Status),
				entry.IP,
				string(details),
			}); err != nil {
				return nil, "", internal("failed to write csv", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", internal("failed to write csv", err)
		}
		return buf.Bytes(), "text/csv", nil
	case "json", "":
		body, err := json.Marshal(logs)
		if err != nil {
			return nil, "", internal("failed to encode logs", err)
		}
		return body, "application/json", nil
	}
	return nil, "", invalid("Unsupported export format %q", format)
}

type CleanupOptions struct {
	Days int
	// IncludeProtected also prunes critical/high entries past RetentionHorizon.
	IncludeProtected bool
}

type CleanupResult struct {
	Deleted          int64     `json:"deleted"`
	DeletedProtected int64     `json:"deleted_protected"`
	Cutoff           time.Time `json:"cutoff"`
}

// Cleanup removes non-protected entries older than opts.Days days.
func (l *ActivityLog) Cleanup(ctx context.Context, opts CleanupOptions) (*CleanupResult, error) {
	if opts.Days < 0 {
		return nil, invalid("days must not be negative")
	}
	if opts.Days == 0 {
		opts.Days = DefaultRetentionDays
	}
	now := l.now()
	cutoff := now.AddDate(0, 0, -opts.Days)
	res := &CleanupResult{Cutoff: cutoff}

	del := l.db.WithContext(ctx).
		Where("created_at < ? AND severity NOT IN ?", cutoff, []models.Severity{models.SeverityCritical, models.SeverityHigh}).
		Delete(&models.ActivityLog{})
	if del.Error != nil {
		return nil, internal("failed to clean up logs", del.Error)
	}
	res.Deleted = del.RowsAffected

	if opts.IncludeProtected {
		del = l.db.WithContext(ctx).
			Where("created_at < ? AND severity IN ?", now.Add(-RetentionHorizon), []models.Severity{models.SeverityCritical, models.SeverityHigh}).
			Delete(&models.ActivityLog{})
		if del.Error != nil {
			return nil, internal("failed to clean up protected logs", del.Error)
		}
		res.DeletedProtected = del.RowsAffected
	}

	metrics.ActivityLogPruned.Add(float64(res.Deleted + res.DeletedProtected))
	return res, nil
}

func documentTarget(doc *models.Document) *models.TargetResource {
	if doc == nil {
		return nil
	}
	return &models.TargetResource{Kind: models.ResourceDocument, ID: doc.ID, Name: doc.Title}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// persistentContext keeps request values but drops cancellation for best-effort writes.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
