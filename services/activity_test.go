package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"accreditation-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryAndSeverityLookup(t *testing.T) {
	assert.Equal(t, models.CategoryAuthentication, models.CategoryFor(models.ActionLogin))
	assert.Equal(t, models.CategoryAudit, models.CategoryFor(models.ActionAuditFindingAdded))
	assert.Equal(t, models.CategorySystem, models.CategoryFor(models.APIRequestAction("GET")))

	assert.Equal(t, models.SeverityHigh, models.SeverityFor(models.ActionLoginFailed))
	assert.Equal(t, models.SeverityCritical, models.SeverityFor(models.ActionAccountLocked))
	assert.Equal(t, models.SeverityHigh, models.SeverityFor(models.ActionDocumentDeleted))
	assert.Equal(t, models.SeverityLow, models.SeverityFor(models.ActionDocumentDownloaded))
	assert.Equal(t, models.Action("api_request_post"), models.APIRequestAction("POST"))
}

func TestRecord_FillsDefaults(t *testing.T) {
	f := newFixture(t)

	f.app.Log.Record(f.ctx, models.ActionLoginFailed, nil, RequestContext{}, LogDetails{
		Fields: map[string]interface{}{"email": "nobody@example.com"},
	})

	var entry models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", models.ActionLoginFailed).Take(&entry).Error)
	assert.Nil(t, entry.UserID)
	assert.Equal(t, models.CategoryAuthentication, entry.Category)
	assert.Equal(t, models.SeverityHigh, entry.Severity)
	assert.Equal(t, models.LogSuccess, entry.Status)
	assert.Equal(t, "unknown", entry.IP)
	assert.Equal(t, "Unknown", entry.UserAgent)
	assert.NotEmpty(t, entry.CorrelationID)
	assert.Equal(t, "nobody@example.com", entry.Details["email"])
}

func TestRecord_ErrorMarksFailure(t *testing.T) {
	f := newFixture(t)

	f.app.Log.Record(f.ctx, models.ActionDocumentUploadFailed, f.actor(f.instituteUser), f.rc(), LogDetails{
		Err:      upstream("File upload failed", errors.New("bucket unavailable")),
		Severity: models.SeverityMedium,
		Tags:     []string{"upload"},
	})

	var entry models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", models.ActionDocumentUploadFailed).Take(&entry).Error)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, f.instituteUser.ID, *entry.UserID)
	assert.Equal(t, models.LogFailure, entry.Status)
	assert.Equal(t, string(KindUpstream), entry.ErrorCode)
	assert.Contains(t, entry.ErrorMessage, "bucket unavailable")
	assert.Equal(t, models.SeverityMedium, entry.Severity)
	assert.Equal(t, "Chrome", entry.Browser)
	assert.Equal(t, []string{"upload"}, []string(entry.Tags))
}

// recordAt writes one entry with a fixed timestamp.
func recordAt(f *fixture, at time.Time, action models.Action) {
	f.t.Helper()
	restore := f.app.Log.now
	f.app.Log.now = func() time.Time { return at }
	defer func() { f.app.Log.now = restore }()
	f.app.Log.Record(f.ctx, action, f.actor(f.admin), f.rc(), LogDetails{})
}

func TestCleanup_KeepsProtectedEntries(t *testing.T) {
	f := newFixture(t)
	old := time.Now().AddDate(0, 0, -40)
	recordAt(f, old, models.ActionDocumentDownloaded)
	recordAt(f, old, models.ActionLoginFailed)
	recordAt(f, time.Now(), models.ActionDocumentDownloaded)

	res, err := f.app.Log.Cleanup(f.ctx, CleanupOptions{Days: 30})
	require.NoError(t, err)

	assert.EqualValues(t, 1, res.Deleted)
	assert.Zero(t, res.DeletedProtected)
	assert.EqualValues(t, 1, f.logCount(models.ActionDocumentDownloaded))
	assert.EqualValues(t, 1, f.logCount(models.ActionLoginFailed))
}

func TestCleanup_IncludeProtectedPastHorizon(t *testing.T) {
	f := newFixture(t)
	ancient := time.Now().AddDate(-3, 0, 0)
	recordAt(f, ancient, models.ActionAccountLocked)
	recordAt(f, time.Now().AddDate(0, 0, -40), models.ActionLoginFailed)

	res, err := f.app.Log.Cleanup(f.ctx, CleanupOptions{Days: 30, IncludeProtected: true})
	require.NoError(t, err)

	assert.EqualValues(t, 1, res.DeletedProtected)
	assert.Zero(t, f.logCount(models.ActionAccountLocked))
	assert.EqualValues(t, 1, f.logCount(models.ActionLoginFailed))
}

func TestCleanup_Defaults(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f.app.Log.now = func() time.Time { return now }

	res, err := f.app.Log.Cleanup(f.ctx, CleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -DefaultRetentionDays), res.Cutoff)

	_, err = f.app.Log.Cleanup(f.ctx, CleanupOptions{Days: -1})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestListAndListByUser(t *testing.T) {
	f := newFixture(t)
	f.app.Log.Record(f.ctx, models.ActionLogin, f.actor(f.reviewerUser), f.rc(), LogDetails{})
	f.app.Log.Record(f.ctx, models.ActionLogin, f.actor(f.auditorUser), f.rc(), LogDetails{})
	f.app.Log.Record(f.ctx, models.ActionDocumentDownloaded, f.actor(f.auditorUser), f.rc(), LogDetails{})

	page, err := f.app.Log.List(f.ctx, LogFilter{Category: string(models.CategoryAuthentication)})
	require.NoError(t, err)
	assert.Len(t, page.Logs, 2)
	assert.EqualValues(t, 2, page.Pagination.Total)

	own, err := f.app.Log.ListByUser(f.ctx, f.actor(f.auditorUser), f.auditorUser.ID, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, own.Logs, 2)

	_, err = f.app.Log.ListByUser(f.ctx, f.actor(f.auditorUser), f.reviewerUser.ID, LogFilter{})
	assert.Equal(t, KindForbidden, KindOf(err))

	other, err := f.app.Log.ListByUser(f.ctx, f.actor(f.admin), f.reviewerUser.ID, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, other.Logs, 1)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.app.Log.Record(f.ctx, models.ActionLogin, f.actor(f.reviewerUser), f.rc(), LogDetails{})
	f.app.Log.Record(f.ctx, models.ActionLogin, f.actor(f.reviewerUser), f.rc(), LogDetails{})
	f.app.Log.Record(f.ctx, models.ActionLoginFailed, nil, f.rc(), LogDetails{Err: unauthorized("Invalid credentials")})
	recordAt(f, time.Now().AddDate(0, 0, -10), models.ActionLogin)

	sum, err := f.app.Log.Summary(f.ctx, "bogus")
	require.NoError(t, err)
	assert.Equal(t, "7d", sum.Timeframe)
	assert.EqualValues(t, 3, sum.Total)
	require.NotEmpty(t, sum.TopActions)
	assert.Equal(t, string(models.ActionLogin), sum.TopActions[0].Key)
	assert.EqualValues(t, 2, sum.TopActions[0].Count)
	require.Len(t, sum.FailedActions, 1)
	assert.Equal(t, string(models.ActionLoginFailed), sum.FailedActions[0].Key)
	require.Len(t, sum.TopUsers, 1)
	assert.Equal(t, f.reviewerUser.Email, sum.TopUsers[0].Email)

	var hourly int64
	for _, h := range sum.Hourly {
		hourly += h.Count
	}
	assert.EqualValues(t, 3, hourly)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.app.Log.Record(f.ctx, models.ActionLogin, f.actor(f.reviewerUser), f.rc(), LogDetails{})
	f.app.Log.Record(f.ctx, models.ActionLoginFailed, nil, f.rc(), LogDetails{})

	body, contentType, err := f.app.Log.Export(f.ctx, LogFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	rows, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	users := []string{rows[1][1], rows[2][1]}
	assert.ElementsMatch(t, []string{f.reviewerUser.Name, "System"}, users)

	body, contentType, err = f.app.Log.Export(f.ctx, LogFilter{Action: string(models.ActionLogin)}, "json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	var logs []models.ActivityLog
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionLogin, logs[0].Action)

	_, _, err = f.app.Log.Export(f.ctx, LogFilter{}, "xml")
	assert.Equal(t, KindValidation, KindOf(err))
}
