package services

import (
	"testing"
	"time"

	"accreditation-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionRunOnce(t *testing.T) {
	f := newFixture(t)
	recordAt(f, time.Now().AddDate(0, 0, -400), models.ActionDocumentDownloaded)
	recordAt(f, time.Now().AddDate(0, 0, -10), models.ActionDocumentDownloaded)

	res, err := f.app.Retention.RunOnce(f.ctx, f.actor(f.admin), CleanupOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Deleted)

	var entry models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", models.ActionLogsCleanedUp).Take(&entry).Error)
	assert.EqualValues(t, 365, entry.Details["days"])
	assert.EqualValues(t, 1, entry.Details["deleted"])
	require.NotNil(t, entry.UserID)
	assert.Equal(t, f.admin.ID, *entry.UserID)
}

func TestRetentionRunOnce_RejectsOverlap(t *testing.T) {
	f := newFixture(t)
	job := NewRetentionJob(f.app.Log, 30)
	job.running.Lock()
	defer job.running.Unlock()

	_, err := job.RunOnce(f.ctx, nil, CleanupOptions{})
	assert.ErrorIs(t, err, ErrRetentionAlreadyRunning)
}

func TestRetentionStart(t *testing.T) {
	f := newFixture(t)
	job := NewRetentionJob(f.app.Log, 0)
	assert.Equal(t, DefaultRetentionDays, job.days)

	require.NoError(t, job.Start(""))
	assert.Empty(t, job.cron.Entries())

	assert.Error(t, job.Start("not a schedule"))

	require.NoError(t, job.Start("@every 1h"))
	assert.Len(t, job.cron.Entries(), 1)
	job.Stop()
}
