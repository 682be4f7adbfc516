package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"accreditation-api/config"
	"accreditation-api/models"

	"github.com/robfig/cron/v3"
)

// ErrRetentionAlreadyRunning is returned when a cleanup is triggered while another one is in flight.
var ErrRetentionAlreadyRunning = errors.New("log cleanup already running")

// RetentionJob prunes old activity log entries on a cron schedule.
type RetentionJob struct {
	log     *ActivityLog
	days    int
	cron    *cron.Cron
	running sync.Mutex
	timeout time.Duration
}

func NewRetentionJob(log *ActivityLog, days int) *RetentionJob {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return &RetentionJob{log: log, days: days, cron: cron.New(), timeout: 10 * time.Minute}
}

// RunOnce performs one cleanup pass and records a logs_cleaned_up entry.
func (j *RetentionJob) RunOnce(ctx context.Context, actor *Actor, opts CleanupOptions) (*CleanupResult, error) {
	if !j.running.TryLock() {
		return nil, ErrRetentionAlreadyRunning
	}
	defer j.running.Unlock()

	if opts.Days == 0 {
		opts.Days = j.days
	}
	started := time.Now()
	res, err := j.log.Cleanup(ctx, opts)
	if err != nil {
		return nil, err
	}
	j.log.Record(ctx, models.ActionLogsCleanedUp, actor, RequestContext{}, LogDetails{
		Duration: time.Since(started),
		Fields: map[string]interface{}{
			"days":             opts.Days,
			"includeProtected": opts.IncludeProtected,
			"deleted":          res.Deleted,
			"deletedProtected": res.DeletedProtected,
		},
	})
	return res, nil
}

// Start registers the cleanup under the given cron schedule. An empty schedule disables scheduling.
func (j *RetentionJob) Start(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		config.Log.Infow("log cleanup schedule disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(schedule, j.tick); err != nil {
		return err
	}
	j.cron.Start()
	config.Log.Infow("log cleanup scheduled", "schedule", schedule, "days", j.days)
	return nil
}

func (j *RetentionJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	res, err := j.RunOnce(ctx, nil, CleanupOptions{})
	if err != nil {
		config.Log.Warnw("scheduled log cleanup failed", "error", err)
		return
	}
	config.Log.Infow("scheduled log cleanup finished", "deleted", res.Deleted)
}

// Stop halts the scheduler and waits for a running cleanup to finish.
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}
