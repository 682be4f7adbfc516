package services

import (
	"context"

	"accreditation-api/config"
	"accreditation-api/storage"

	"gorm.io/gorm"
)

// App bundles the workflow services that share one database, ledger, activity log and notifier.
type App struct {
	DB         *gorm.DB
	Ledger     *Ledger
	Log        *ActivityLog
	Notifier   Notifier
	Blobs      storage.BlobStore
	Cache      DashboardCache
	Identity   *IdentityService
	Documents  *DocumentService
	Reviews    *ReviewService
	Audits     *AuditService
	Institutes *InstituteService
	Profiles   *ProfileService
	Reports    *ReportService
	Retention  *RetentionJob
}

// AppDeps are the pluggable collaborators. Nil members fall back to defaults.
type AppDeps struct {
	Notifier Notifier
	Blobs    storage.BlobStore
	Cache    DashboardCache
	Average  AverageFunc
}

func NewApp(db *gorm.DB, settings config.Settings, deps AppDeps) *App {
	if db == nil {
		db = config.DB
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	ledger := NewLedger(deps.Average)
	log := NewActivityLog(db)
	return &App{
		DB:         db,
		Ledger:     ledger,
		Log:        log,
		Notifier:   deps.Notifier,
		Blobs:      deps.Blobs,
		Cache:      deps.Cache,
		Identity:   NewIdentityService(db, IdentityConfigFrom(settings), log, deps.Notifier),
		Documents:  NewDocumentService(db, ledger, log, deps.Notifier, deps.Blobs),
		Reviews:    NewReviewService(db, ledger, log, deps.Notifier),
		Audits:     NewAuditService(db, ledger, log, deps.Notifier),
		Institutes: NewInstituteService(db, log),
		Profiles:   NewProfileService(db, log),
		Reports:    NewReportService(db, log, deps.Cache),
		Retention:  NewRetentionJob(log, settings.LogRetentionDays),
	}
}

// NewBlobStore picks the upload backend named by settings.StorageDriver.
func NewBlobStore(ctx context.Context, settings config.Settings) (storage.BlobStore, error) {
	if settings.StorageDriver == "gcs" {
		store, err := storage.NewGCSStore(ctx, settings.GCSBucket)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.NewLocalStore(settings.UploadPath, "/uploads")
	if err != nil {
		return nil, err
	}
	return store, nil
}

// InvalidateDashboard drops the cached admin dashboard after a write that changes its numbers.
func (a *App) InvalidateDashboard(ctx context.Context) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Invalidate(ctx); err != nil {
		config.Log.Warnw("dashboard cache invalidate failed", "error", err)
	}
}
