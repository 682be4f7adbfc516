// Log-cleanup prunes old activity log entries once and exits.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"accreditation-api/config"
	"accreditation-api/services"

	"github.com/joho/godotenv"
)

func main() {
	days := flag.Int("days", 0, "delete entries older than this many days (default LOG_RETENTION_DAYS)")
	includeProtected := flag.Bool("include-protected", false, "also delete high and critical entries older than two years")
	timeout := flag.Duration("timeout", 10*time.Minute, "abort the cleanup after this long")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	settings := config.Load()
	_, logger := config.InitLogging(settings.IsProduction())
	defer logger.Sync()

	config.InitDB(settings)
	job := services.NewRetentionJob(services.NewActivityLog(config.DB), settings.LogRetentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := job.RunOnce(ctx, nil, services.CleanupOptions{Days: *days, IncludeProtected: *includeProtected})
	if err != nil {
		logger.Fatalw("Log cleanup failed", "error", err)
	}
	logger.Infow("Log cleanup finished",
		"deleted", res.Deleted,
		"deletedProtected", res.DeletedProtected,
		"cutoff", res.Cutoff,
	)
}
