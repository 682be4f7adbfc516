package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accreditation-api/config"
	"accreditation-api/models"
	"accreditation-api/routes"
	"accreditation-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	settings := config.Load()

	logFile, logger := config.InitLogging(settings.IsProduction())
	if logFile != nil {
		defer logFile.Close()
	}
	defer logger.Sync()

	if settings.JWTSecret == "" {
		logger.Fatalw("JWT_SECRET is required")
	}

	config.InitDB(settings)
	if err := config.DB.AutoMigrate(models.All()...); err != nil {
		logger.Fatalw("Failed to migrate database", "error", err)
	}

	ctx := context.Background()
	blobs, err := services.NewBlobStore(ctx, settings)
	if err != nil {
		logger.Fatalw("Failed to initialise file storage", "driver", settings.StorageDriver, "error", err)
	}

	if !settings.Mail.Configured() {
		logger.Warnw("SMTP_HOST or SMTP_FROM not set, notification emails will fail")
	}
	deps := services.AppDeps{
		Notifier: services.NewMailNotifier(settings.ClientURL, config.NewMailer(settings.Mail)),
		Blobs:    blobs,
	}
	if settings.RedisURL != "" {
		cache, err := services.NewRedisDashboardCache(ctx, settings.RedisURL)
		if err != nil {
			logger.Warnw("Dashboard cache disabled", "error", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
		}
	}
	app := services.NewApp(config.DB, settings, deps)

	if err := app.Retention.Start(settings.LogCleanupSchedule); err != nil {
		logger.Fatalw("Invalid LOG_CLEANUP_SCHEDULE", "schedule", settings.LogCleanupSchedule, "error", err)
	}
	defer app.Retention.Stop()

	if settings.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(app, settings)

	srv := &http.Server{
		Addr:              ":" + settings.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("Server starting", "port", settings.ServerPort, "environment", settings.Environment,
			"storage", settings.StorageDriver, "dashboardCache", deps.Cache != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infow("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Server forced to shutdown", "error", err)
	}
}
