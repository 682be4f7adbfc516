package routes

import (
	"net/http"

	"accreditation-api/config"
	"accreditation-api/controllers"
	"accreditation-api/middleware"
	"accreditation-api/models"
	"accreditation-api/monitor"
	"accreditation-api/services"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the global middleware chain and every route.
func NewRouter(app *services.App, settings config.Settings) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(settings.AllowedOrigins))
	router.Use(middleware.Correlation())
	router.Use(middleware.Metrics())
	router.Use(middleware.ActivityLogger(app.Log))

	monitor.RegisterHealth(router, app.DB)
	monitor.RegisterMetrics(router)
	monitor.RegisterMonitorPage(router, settings.MonitorToken)

	SetupRoutes(router, controllers.NewHandler(app, settings), app)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})
	return router
}

func SetupRoutes(router *gin.Engine, h *controllers.Handler, app *services.App) {
	api := router.Group("/api")
	auth := middleware.AuthMiddleware(app.Identity)

	admin := middleware.RequireRole(models.RoleAdmin)
	institute := middleware.RequireRole(models.RoleInstitute)
	reviewer := middleware.RequireRole(models.RoleReviewer)
	auditor := middleware.RequireRole(models.RoleAuditor)

	// Authentication
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
		authRoutes.POST("/refresh", h.RefreshToken)
		authRoutes.POST("/forgot-password", h.ForgotPassword)
		authRoutes.POST("/reset-password/:token", h.ResetPassword)

		authRoutes.POST("/logout", auth, h.Logout)
		authRoutes.GET("/profile", auth, h.GetProfile)
		authRoutes.PUT("/profile", auth, h.UpdateProfile)
		authRoutes.PUT("/change-password", auth, h.ChangePassword)
	}

	// Documents
	documents := api.Group("/documents", auth)
	{
		documents.POST("/upload", institute, h.UploadDocument)
		documents.GET("", h.GetDocuments)
		documents.GET("/assigned", middleware.RequireRole(models.RoleReviewer, models.RoleAuditor), h.GetAssignedDocuments)

		documents.GET("/:id", h.GetDocument)
		documents.PUT("/:id", middleware.RequireRole(models.RoleAdmin, models.RoleInstitute), h.UpdateDocument)
		documents.DELETE("/:id", middleware.RequireRole(models.RoleAdmin, models.RoleInstitute), h.DeleteDocument)
		documents.POST("/:id/reupload", institute, h.ReuploadDocument)
		documents.GET("/:id/download", h.DownloadDocument)
		documents.GET("/:id/history", h.GetDocumentHistory)

		documents.PUT("/:id/status", admin, h.UpdateDocumentStatus)
	}

	// Reviews
	reviews := api.Group("/reviews", auth)
	{
		readers := middleware.RequireRole(models.RoleAdmin, models.RoleReviewer, models.RoleAuditor, models.RoleInstitute)

		reviews.GET("/dashboard", reviewer, h.GetReviewerDashboard)
		reviews.POST("/start/:documentId", reviewer, h.StartReview)
		reviews.GET("/document/:documentId", readers, h.GetDocumentReviews)
		reviews.GET("/:id", readers, h.GetReview)
		reviews.PUT("/:id", reviewer, h.UpdateReview)
		reviews.POST("/:id/submit", reviewer, h.SubmitReview)
	}

	// Audits
	audits := api.Group("/audits", auth)
	{
		readers := middleware.RequireRole(models.RoleAdmin, models.RoleAuditor, models.RoleInstitute)

		audits.GET("/dashboard", auditor, h.GetAuditorDashboard)
		audits.POST("/start/:documentId", auditor, h.StartAudit)
		audits.GET("/document/:documentId", readers, h.GetDocumentAudits)
		audits.GET("/:id", readers, h.GetAudit)
		audits.PUT("/:id", auditor, h.UpdateAudit)
		audits.POST("/:id/submit", auditor, h.SubmitAudit)
		audits.POST("/:id/findings", auditor, h.AddAuditFinding)
		audits.PUT("/:id/compliance", auditor, h.UpdateComplianceCheck)
		audits.POST("/:id/validate-review", auditor, h.ValidateReviewAssessment)
	}

	// Institutes can read their own record
	api.GET("/institutes/:id", auth, middleware.RequireRole(models.RoleAdmin, models.RoleInstitute), h.GetInstitute)

	// Admin
	adminRoutes := api.Group("/admin", auth, admin)
	{
		adminRoutes.GET("/dashboard", h.GetDashboard)

		adminRoutes.GET("/institutes", h.GetInstitutes)
		adminRoutes.POST("/institutes", h.CreateInstitute)
		adminRoutes.GET("/institutes/:id", h.GetInstitute)
		adminRoutes.PUT("/institutes/:id", h.UpdateInstitute)
		adminRoutes.PUT("/institutes/:id/status", h.UpdateInstituteStatus)

		adminRoutes.POST("/assign-reviewer", h.AssignReviewer)
		adminRoutes.POST("/assign-auditor", h.AssignAuditor)
		adminRoutes.POST("/remove-assignment", h.RemoveAssignment)

		adminRoutes.GET("/reviewers", h.GetReviewers)
		adminRoutes.POST("/reviewers", h.CreateReviewer)
		adminRoutes.PUT("/reviewers/:id/availability", h.SetAvailability(models.KindReviewer))
		adminRoutes.GET("/auditors", h.GetAuditors)
		adminRoutes.POST("/auditors", h.CreateAuditor)
		adminRoutes.PUT("/auditors/:id/availability", h.SetAvailability(models.KindAuditor))

		adminRoutes.GET("/users", h.GetUsers)
		adminRoutes.POST("/users", h.CreateUser)
		adminRoutes.PUT("/users/:id/status", h.UpdateUserStatus)

		adminRoutes.GET("/reports", h.GetReports)
	}

	// Activity logs
	logs := api.Group("/logs", auth)
	{
		logs.GET("", admin, h.GetLogs)
		logs.GET("/summary", admin, h.GetActivitySummary)
		logs.POST("/export", admin, h.ExportLogs)
		logs.DELETE("/cleanup", admin, h.CleanupLogs)
		logs.GET("/user/:userId", h.GetUserLogs)
	}
}
