package controllers

import (
	"net/http"
	"time"

	"accreditation-api/models"
	"accreditation-api/services"

	"github.com/gin-gonic/gin"
)

type InstituteRequest struct {
	Name                *string    `json:"name"`
	Code                *string    `json:"code"`
	Type                *string    `json:"type"`
	AccreditationLevel  *string    `json:"accreditation_level"`
	AccreditationStatus *string    `json:"accreditation_status"`
	ContactEmail        *string    `json:"contact_email"`
	ContactPhone        *string    `json:"contact_phone"`
	Website             *string    `json:"website"`
	Street              *string    `json:"street"`
	City                *string    `json:"city"`
	State               *string    `json:"state"`
	Country             *string    `json:"country"`
	ZipCode             *string    `json:"zip_code"`
	AdministratorID     *string    `json:"administrator_id"`
	EstablishedDate     *time.Time `json:"established_date"`
	ComplianceScore     *int       `json:"compliance_score"`
	NextAuditDue        *time.Time `json:"next_audit_due"`
	Notes               *string    `json:"notes"`
}

func (r InstituteRequest) toService() services.InstituteInput {
	return services.InstituteInput{
		Name:                r.Name,
		Code:                r.Code,
		Type:                r.Type,
		AccreditationLevel:  r.AccreditationLevel,
		AccreditationStatus: r.AccreditationStatus,
		ContactEmail:        r.ContactEmail,
		ContactPhone:        r.ContactPhone,
		Website:             r.Website,
		Street:              r.Street,
		City:                r.City,
		State:               r.State,
		Country:             r.Country,
		ZipCode:             r.ZipCode,
		AdministratorID:     r.AdministratorID,
		EstablishedDate:     r.EstablishedDate,
		ComplianceScore:     r.ComplianceScore,
		NextAuditDue:        r.NextAuditDue,
		Notes:               r.Notes,
	}
}

type AssignRequest struct {
	DocumentID string     `json:"documentId" binding:"required"`
	ReviewerID string     `json:"reviewerId"`
	AuditorID  string     `json:"auditorId"`
	DueDate    *time.Time `json:"dueDate"`
}

type ProfileRequest struct {
	UserID          string   `json:"user_id" binding:"required"`
	Specialization  []string `json:"specialization"`
	Experience      int      `json:"experience"`
	WorkloadMaximum int      `json:"workload_maximum"`
	LicenseNumber   string   `json:"license_number"`
}

func (r ProfileRequest) toService() services.ProfileInput {
	return services.ProfileInput{
		UserID:          r.UserID,
		Specialization:  r.Specialization,
		Experience:      r.Experience,
		WorkloadMaximum: r.WorkloadMaximum,
		LicenseNumber:   r.LicenseNumber,
	}
}

// GetDashboard returns the admin dashboard, served from the cache when warm.
func (h *Handler) GetDashboard(c *gin.Context) {
	dash, err := h.app.Reports.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, dash)
}

func (h *Handler) GetInstitutes(c *gin.Context) {
	page, err := h.app.Institutes.List(c.Request.Context(), services.InstituteFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   pageFrom(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

func (h *Handler) GetInstitute(c *gin.Context) {
	inst, err := h.app.Institutes.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"institute": inst})
}

func (h *Handler) CreateInstitute(c *gin.Context) {
	var req InstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid institute data")
		return
	}

	inst, err := h.app.Institutes.Create(c.Request.Context(), actor(c), req.toService(), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Institute created successfully",
		"data":    gin.H{"institute": inst},
	})
}

func (h *Handler) UpdateInstitute(c *gin.Context) {
	var req InstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid institute data")
		return
	}

	inst, err := h.app.Institutes.Update(c.Request.Context(), actor(c), c.Param("id"), req.toService(), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Institute updated successfully", gin.H{"institute": inst})
}

func (h *Handler) UpdateInstituteStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide a status")
		return
	}

	inst, err := h.app.Institutes.SetStatus(c.Request.Context(), actor(c), c.Param("id"), models.InstituteStatus(req.Status), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Institute status updated successfully", gin.H{"institute": inst})
}

func (h *Handler) AssignReviewer(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ReviewerID == "" {
		badRequest(c, "Please provide document and reviewer")
		return
	}

	doc, err := h.app.Documents.AssignReviewer(c.Request.Context(), actor(c), services.AssignmentInput{
		DocumentID: req.DocumentID,
		PersonID:   req.ReviewerID,
		DueDate:    req.DueDate,
	}, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Reviewer assigned successfully", gin.H{"document": doc})
}

func (h *Handler) AssignAuditor(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AuditorID == "" {
		badRequest(c, "Please provide document and auditor")
		return
	}

	doc, err := h.app.Documents.AssignAuditor(c.Request.Context(), actor(c), services.AssignmentInput{
		DocumentID: req.DocumentID,
		PersonID:   req.AuditorID,
		DueDate:    req.DueDate,
	}, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Auditor assigned successfully", gin.H{"document": doc})
}

// RemoveAssignment withdraws the reviewer or auditor of a document so it can be reassigned.
func (h *Handler) RemoveAssignment(c *gin.Context) {
	var req struct {
		DocumentID string `json:"documentId" binding:"required"`
		Kind       string `json:"kind" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide document and assignment kind")
		return
	}

	doc, err := h.app.Documents.RemoveAssignment(c.Request.Context(), actor(c), req.DocumentID, models.PersonKind(req.Kind), req.Reason, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Assignment removed successfully", gin.H{"document": doc})
}

// GetReviewers lists reviewers with free capacity, least loaded first.
func (h *Handler) GetReviewers(c *gin.Context) {
	reviewers, err := h.app.Reports.Reviewers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"reviewers": reviewers, "count": len(reviewers)})
}

func (h *Handler) GetAuditors(c *gin.Context) {
	auditors, err := h.app.Reports.Auditors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"auditors": auditors, "count": len(auditors)})
}

func (h *Handler) CreateReviewer(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide the reviewer's user")
		return
	}

	reviewer, err := h.app.Profiles.ProvisionReviewer(c.Request.Context(), actor(c), req.toService(), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"reviewer": reviewer}})
}

func (h *Handler) CreateAuditor(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide the auditor's user")
		return
	}

	auditor, err := h.app.Profiles.ProvisionAuditor(c.Request.Context(), actor(c), req.toService(), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"auditor": auditor}})
}

// SetAvailability handles both /reviewers/:id/availability and /auditors/:id/availability.
func (h *Handler) SetAvailability(kind models.PersonKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Availability string `json:"availability" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Please provide availability")
			return
		}

		if err := h.app.Profiles.SetAvailability(c.Request.Context(), actor(c), kind, c.Param("id"),
			models.Availability(req.Availability), requestContext(c)); err != nil {
			h.respondError(c, err)
			return
		}
		respondMessage(c, "Availability updated successfully", nil)
	}
}

func (h *Handler) GetUsers(c *gin.Context) {
	page, err := h.app.Identity.ListUsers(c.Request.Context(), services.UserFilter{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   pageFrom(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, page)
}

// CreateUser lets an admin open an account that is active immediately.
func (h *Handler) CreateUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide name, email and password")
		return
	}

	user, err := h.app.Identity.Register(c.Request.Context(), actor(c), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		Phone:    req.Phone,
	}, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"user": user}})
}

func (h *Handler) UpdateUserStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide a status")
		return
	}

	user, err := h.app.Identity.SetUserStatus(c.Request.Context(), actor(c), c.Param("id"), models.UserStatus(req.Status), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "User status updated successfully", gin.H{"user": user})
}

// GetReports builds the report named by ?type= over the optional startDate/endDate window.
func (h *Handler) GetReports(c *gin.Context) {
	from, ok := parseTime(c.Query("startDate"))
	if !ok {
		badRequest(c, "Invalid startDate")
		return
	}
	to, ok := parseTime(c.Query("endDate"))
	if !ok {
		badRequest(c, "Invalid endDate")
		return
	}

	report, err := h.app.Reports.Report(c.Request.Context(), actor(c), c.Query("type"),
		services.DateRange{From: from, To: to}, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, report)
}
