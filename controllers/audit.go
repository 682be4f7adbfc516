package controllers

import (
	"net/http"
	"time"

	"accreditation-api/models"
	"accreditation-api/services"

	"github.com/gin-gonic/gin"
)

type validationRequest struct {
	AccuracyScore      int                         `json:"accuracy_score"`
	CompletenessScore  int                         `json:"completeness_score"`
	ConsistencyScore   int                         `json:"consistency_score"`
	ValidationComments string                      `json:"validation_comments"`
	CriteriaValidation []models.CriteriaValidation `json:"criteria_validation"`
}

func (r *validationRequest) toService() *services.ReviewValidation {
	if r == nil {
		return nil
	}
	return &services.ReviewValidation{
		AccuracyScore:      r.AccuracyScore,
		CompletenessScore:  r.CompletenessScore,
		ConsistencyScore:   r.ConsistencyScore,
		ValidationComments: r.ValidationComments,
		CriteriaValidation: r.CriteriaValidation,
	}
}

type SubmitAuditRequest struct {
	FinalDecision    string             `json:"final_decision" binding:"required"`
	FinalScore       *int               `json:"final_score"`
	Justification    string             `json:"justification" binding:"required"`
	Conditions       []models.Condition `json:"conditions"`
	ValidityStart    *time.Time         `json:"validity_start"`
	ValidityEnd      *time.Time         `json:"validity_end"`
	DigitalSignature string             `json:"digital_signature"`
}

func (h *Handler) GetAuditorDashboard(c *gin.Context) {
	dash, err := h.app.Audits.Dashboard(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, dash)
}

// StartAudit opens, or returns the already open, audit of a reviewed document.
func (h *Handler) StartAudit(c *gin.Context) {
	audit, err := h.app.Audits.Start(c.Request.Context(), actor(c), c.Param("documentId"), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Audit started successfully", gin.H{"audit": audit})
}

func (h *Handler) UpdateAudit(c *gin.Context) {
	var req struct {
		ReviewValidation *validationRequest      `json:"review_validation"`
		Compliance       *models.ComplianceCheck `json:"compliance_check"`
		Findings         []models.Finding        `json:"findings"`
		Risk             *models.RiskAssessment  `json:"risk_assessment"`
		Quality          *models.AuditQuality    `json:"quality_metrics"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid audit data")
		return
	}

	audit, err := h.app.Audits.Update(c.Request.Context(), actor(c), c.Param("id"), services.AuditPatch{
		Validation: req.ReviewValidation.toService(),
		Compliance: req.Compliance,
		Findings:   req.Findings,
		Risk:       req.Risk,
		Quality:    req.Quality,
	}, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Audit updated successfully", gin.H{"audit": audit})
}

// SubmitAudit records the final decision and moves the document to its outcome status.
func (h *Handler) SubmitAudit(c *gin.Context) {
	var req SubmitAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Final decision and justification are required")
		return
	}

	audit, err := h.app.Audits.Submit(c.Request.Context(), actor(c), c.Param("id"), services.FinalDecision{
		Outcome:       models.Outcome(req.FinalDecision),
		FinalScore:    req.FinalScore,
		Justification: req.Justification,
		Conditions:    req.Conditions,
		ValidityStart: req.ValidityStart,
		ValidityEnd:   req.ValidityEnd,
	}, req.DigitalSignature, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Audit submitted successfully", gin.H{"audit": audit})
}

func (h *Handler) AddAuditFinding(c *gin.Context) {
	var finding models.Finding
	if err := c.ShouldBindJSON(&finding); err != nil {
		badRequest(c, "Invalid finding data")
		return
	}

	audit, err := h.app.Audits.AddFinding(c.Request.Context(), actor(c), c.Param("id"), finding, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Finding added successfully",
		"data":    gin.H{"audit": audit},
	})
}

func (h *Handler) UpdateComplianceCheck(c *gin.Context) {
	var req models.ComplianceCheck
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid compliance data")
		return
	}

	audit, err := h.app.Audits.UpdateCompliance(c.Request.Context(), actor(c), c.Param("id"),
		req.StandardsVerification, req.OverallCompliance, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Compliance check updated successfully", gin.H{"audit": audit})
}

func (h *Handler) ValidateReviewAssessment(c *gin.Context) {
	var req validationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid validation data")
		return
	}

	audit, err := h.app.Audits.ValidateReview(c.Request.Context(), actor(c), c.Param("id"), *req.toService(), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Review validation updated successfully", gin.H{"audit": audit})
}

func (h *Handler) GetAudit(c *gin.Context) {
	audit, err := h.app.Audits.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"audit": audit})
}

func (h *Handler) GetDocumentAudits(c *gin.Context) {
	audits, err := h.app.Audits.ListByDocument(c.Request.Context(), actor(c), c.Param("documentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"audits": audits, "count": len(audits)})
}
