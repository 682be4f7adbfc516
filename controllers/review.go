package controllers

import (
	"net/http"

	"accreditation-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetReviewerDashboard(c *gin.Context) {
	dash, err := h.app.Reviews.Dashboard(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, dash)
}

// StartReview opens, or returns the already open, review of an assigned document.
func (h *Handler) StartReview(c *gin.Context) {
	review, err := h.app.Reviews.Start(c.Request.Context(), actor(c), c.Param("documentId"), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Review started successfully", gin.H{"review": review})
}

func (h *Handler) UpdateReview(c *gin.Context) {
	var req struct {
		services.ReviewPatch
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid review data")
		return
	}
	patch := req.ReviewPatch
	patch.Reason = req.Reason

	review, err := h.app.Reviews.Update(c.Request.Context(), actor(c), c.Param("id"), patch, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Review updated successfully", gin.H{"review": review})
}

func (h *Handler) SubmitReview(c *gin.Context) {
	review, err := h.app.Reviews.Submit(c.Request.Context(), actor(c), c.Param("id"), requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.app.InvalidateDashboard(c.Request.Context())
	respondMessage(c, "Review submitted successfully", gin.H{"review": review})
}

func (h *Handler) GetReview(c *gin.Context) {
	review, err := h.app.Reviews.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"review": review})
}

func (h *Handler) GetDocumentReviews(c *gin.Context) {
	reviews, err := h.app.Reviews.ListByDocument(c.Request.Context(), actor(c), c.Param("documentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}
