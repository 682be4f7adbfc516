package controllers

import (
	"github.com/gin-gonic/gin"
)

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// ForgotPassword answers the same way whether or not the email belongs to an account.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide an email address")
		return
	}

	if err := h.app.Identity.ForgotPassword(c.Request.Context(), req.Email, requestContext(c)); err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "If the email exists, a password reset link has been sent", nil)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide a new password")
		return
	}

	if err := h.app.Identity.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, requestContext(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.setRefreshCookie(c, "", -1)
	respondMessage(c, "Password reset successful", nil)
}
