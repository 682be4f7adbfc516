package controllers

import (
	"net/http"

	"accreditation-api/models"
	"accreditation-api/services"

	"github.com/gin-gonic/gin"
)

const refreshCookie = "refreshToken"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account. Self-registered accounts wait for admin approval.
func (h *Handler) Register(c *gin.Context) {
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

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully. Please wait for admin approval.",
		"data":    gin.H{"user": user},
	})
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, token, maxAge, "/", "", h.settings.IsProduction(), true)
}

// Login handles user authentication. The refresh token travels in an httpOnly cookie.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide email and password")
		return
	}

	session, err := h.app.Identity.Login(c.Request.Context(), req.Email, req.Password, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, int(h.settings.RefreshTokenTTL.Seconds()))
	session.RefreshToken = ""
	respondMessage(c, "Login successful", session)
}

// refreshTokenFrom prefers the cookie and falls back to a JSON body field.
func refreshTokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		return token
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.ShouldBindJSON(&body)
	return body.RefreshToken
}

func (h *Handler) RefreshToken(c *gin.Context) {
	session, err := h.app.Identity.Refresh(c.Request.Context(), refreshTokenFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"accessToken": session.AccessToken, "expiresIn": session.ExpiresIn})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.app.Identity.Logout(c.Request.Context(), actor(c), refreshTokenFrom(c), requestContext(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.setRefreshCookie(c, "", -1)
	respondMessage(c, "Logout successful", nil)
}

// GetProfile returns current user profile
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.app.Identity.Profile(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid profile data")
		return
	}

	user, err := h.app.Identity.UpdateProfile(c.Request.Context(), actor(c), req.Name, req.Phone, requestContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondMessage(c, "Profile updated successfully", gin.H{"user": user})
}

// ChangePassword handles password change and ends every session of the user.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide current and new password")
		return
	}

	if err := h.app.Identity.ChangePassword(c.Request.Context(), actor(c), req.CurrentPassword, req.NewPassword, requestContext(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.setRefreshCookie(c, "", -1)
	respondMessage(c, "Password changed successfully. Please login again.", nil)
}
