package handlers

import (
	"errors"

	"coopfin/internal/api/middleware"
	"coopfin/internal/config"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth      *services.AuthService
	lifecycle *services.LifecycleService
	cfg       *config.Config
}

func NewAuthHandler(auth *services.AuthService, lifecycle *services.LifecycleService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{auth: auth, lifecycle: lifecycle, cfg: cfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Malformed payload, no credentials to attribute: not a login attempt.
		middleware.SetAuditOutcome(c, middleware.AuditSuppressed)
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	middleware.AddAuditDetail(c, "username", req.Username)

	result, err := h.auth.Login(req.Username, req.Password, req.Device, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrAccountDeactivated) {
			// Password was correct: identity is proven, so the UI may
			// offer the reactivation flow. A wrong password never
			// reaches this branch regardless of active state.
			c.JSON(401, gin.H{
				"success":           false,
				"error":             "Account is deactivated",
				"code":              "account_deactivated",
				"identity_verified": true,
			})
			return
		}
		respondError(c, err)
		return
	}

	middleware.SetAuditActor(c, result.User.ID)

	c.JSON(200, gin.H{
		"success":            true,
		"access_token":       result.AccessToken,
		"access_expires_at":  result.AccessExpiresAt,
		"refresh_token":      result.RefreshToken,
		"refresh_expires_at": result.RefreshExpiresAt,
		"user":               result.User,
		"permissions":        result.Permissions,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh exchanges a live refresh token for a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	accessToken, expiresAt, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{
		"success":           true,
		"access_token":      accessToken,
		"access_expires_at": expiresAt,
	})
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Logout deletes the session row for the presented refresh token.
// Idempotent: logging out twice is not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.auth.Logout(user.ID, req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "message": "Logged out successfully"})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	c.JSON(200, gin.H{
		"success":     true,
		"user":        user,
		"permissions": user.PermissionNames(),
	})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword is the authenticated password change, subject to the
// 30-day cooldown.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.lifecycle.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "message": "Password updated successfully"})
}

type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// UpdateProfile edits profile fields, subject to the 30-day cooldown
// and a uniqueness check.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	updated, err := h.lifecycle.UpdateProfile(user.ID, req.Username, req.Email, req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "user": updated})
}
