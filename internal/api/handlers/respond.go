package handlers

import (
	"errors"

	"coopfin/internal/logs"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto the response envelope. Policy
// violations come back as 4xx with a message; store-level failures are
// logged with full detail and surfaced as a generic 500.
func respondError(c *gin.Context, err error) {
	var cooldown *services.CooldownError
	if errors.As(err, &cooldown) {
		c.JSON(400, gin.H{
			"success":        false,
			"error":          cooldown.Error(),
			"code":           "cooldown_active",
			"days_remaining": cooldown.DaysRemaining,
		})
		return
	}

	var weak *services.WeakPasswordError
	if errors.As(err, &weak) {
		c.JSON(400, gin.H{
			"success": false,
			"error":   weak.Error(),
			"code":    "weak_password",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidRefreshToken),
		errors.Is(err, services.ErrRefreshRevoked),
		errors.Is(err, services.ErrAccountInactive):
		c.JSON(401, gin.H{"success": false, "error": err.Error()})

	case errors.Is(err, services.ErrTooManyAttempts):
		c.JSON(429, gin.H{"success": false, "error": err.Error()})

	case errors.Is(err, services.ErrAlreadyActive),
		errors.Is(err, services.ErrDuplicatePendingRequest),
		errors.Is(err, services.ErrEmailNotConfigured),
		errors.Is(err, services.ErrInvalidOrExpiredCode),
		errors.Is(err, services.ErrInvalidOrExpiredToken),
		errors.Is(err, services.ErrPasswordUnchanged),
		errors.Is(err, services.ErrReasonTooShort),
		errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrUnknownRole),
		errors.Is(err, services.ErrBranchRequired):
		c.JSON(400, gin.H{"success": false, "error": err.Error()})

	// Not found and not permitted share a response so resource
	// existence is not leaked.
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrBranchNotFound):
		c.JSON(404, gin.H{"success": false, "error": "Not found"})

	default:
		logs.Logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.JSON(500, gin.H{"success": false, "error": "Internal server error"})
	}
}
