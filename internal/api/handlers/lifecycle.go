package handlers

import (
	"errors"
	"strconv"

	"coopfin/internal/api/middleware"
	"coopfin/internal/config"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

type LifecycleHandler struct {
	lifecycle *services.LifecycleService
	cfg       *config.Config
}

func NewLifecycleHandler(lifecycle *services.LifecycleService, cfg *config.Config) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle, cfg: cfg}
}

// resetResponseMessage is returned for both eligible and ineligible
// accounts so the response body never confirms a username exists.
const resetResponseMessage = "If the account is eligible, a reset link has been sent to its email address."

type ForgotPasswordRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// ForgotPassword requests a reset link by username or email.
func (h *LifecycleHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.lifecycle.RequestPasswordReset(req.Identifier); err != nil {
		if errors.Is(err, services.ErrResetNotEligible) {
			c.JSON(200, gin.H{"success": false, "message": resetResponseMessage})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "message": resetResponseMessage})
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ResetPassword consumes a reset token.
func (h *LifecycleHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.lifecycle.ResetPassword(req.Token, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "message": "Password has been reset"})
}

type SendReactivationCodeRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SendReactivationCode re-verifies identity and emails a 6-digit code.
func (h *LifecycleHandler) SendReactivationCode(c *gin.Context) {
	var req SendReactivationCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	middleware.AddAuditDetail(c, "username", req.Username)

	if err := h.lifecycle.SendReactivationCode(req.Username, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "message": "Verification code sent"})
}

type VerifyReactivationCodeRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// VerifyReactivationCode consumes the code and opens a pending request.
func (h *LifecycleHandler) VerifyReactivationCode(c *gin.Context) {
	var req VerifyReactivationCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	middleware.AddAuditDetail(c, "username", req.Username)

	request, err := h.lifecycle.VerifyReactivationCode(req.Username, req.Password, req.Code, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.AddAuditDetail(c, "resource_id", strconv.FormatUint(uint64(request.ID), 10))

	c.JSON(201, gin.H{"success": true, "request": request})
}

// ListReactivationRequests returns pending requests for admin review.
func (h *LifecycleHandler) ListReactivationRequests(c *gin.Context) {
	requests, err := h.lifecycle.ListPendingRequests()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "requests": requests})
}

type ReviewRequestBody struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// ReviewReactivationRequest approves or rejects a pending request.
func (h *LifecycleHandler) ReviewReactivationRequest(c *gin.Context) {
	reviewer, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request ID"})
		return
	}

	var body ReviewRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	request, err := h.lifecycle.ReviewRequest(uint(id), reviewer.ID, body.Approve, body.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "request": request})
}
