package handlers

import (
	"strconv"

	"coopfin/internal/config"
	"coopfin/internal/models"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	branches  *services.BranchService
	lifecycle *services.LifecycleService
	cfg       *config.Config
}

func NewUserHandler(branches *services.BranchService, lifecycle *services.LifecycleService, cfg *config.Config) *UserHandler {
	return &UserHandler{branches: branches, lifecycle: lifecycle, cfg: cfg}
}

type RegisterUserRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Email          string `json:"email"`
	FullName       string `json:"full_name" binding:"required"`
	Role           string `json:"role" binding:"required"`
	BranchName     string `json:"branch_name"`
	BranchLocation string `json:"branch_location"`
}

// RegisterUser creates a branch user. The branch row is created on
// demand (idempotent by normalized location) and the employee id is
// assigned from the shared per-role counter.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.branches.RegisterUser(services.RegisterUserData{
		Username:       req.Username,
		Password:       req.Password,
		Email:          req.Email,
		FullName:       req.FullName,
		Role:           req.Role,
		BranchName:     req.BranchName,
		BranchLocation: req.BranchLocation,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, gin.H{"success": true, "user": user})
}

// ListUsers returns all users with role and branch loaded.
func (h *UserHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := models.DB.Preload("Role").Preload("Branch").Order("id ASC").Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "users": users})
}

// DeactivateUser flips a user inactive. Their sessions stay in the
// store but stop working on the next guarded request.
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	user, err := h.lifecycle.Deactivate(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "user": user})
}
