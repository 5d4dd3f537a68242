package handlers

import (
	"strconv"

	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

type BranchHandler struct {
	branches *services.BranchService
}

func NewBranchHandler(branches *services.BranchService) *BranchHandler {
	return &BranchHandler{branches: branches}
}

// ListBranches returns all branches.
func (h *BranchHandler) ListBranches(c *gin.Context) {
	branches, err := h.branches.ListBranches()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "branches": branches})
}

type CreateBranchRequest struct {
	Name     string `json:"name"`
	Location string `json:"location" binding:"required"`
}

// CreateBranch creates a branch, idempotent by normalized location:
// posting the same location twice returns the existing row.
func (h *BranchHandler) CreateBranch(c *gin.Context) {
	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid request", "details": err.Error()})
		return
	}

	branch, err := h.branches.GetOrCreateBranch(req.Name, req.Location)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(201, gin.H{"success": true, "branch": branch})
}

// ListBranchMembers returns the users of one branch. Branch scope is
// enforced by middleware before this runs.
func (h *BranchHandler) ListBranchMembers(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("branch_id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": "Invalid branch ID"})
		return
	}

	members, err := h.branches.ListBranchMembers(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "members": members})
}
