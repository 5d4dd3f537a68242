package handlers

import (
	"fmt"
	"strconv"
	"time"

	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func parseAuditFilter(c *gin.Context) (services.AuditLogFilter, error) {
	f := services.AuditLogFilter{
		Category: c.Query("category"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Status:   c.Query("status"),
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return f, fmt.Errorf("invalid user_id: %q", raw)
		}
		uid := uint(id)
		f.UserID = &uid
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("invalid from timestamp: %q", raw)
		}
		f.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("invalid to timestamp: %q", raw)
		}
		f.To = &t
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid page: %q", raw)
		}
		f.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("invalid page_size: %q", raw)
		}
		f.PageSize = size
	}

	return f, nil
}

// ListAuditLogs returns a filtered page of audit entries. A failing
// audit store yields an empty page, never an error.
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	f, err := parseAuditFilter(c)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": err.Error()})
		return
	}

	entries, total := h.audit.ListLogs(f)

	c.JSON(200, gin.H{
		"success": true,
		"logs":    entries,
		"total":   total,
	})
}

// ExportCSV streams matching audit entries as CSV.
func (h *AuditHandler) ExportCSV(c *gin.Context) {
	f, err := parseAuditFilter(c)
	if err != nil {
		c.JSON(400, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="audit-logs.csv"`)

	if err := h.audit.StreamCSV(c.Writer, f); err != nil {
		respondError(c, err)
	}
}
