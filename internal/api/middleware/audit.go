package middleware

import (
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

// AuditOutcome is set by the inner handler to tell the recorder what to
// do with the request. Explicit value instead of a mutable skip flag.
type AuditOutcome int

const (
	// AuditCompleted records the request normally (default).
	AuditCompleted AuditOutcome = iota
	// AuditSuppressed skips the log entry, used when an inner call
	// already recorded the true action.
	AuditSuppressed
)

const (
	ctxAuditOutcome = "audit_outcome"
	ctxAuditAction  = "audit_action"
	ctxAuditDetails = "audit_details"
	ctxAuditActor   = "audit_actor"
)

// SetAuditOutcome declares how the wrapped request should be logged.
func SetAuditOutcome(c *gin.Context, outcome AuditOutcome) {
	c.Set(ctxAuditOutcome, outcome)
}

// OverrideAuditAction replaces the handler-declared action name.
func OverrideAuditAction(c *gin.Context, action string) {
	c.Set(ctxAuditAction, action)
}

// AddAuditDetail attaches a key to the entry's detail blob.
func AddAuditDetail(c *gin.Context, key string, value interface{}) {
	details := auditDetails(c)
	details[key] = value
	c.Set(ctxAuditDetails, details)
}

// SetAuditActor names the acting user when no authenticated identity is
// on the context, e.g. a successful login.
func SetAuditActor(c *gin.Context, userID uint) {
	c.Set(ctxAuditActor, userID)
}

func auditDetails(c *gin.Context) map[string]interface{} {
	if v, exists := c.Get(ctxAuditDetails); exists {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return map[string]interface{}{}
}

// Audit records the wrapped handler's outcome. The event is enqueued
// after the response is written and never delays or fails it; ordering
// between the response and the audit row is best-effort.
func Audit(recorder *services.Recorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if v, exists := c.Get(ctxAuditOutcome); exists {
			if outcome, ok := v.(AuditOutcome); ok && outcome == AuditSuppressed {
				return
			}
		}

		ev := services.AuditEvent{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			Status:    services.AuditStatusFor(c.Writer.Status()),
			Details:   auditDetails(c),
		}

		if v := c.GetString(ctxAuditAction); v != "" {
			ev.Action = v
		}

		if user, ok := CurrentUser(c); ok {
			id := user.ID
			ev.UserID = &id
			ev.BranchID = user.BranchID
		} else if v, exists := c.Get(ctxAuditActor); exists {
			if id, ok := v.(uint); ok {
				ev.UserID = &id
			}
		}

		if id := c.Param("id"); id != "" && ev.ResourceID == "" {
			ev.ResourceID = id
		}
		if v, ok := ev.Details["resource_id"]; ok && ev.ResourceID == "" {
			if s, ok := v.(string); ok {
				ev.ResourceID = s
			}
		}

		recorder.Enqueue(ev)
	}
}
