package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"coopfin/internal/models"
	"coopfin/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the request identity from a bearer access
// token. The user record is re-fetched from the store rather than
// trusted from token claims, so a deactivation takes effect on the very
// next request even while old access tokens are still live.
func AuthMiddleware(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"success": false, "error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(401, gin.H{"success": false, "error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := tokens.Verify(parts[1], services.TokenKindAccess)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				c.JSON(401, gin.H{"success": false, "error": "Token has expired"})
			} else {
				c.JSON(401, gin.H{"success": false, "error": "Invalid token"})
			}
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			c.JSON(401, gin.H{"success": false, "error": "Invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := models.DB.Preload("Role.Permissions").Preload("Branch").First(&user, userID).Error; err != nil {
			c.JSON(401, gin.H{"success": false, "error": "Invalid token"})
			c.Abort()
			return
		}

		if !user.IsActive {
			c.JSON(401, gin.H{"success": false, "error": "Account is deactivated"})
			c.Abort()
			return
		}

		c.Set("user", &user)
		c.Set("user_id", user.ID)
		c.Set("permissions", user.PermissionNames())

		c.Next()
	}
}

// CurrentUser returns the identity attached by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(401, gin.H{"success": false, "error": "Unauthorized"})
			c.Abort()
			return
		}

		for _, role := range roles {
			if user.Role.Name == role {
				c.Next()
				return
			}
		}

		c.JSON(403, gin.H{
			"success":  false,
			"error":    "Forbidden: insufficient role",
			"required": roles,
			"actual":   user.Role.Name,
		})
		c.Abort()
	}
}

// RequirePermission passes when the user's role grants the named
// permission or the wildcard. The head administrator bypasses explicit
// permission checks entirely.
func RequirePermission(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(401, gin.H{"success": false, "error": "Unauthorized"})
			c.Abort()
			return
		}

		if user.Role.Name == models.RoleHeadAdministrator {
			c.Next()
			return
		}

		for _, p := range user.PermissionNames() {
			if p == name || p == models.PermissionWildcard {
				c.Next()
				return
			}
		}

		c.JSON(403, gin.H{
			"success":    false,
			"error":      "Forbidden: missing permission",
			"permission": name,
		})
		c.Abort()
	}
}

// RequireBranchAccess restricts a request to the caller's own branch.
// Head administrators and main-branch users pass for any branch.
func RequireBranchAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(401, gin.H{"success": false, "error": "Unauthorized"})
			c.Abort()
			return
		}

		if user.Role.Name == models.RoleHeadAdministrator || user.IsMainBranch() {
			c.Next()
			return
		}

		requested, ok := requestBranchID(c)
		if !ok {
			c.JSON(400, gin.H{"success": false, "error": "Branch id is required"})
			c.Abort()
			return
		}

		if user.BranchID == nil || *user.BranchID != requested {
			var own interface{}
			if user.BranchID != nil {
				own = *user.BranchID
			}
			c.JSON(403, gin.H{
				"success":          false,
				"error":            "Forbidden: branch access denied",
				"requested_branch": requested,
				"user_branch":      own,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// requestBranchID pulls the branch id from the path, query, or body,
// in that order. The body is restored so handlers can still bind it.
func requestBranchID(c *gin.Context) (uint, bool) {
	if raw := c.Param("branch_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			return uint(id), true
		}
	}

	if raw := c.Query("branch_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			return uint(id), true
		}
	}

	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err == nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			var payload struct {
				BranchID *uint `json:"branch_id"`
			}
			if err := json.Unmarshal(body, &payload); err == nil && payload.BranchID != nil {
				return *payload.BranchID, true
			}
		}
	}

	return 0, false
}
