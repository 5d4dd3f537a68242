package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"coopfin/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, path string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	return c, w
}

func userWith(role string, branchID *uint, perms ...string) *models.User {
	r := models.Role{Name: role}
	for _, p := range perms {
		r.Permissions = append(r.Permissions, models.Permission{Name: p})
	}
	return &models.User{ID: 1, Username: "tester", Role: r, BranchID: branchID}
}

func TestRequirePermission(t *testing.T) {
	t.Run("grants named permission", func(t *testing.T) {
		c, w := testContext("GET", "/members", "")
		c.Set("user", userWith(models.RoleMarketingClerk, nil, "members:view"))

		RequirePermission("members:view")(c)
		assert.False(t, c.IsAborted())
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wildcard grants everything", func(t *testing.T) {
		c, _ := testContext("GET", "/members", "")
		c.Set("user", userWith(models.RoleFinanceOfficer, nil, models.PermissionWildcard))

		RequirePermission("loans:approve")(c)
		assert.False(t, c.IsAborted())
	})

	t.Run("head administrator bypasses the check", func(t *testing.T) {
		c, _ := testContext("GET", "/members", "")
		c.Set("user", userWith(models.RoleHeadAdministrator, nil))

		RequirePermission("anything:at-all")(c)
		assert.False(t, c.IsAborted())
	})

	t.Run("missing permission", func(t *testing.T) {
		c, w := testContext("GET", "/members", "")
		c.Set("user", userWith(models.RoleMarketingClerk, nil, "members:view"))

		RequirePermission("loans:create")(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no identity", func(t *testing.T) {
		c, w := testContext("GET", "/members", "")

		RequirePermission("members:view")(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	t.Run("matching role", func(t *testing.T) {
		c, _ := testContext("GET", "/users", "")
		c.Set("user", userWith(models.RoleHeadAdministrator, nil))

		RequireRole(models.RoleHeadAdministrator)(c)
		assert.False(t, c.IsAborted())
	})

	t.Run("other role", func(t *testing.T) {
		c, w := testContext("GET", "/users", "")
		c.Set("user", userWith(models.RoleMarketingClerk, nil))

		RequireRole(models.RoleHeadAdministrator)(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRequireBranchAccess(t *testing.T) {
	branchID := uint(3)
	otherID := uint(5)

	t.Run("own branch via path", func(t *testing.T) {
		c, _ := testContext("GET", "/branches/3/members", "")
		c.Params = gin.Params{{Key: "branch_id", Value: "3"}}
		c.Set("user", userWith(models.RoleMarketingClerk, &branchID))

		RequireBranchAccess()(c)
		assert.False(t, c.IsAborted())
	})

	t.Run("foreign branch via path", func(t *testing.T) {
		c, w := testContext("GET", "/branches/5/members", "")
		c.Params = gin.Params{{Key: "branch_id", Value: "5"}}
		c.Set("user", userWith(models.RoleMarketingClerk, &branchID))

		RequireBranchAccess()(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("foreign branch via query", func(t *testing.T) {
		c, w := testContext("GET", "/reports?branch_id=5", "")
		c.Set("user", userWith(models.RoleMarketingClerk, &branchID))

		RequireBranchAccess()(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("foreign branch via body", func(t *testing.T) {
		c, w := testContext("POST", "/members", `{"branch_id":5,"name":"x"}`)
		c.Set("user", userWith(models.RoleMarketingClerk, &branchID))

		RequireBranchAccess()(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("body is restored for the handler", func(t *testing.T) {
		c, _ := testContext("POST", "/members", `{"branch_id":3,"name":"x"}`)
		c.Set("user", userWith(models.RoleMarketingClerk, &branchID))

		RequireBranchAccess()(c)
		assert.False(t, c.IsAborted())

		var payload struct {
			Name string `json:"name"`
		}
		assert.NoError(t, c.ShouldBindJSON(&payload))
		assert.Equal(t, "x", payload.Name)
	})

	t.Run("main branch crosses branches", func(t *testing.T) {
		c, _ := testContext("GET", "/branches/5/members", "")
		c.Params = gin.Params{{Key: "branch_id", Value: "5"}}
		user := userWith(models.RoleFinanceOfficer, &otherID)
		user.Branch = &models.Branch{ID: otherID, IsMainBranch: true}
		c.Set("user", user)

		RequireBranchAccess()(c)
		assert.False(t, c.IsAborted())
	})

	t.Run("head administrator crosses branches", func(t *testing.T) {
		c, _ := testContext("GET", "/branches/5/members", "")
		c.Params = gin.Params{{Key: "branch_id", Value: "5"}}
		c.Set("user", userWith(models.RoleHeadAdministrator, nil))

		RequireBranchAccess()(c)
		assert.False(t, c.IsAborted())
	})

	t.Run("no branch id anywhere", func(t *testing.T) {
		c, w := testContext("GET", "/reports", "")
		c.Set("user", userWith(models.RoleMarketingClerk, &branchID))

		RequireBranchAccess()(c)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
