package services

import (
	"testing"
	"time"

	"coopfin/internal/models"
	"coopfin/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	cfg := setupTestDB(t)
	auth := newTestAuthService(cfg)
	tokens := NewTokenService(cfg)

	branch := createTestBranch(t, "East", "east side", false)
	user := createTestUser(t, auth, "clerk1", "Sup3r$ecret", models.RoleMarketingClerk, &branch.ID)

	t.Run("valid credentials by username", func(t *testing.T) {
		result, err := auth.Login("clerk1", "Sup3r$ecret", "cli", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Contains(t, result.Permissions, "members:view")
		require.NotNil(t, result.User.LastLogin)

		claims, err := tokens.Verify(result.AccessToken, TokenKindAccess)
		require.NoError(t, err)
		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
		assert.Equal(t, models.RoleMarketingClerk, claims.Role)
		require.NotNil(t, claims.BranchID)
		assert.Equal(t, branch.ID, *claims.BranchID)

		// A session row was persisted for the refresh token
		var count int64
		models.DB.Model(&models.Session{}).Where("user_id = ? AND refresh_token = ?", user.ID, result.RefreshToken).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("valid credentials by email", func(t *testing.T) {
		result, err := auth.Login("clerk1@example.org", "Sup3r$ecret", "cli", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, result.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.Login("clerk1", "wrong", "cli", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := auth.Login("nobody", "whatever", "cli", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLoginDeactivatedAccount(t *testing.T) {
	cfg := setupTestDB(t)
	auth := newTestAuthService(cfg)

	branch := createTestBranch(t, "East", "east side", false)
	user := createTestUser(t, auth, "clerk1", "Sup3r$ecret", models.RoleMarketingClerk, &branch.ID)
	deactivateUser(t, user.ID)

	t.Run("correct password is distinguishable", func(t *testing.T) {
		// Password verified before the active flag: identity is proven
		_, err := auth.Login("clerk1", "Sup3r$ecret", "cli", "10.0.0.1")
		assert.ErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("wrong password stays generic", func(t *testing.T) {
		_, err := auth.Login("clerk1", "wrong", "cli", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLoginRateLimited(t *testing.T) {
	cfg := setupTestDB(t)
	limiter := ratelimit.NewKeyedLimiter(3, time.Hour)
	auth := NewAuthService(cfg, NewTokenService(cfg), limiter)

	branch := createTestBranch(t, "East", "east side", false)
	createTestUser(t, auth, "clerk1", "Sup3r$ecret", models.RoleMarketingClerk, &branch.ID)

	for i := 0; i < 3; i++ {
		_, err := auth.Login("clerk1", "wrong", "cli", "10.0.0.9")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := auth.Login("clerk1", "Sup3r$ecret", "cli", "10.0.0.9")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// A different source address is not throttled
	_, err = auth.Login("clerk1", "Sup3r$ecret", "cli", "10.0.0.10")
	assert.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	cfg := setupTestDB(t)
	auth := newTestAuthService(cfg)
	tokens := NewTokenService(cfg)

	branch := createTestBranch(t, "East", "east side", false)
	user := createTestUser(t, auth, "clerk1", "Sup3r$ecret", models.RoleMarketingClerk, &branch.ID)

	result, err := auth.Login("clerk1", "Sup3r$ecret", "cli", "10.0.0.1")
	require.NoError(t, err)

	t.Run("live session yields new access token", func(t *testing.T) {
		access, _, err := auth.Refresh(result.RefreshToken)
		require.NoError(t, err)

		claims, err := tokens.Verify(access, TokenKindAccess)
		require.NoError(t, err)
		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
	})

	t.Run("access token is not accepted", func(t *testing.T) {
		_, _, err := auth.Refresh(result.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := auth.Refresh("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("inactive user is rejected", func(t *testing.T) {
		deactivateUser(t, user.ID)
		_, _, err := auth.Refresh(result.RefreshToken)
		assert.ErrorIs(t, err, ErrAccountInactive)
		models.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", true)
	})

	t.Run("logout revokes permanently", func(t *testing.T) {
		require.NoError(t, auth.Logout(user.ID, result.RefreshToken))

		_, _, err := auth.Refresh(result.RefreshToken)
		assert.ErrorIs(t, err, ErrRefreshRevoked)

		// Logging out again is not an error
		assert.NoError(t, auth.Logout(user.ID, result.RefreshToken))
	})
}

func TestDeleteExpiredSessions(t *testing.T) {
	cfg := setupTestDB(t)
	auth := newTestAuthService(cfg)

	branch := createTestBranch(t, "East", "east side", false)
	user := createTestUser(t, auth, "clerk1", "Sup3r$ecret", models.RoleMarketingClerk, &branch.ID)

	expired := &models.Session{UserID: user.ID, RefreshToken: "stale", ExpiresAt: time.Now().Add(-time.Hour)}
	live := &models.Session{UserID: user.ID, RefreshToken: "live", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, models.DB.Create(expired).Error)
	require.NoError(t, models.DB.Create(live).Error)

	require.NoError(t, auth.DeleteExpiredSessions())

	var count int64
	models.DB.Model(&models.Session{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
