package services

import (
	"testing"
	"time"

	"coopfin/internal/config"
	"coopfin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret-key-for-testing-only",
			Issuer:           "coopfin-test",
			Audience:         "coopfin-test-portal",
			AccessExpiresIn:  "1h",
			RefreshExpiresIn: "24h",
		},
	}
}

func tokenTestUser() *models.User {
	branchID := uint(3)
	return &models.User{
		ID:       42,
		Username: "clerk1",
		Role:     models.Role{Name: models.RoleMarketingClerk},
		BranchID: &branchID,
		Branch:   &models.Branch{ID: 3, Name: "East", IsMainBranch: false},
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(tokenTestConfig())
	user := tokenTestUser()
	perms := []string{"members:view", "members:create"}

	token, expiresAt, err := svc.IssueAccessToken(user, perms)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Verify(token, TokenKindAccess)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "clerk1", claims.Username)
	assert.Equal(t, models.RoleMarketingClerk, claims.Role)
	require.NotNil(t, claims.BranchID)
	assert.Equal(t, uint(3), *claims.BranchID)
	assert.False(t, claims.MainBranch)
	assert.Equal(t, perms, claims.Permissions)
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	svc := NewTokenService(tokenTestConfig())

	refresh, _, err := svc.IssueRefreshToken(42, "cli")
	require.NoError(t, err)

	// A refresh token presented as access is invalid, not expired
	_, err = svc.Verify(refresh, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Verify(refresh, TokenKindRefresh)
	assert.NoError(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.JWT.AccessExpiresIn = "-1m"
	svc := NewTokenService(cfg)

	token, _, err := svc.IssueAccessToken(tokenTestUser(), nil)
	require.NoError(t, err)

	_, err = svc.Verify(token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	svc := NewTokenService(tokenTestConfig())
	token, _, err := svc.IssueAccessToken(tokenTestUser(), nil)
	require.NoError(t, err)

	other := tokenTestConfig()
	other.JWT.Secret = "a-completely-different-secret"
	_, err = NewTokenService(other).Verify(token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	svc := NewTokenService(tokenTestConfig())
	token, _, err := svc.IssueAccessToken(tokenTestUser(), nil)
	require.NoError(t, err)

	other := tokenTestConfig()
	other.JWT.Issuer = "someone-else"
	_, err = NewTokenService(other).Verify(token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeUnsafeIgnoresSignature(t *testing.T) {
	svc := NewTokenService(tokenTestConfig())
	token, _, err := svc.IssueAccessToken(tokenTestUser(), nil)
	require.NoError(t, err)

	other := tokenTestConfig()
	other.JWT.Secret = "wrong"
	claims, err := NewTokenService(other).DecodeUnsafe(token)
	require.NoError(t, err)
	assert.Equal(t, "clerk1", claims.Username)
}
