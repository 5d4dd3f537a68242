package services

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"coopfin/internal/config"
	"coopfin/internal/models"
	"coopfin/internal/ratelimit"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// setupTestDB initializes a temporary sqlite database with seeded
// roles, permissions, and the main branch.
func setupTestDB(t *testing.T) *config.Config {
	tmpDir := os.TempDir()
	testDBPath := fmt.Sprintf("%s/coopfin_test_%d.db", tmpDir, time.Now().UnixNano())

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: testDBPath,
			},
			Pool: config.PoolConfig{
				MaxOpenConns: 1,
				MaxIdleConns: 1,
			},
		},
		JWT: config.JWTConfig{
			Secret:           "test-secret-key-for-testing-only",
			Issuer:           "coopfin-test",
			Audience:         "coopfin-test-portal",
			AccessExpiresIn:  "1h",
			RefreshExpiresIn: "24h",
		},
		Security: config.SecurityConfig{
			BcryptCost:   bcrypt.MinCost,
			CooldownDays: 30,
			Password: config.PasswordConfig{
				MinLength:     8,
				RequireUpper:  true,
				RequireDigit:  true,
				RequireSymbol: true,
			},
		},
	}

	err := models.InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, models.SeedDefaults())

	t.Cleanup(func() {
		if models.DB != nil {
			if sqlDB, err := models.DB.DB(); err == nil {
				sqlDB.Close()
			}
		}
		os.Remove(testDBPath)
		models.DB = nil
	})

	return cfg
}

func newTestAuthService(cfg *config.Config) *AuthService {
	return NewAuthService(cfg, NewTokenService(cfg), ratelimit.Unlimited{})
}

// createTestUser creates an active user with the given role, attached
// to the given branch (nil for head-office roles).
func createTestUser(t *testing.T, auth *AuthService, username, password, roleName string, branchID *uint) *models.User {
	var role models.Role
	require.NoError(t, models.DB.Where("name = ?", roleName).First(&role).Error)

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.org",
		PasswordHash: hash,
		FullName:     "Test " + username,
		RoleID:       role.ID,
		BranchID:     branchID,
		IsActive:     true,
	}
	require.NoError(t, models.DB.Create(user).Error)

	require.NoError(t, models.DB.Preload("Role.Permissions").Preload("Branch").First(user, user.ID).Error)
	return user
}

func createTestBranch(t *testing.T, name, location string, main bool) *models.Branch {
	branch := &models.Branch{Name: name, Location: NormalizeLocation(location), IsMainBranch: main}
	require.NoError(t, models.DB.Create(branch).Error)
	return branch
}

func deactivateUser(t *testing.T, userID uint) {
	require.NoError(t, models.DB.Model(&models.User{}).Where("id = ?", userID).Update("is_active", false).Error)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// recordingMailer captures outbound mail for assertions.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
