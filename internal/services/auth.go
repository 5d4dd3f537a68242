package services

import (
	"errors"
	"time"

	"coopfin/internal/config"
	"coopfin/internal/logs"
	"coopfin/internal/models"
	"coopfin/internal/ratelimit"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrAccountInactive     = errors.New("account is no longer active")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshRevoked      = errors.New("refresh token expired or revoked")
	ErrTooManyAttempts     = errors.New("too many login attempts, try again later")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("username or email already in use")
)

type AuthService struct {
	cfg     *config.Config
	tokens  *TokenService
	limiter ratelimit.Limiter
}

func NewAuthService(cfg *config.Config, tokens *TokenService, limiter ratelimit.Limiter) *AuthService {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &AuthService{cfg: cfg, tokens: tokens, limiter: limiter}
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Security.BcryptCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *AuthService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// FindByIdentifier looks up a user by exact username or email match,
// with role, permissions, and branch loaded.
func (s *AuthService) FindByIdentifier(identifier string) (*models.User, error) {
	var user models.User
	err := models.DB.
		Preload("Role.Permissions").
		Preload("Branch").
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// LoginResult carries the identity summary and both tokens.
type LoginResult struct {
	User             *models.User
	Permissions      []string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Login authenticates a user and opens a session. The password is
// checked before the active flag: a correct password against a
// deactivated account returns ErrAccountDeactivated (the caller may
// offer reactivation, since identity is proven), while a wrong password
// always returns ErrInvalidCredentials regardless of active state.
func (s *AuthService) Login(identifier, password, device, ip string) (*LoginResult, error) {
	if !s.limiter.Allow("login:" + identifier + ":" + ip) {
		return nil, ErrTooManyAttempts
	}

	user, err := s.FindByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	s.limiter.Reset("login:" + identifier + ":" + ip)

	now := time.Now()
	if err := models.DB.Model(user).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	user.LastLogin = &now

	permissions := user.PermissionNames()

	accessToken, accessExp, err := s.tokens.IssueAccessToken(user, permissions)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefreshToken(user.ID, device)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: refreshToken,
		Device:       device,
		IPAddress:    ip,
		ExpiresAt:    refreshExp,
	}
	if err := models.DB.Create(session).Error; err != nil {
		return nil, err
	}

	return &LoginResult{
		User:             user,
		Permissions:      permissions,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh mints a new access token for a live session. The refresh
// token itself is not rotated. It is honored only while a matching
// unexpired session row exists and the owning user is still active.
func (s *AuthService) Refresh(refreshToken string) (string, time.Time, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return "", time.Time{}, ErrRefreshRevoked
		}
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	var session models.Session
	err = models.DB.
		Where("refresh_token = ? AND expires_at > ?", refreshToken, time.Now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, ErrRefreshRevoked
		}
		return "", time.Time{}, err
	}

	userID, err := claims.UserID()
	if err != nil || userID != session.UserID {
		return "", time.Time{}, ErrInvalidRefreshToken
	}

	var user models.User
	if err := models.DB.
		Preload("Role.Permissions").
		Preload("Branch").
		First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, ErrRefreshRevoked
		}
		return "", time.Time{}, err
	}

	if !user.IsActive {
		return "", time.Time{}, ErrAccountInactive
	}

	return s.tokens.IssueAccessToken(&user, user.PermissionNames())
}

// Logout deletes the matching session row. Idempotent: a token that was
// never persisted, or was already revoked, is not an error.
func (s *AuthService) Logout(userID uint, refreshToken string) error {
	return models.DB.
		Where("user_id = ? AND refresh_token = ?", userID, refreshToken).
		Delete(&models.Session{}).Error
}

// DeleteExpiredSessions removes expired session rows.
func (s *AuthService) DeleteExpiredSessions() error {
	return models.DB.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}

// CreateDefaultAdmin creates the head administrator account when the
// user table is empty.
func (s *AuthService) CreateDefaultAdmin() error {
	var count int64
	models.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		return nil
	}

	var role models.Role
	if err := models.DB.Where("name = ?", models.RoleHeadAdministrator).First(&role).Error; err != nil {
		return err
	}

	hash, err := s.HashPassword(s.cfg.DefaultUser.Password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:     s.cfg.DefaultUser.Username,
		Email:        s.cfg.DefaultUser.Email,
		PasswordHash: hash,
		FullName:     "Head Administrator",
		RoleID:       role.ID,
		IsActive:     true,
	}
	if err := models.DB.Create(admin).Error; err != nil {
		return err
	}
	logs.Logger.WithField("username", admin.Username).Info("created default administrator")
	return nil
}
