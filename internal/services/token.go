package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"coopfin/internal/config"
	"coopfin/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "kind" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims are the self-contained token payload. Access tokens carry the
// full identity snapshot so verification needs no store lookup; refresh
// tokens carry only the subject and device fingerprint.
type Claims struct {
	Username    string   `json:"username,omitempty"`
	Role        string   `json:"role,omitempty"`
	BranchID    *uint    `json:"branch_id,omitempty"`
	MainBranch  bool     `json:"main_branch,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Kind        string   `json:"kind"`
	Device      string   `json:"device,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a numeric user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}
	return uint(id), nil
}

type TokenService struct {
	cfg *config.Config
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{cfg: cfg}
}

// IssueAccessToken signs a short-lived access token for the user.
func (s *TokenService) IssueAccessToken(user *models.User, permissions []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTokenTTL())

	claims := &Claims{
		Username:    user.Username,
		Role:        user.Role.Name,
		BranchID:    user.BranchID,
		MainBranch:  user.IsMainBranch(),
		Permissions: permissions,
		Kind:        TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs a long-lived refresh token. The token is only
// honored while a matching session row exists, which is its revocation point.
func (s *TokenService) IssueRefreshToken(userID uint, device string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.RefreshTokenTTL())

	claims := &Claims{
		Kind:   TokenKindRefresh,
		Device: device,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token of the expected kind.
func (s *TokenService) Verify(tokenString, expectedKind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWT.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.JWT.Issuer),
		jwt.WithAudience(s.cfg.JWT.Audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims.Kind != expectedKind {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// DecodeUnsafe decodes claims without verifying the signature.
// Diagnostic use only; never feed the result into an authorization decision.
func (s *TokenService) DecodeUnsafe(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
