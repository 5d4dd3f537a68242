package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"coopfin/internal/config"
	"coopfin/internal/logs"
	"coopfin/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrAlreadyActive           = errors.New("account is already active")
	ErrDuplicatePendingRequest = errors.New("a pending reactivation request already exists")
	ErrEmailNotConfigured      = errors.New("no email address is configured for this account")
	ErrInvalidOrExpiredCode    = errors.New("invalid or expired verification code")
	ErrInvalidOrExpiredToken   = errors.New("invalid or expired reset token")
	ErrRequestNotFound         = errors.New("reactivation request not found")
	ErrPasswordUnchanged       = errors.New("new password must differ from the current one")
	ErrReasonTooShort          = errors.New("reason must be at least 10 characters")
	ErrResetNotEligible        = errors.New("account is not eligible for self-service reset")
)

const (
	reactivationCodeTTL = 15 * time.Minute
	resetTokenTTL       = time.Hour
	minReasonLength     = 10
)

// CooldownError reports how long a user must still wait before
// repeating a sensitive self-service action.
type CooldownError struct {
	DaysRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("action is on cooldown for another %d day(s)", e.DaysRemaining)
}

// placeholderDomain marks accounts registered without a real address.
const placeholderDomain = "@placeholder.local"

func isPlaceholderEmail(email string) bool {
	return email == "" || strings.HasSuffix(email, placeholderDomain)
}

type LifecycleService struct {
	cfg    *config.Config
	auth   *AuthService
	mailer Mailer
}

func NewLifecycleService(cfg *config.Config, auth *AuthService, mailer Mailer) *LifecycleService {
	return &LifecycleService{cfg: cfg, auth: auth, mailer: mailer}
}

// checkCooldown enforces the configured whole-day cooldown since the
// last occurrence of the action.
func (s *LifecycleService) checkCooldown(last *time.Time) error {
	if last == nil {
		return nil
	}
	elapsed := int(time.Since(*last).Hours() / 24)
	if elapsed < s.cfg.Security.CooldownDays {
		return &CooldownError{DaysRemaining: s.cfg.Security.CooldownDays - elapsed}
	}
	return nil
}

// Deactivate flips a user inactive. Session rows are left in place:
// they become unusable because every authenticated request re-checks
// the active flag against the store.
func (s *LifecycleService) Deactivate(userID uint) (*models.User, error) {
	var user models.User
	if err := models.DB.Preload("Branch").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := models.DB.Model(&user).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	user.IsActive = false
	return &user, nil
}

// reverifyDeactivated resolves a user for the reactivation flow:
// password must match, the account must be deactivated, and no pending
// request may exist yet.
func (s *LifecycleService) reverifyDeactivated(identifier, password string) (*models.User, error) {
	user, err := s.auth.FindByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if user.IsActive {
		return nil, ErrAlreadyActive
	}

	var pending int64
	if err := models.DB.Model(&models.ReactivationRequest{}).
		Where("user_id = ? AND status = ?", user.ID, models.RequestStatusPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrDuplicatePendingRequest
	}

	return user, nil
}

// SendReactivationCode re-verifies identity and emails a 6-digit code
// valid for 15 minutes. Any previously issued codes are invalidated.
func (s *LifecycleService) SendReactivationCode(identifier, password string) error {
	user, err := s.reverifyDeactivated(identifier, password)
	if err != nil {
		return err
	}

	if isPlaceholderEmail(user.Email) {
		return ErrEmailNotConfigured
	}

	code, err := generateNumericCode(6)
	if err != nil {
		return err
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ReactivationCode{}).
			Where("user_id = ? AND used = ?", user.ID, false).
			Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(&models.ReactivationCode{
			UserID:    user.ID,
			Code:      code,
			ExpiresAt: time.Now().Add(reactivationCodeTTL),
		}).Error
	})
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hello %s,\n\nYour account reactivation code is: %s\n\nIt expires in 15 minutes. If you did not request this, ignore this message.",
		user.FullName, code)
	if err := s.mailer.Send(user.Email, "Account Reactivation Code", body); err != nil {
		logs.Logger.WithError(err).WithField("user_id", user.ID).Error("failed to send reactivation code")
		return err
	}
	return nil
}

// VerifyReactivationCode consumes a valid code and opens a pending
// reactivation request carrying the supplied reason.
func (s *LifecycleService) VerifyReactivationCode(identifier, password, code, reason string) (*models.ReactivationRequest, error) {
	if err := validation.Validate(reason, validation.Required, validation.Length(minReasonLength, 0)); err != nil {
		return nil, ErrReasonTooShort
	}

	user, err := s.reverifyDeactivated(identifier, password)
	if err != nil {
		return nil, err
	}

	var rc models.ReactivationCode
	err = models.DB.
		Where("user_id = ? AND code = ? AND used = ? AND expires_at > ?", user.ID, code, false, time.Now()).
		Order("created_at DESC").
		First(&rc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	request := &models.ReactivationRequest{
		UserID: user.ID,
		Reason: reason,
		Status: models.RequestStatusPending,
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&rc).Update("used", true).Error; err != nil {
			return err
		}
		return tx.Create(request).Error
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// RequestReactivation is the legacy reason-only path: no emailed code,
// just identity re-verification and a reason.
func (s *LifecycleService) RequestReactivation(identifier, password, reason string) (*models.ReactivationRequest, error) {
	if err := validation.Validate(reason, validation.Required, validation.Length(minReasonLength, 0)); err != nil {
		return nil, ErrReasonTooShort
	}

	user, err := s.reverifyDeactivated(identifier, password)
	if err != nil {
		return nil, err
	}

	request := &models.ReactivationRequest{
		UserID: user.ID,
		Reason: reason,
		Status: models.RequestStatusPending,
	}
	if err := models.DB.Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// ListPendingRequests returns open reactivation requests for review.
func (s *LifecycleService) ListPendingRequests() ([]models.ReactivationRequest, error) {
	var requests []models.ReactivationRequest
	err := models.DB.
		Preload("User.Branch").
		Where("status = ?", models.RequestStatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

// ReviewRequest closes a pending request. Approval reactivates the
// account in the same transaction; both outcomes notify the user.
func (s *LifecycleService) ReviewRequest(requestID, reviewerID uint, approve bool, notes string) (*models.ReactivationRequest, error) {
	var request models.ReactivationRequest
	err := models.DB.Preload("User").
		Where("id = ? AND status = ?", requestID, models.RequestStatusPending).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	status := models.RequestStatusRejected
	if approve {
		status = models.RequestStatusApproved
	}
	now := time.Now()

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&request).Updates(map[string]interface{}{
			"status":       status,
			"reviewer_id":  reviewerID,
			"review_notes": notes,
			"reviewed_at":  now,
		}).Error; err != nil {
			return err
		}
		if approve {
			return tx.Model(&models.User{}).
				Where("id = ?", request.UserID).
				Update("is_active", true).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = status
	request.ReviewerID = &reviewerID
	request.ReviewNotes = notes
	request.ReviewedAt = &now

	if !isPlaceholderEmail(request.User.Email) {
		subject := "Account Reactivation Rejected"
		body := fmt.Sprintf("Hello %s,\n\nYour reactivation request was rejected.", request.User.FullName)
		if approve {
			subject = "Account Reactivated"
			body = fmt.Sprintf("Hello %s,\n\nYour account has been reactivated. You can log in again.", request.User.FullName)
		}
		if notes != "" {
			body += "\n\nReviewer notes: " + notes
		}
		if err := s.mailer.Send(request.User.Email, subject, body); err != nil {
			logs.Logger.WithError(err).WithField("request_id", request.ID).Warn("failed to send review notification")
		}
	}

	return &request, nil
}

// RequestPasswordReset mints a reset token and emails a reset link.
// Only three cases are reported as not-eligible (unknown user, a
// non-branch account, a placeholder email); everything else succeeds
// uniformly so responses do not confirm account existence.
func (s *LifecycleService) RequestPasswordReset(identifier string) error {
	user, err := s.auth.FindByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrResetNotEligible
		}
		return err
	}

	// Head-office accounts are excluded from self-service reset.
	if user.BranchID == nil {
		return ErrResetNotEligible
	}
	if isPlaceholderEmail(user.Email) {
		return ErrResetNotEligible
	}

	// Reuse an unexpired unused token instead of minting duplicates.
	var token models.PasswordResetToken
	err = models.DB.
		Where("user_id = ? AND used_at IS NULL AND expires_at > ?", user.ID, time.Now()).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		token = models.PasswordResetToken{
			UserID:    user.ID,
			Token:     uuid.NewString(),
			ExpiresAt: time.Now().Add(resetTokenTTL),
		}
		if err := models.DB.Create(&token).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.Email.BaseURL, "/"), token.Token)
	body := fmt.Sprintf(
		"Hello %s,\n\nA password reset was requested for your account.\n\nReset link (valid for 1 hour): %s\n\nIf you did not request this, ignore this message.",
		user.FullName, link)
	if err := s.mailer.Send(user.Email, "Password Reset", body); err != nil {
		logs.Logger.WithError(err).WithField("user_id", user.ID).Error("failed to send reset email")
		return err
	}
	return nil
}

// ResetPassword consumes a live reset token and sets a new password.
func (s *LifecycleService) ResetPassword(tokenString, newPassword string) error {
	var token models.PasswordResetToken
	err := models.DB.Preload("User").
		Where("token = ? AND used_at IS NULL AND expires_at > ?", tokenString, time.Now()).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	if err := ValidatePassword(s.cfg, newPassword); err != nil {
		return err
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", token.UserID).
			Updates(map[string]interface{}{
				"password_hash":        hash,
				"last_password_change": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&token).Update("used_at", now).Error
	})
	if err != nil {
		return err
	}

	if !isPlaceholderEmail(token.User.Email) {
		body := fmt.Sprintf("Hello %s,\n\nYour password was changed. If this was not you, contact your branch administrator immediately.", token.User.FullName)
		if err := s.mailer.Send(token.User.Email, "Password Changed", body); err != nil {
			logs.Logger.WithError(err).WithField("user_id", token.UserID).Warn("failed to send password-changed notice")
		}
	}
	return nil
}

// ChangePassword is the authenticated path: cooldown, current-password
// check, strength policy, and the new password must differ.
func (s *LifecycleService) ChangePassword(userID uint, currentPassword, newPassword string) error {
	var user models.User
	if err := models.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.checkCooldown(user.LastPasswordChange); err != nil {
		return err
	}

	if !s.auth.VerifyPassword(user.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}

	if err := ValidatePassword(s.cfg, newPassword); err != nil {
		return err
	}

	if s.auth.VerifyPassword(user.PasswordHash, newPassword) {
		return ErrPasswordUnchanged
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	return models.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":        hash,
		"last_password_change": now,
	}).Error
}

// UpdateProfile changes username/email/full name under the same
// cooldown, with a uniqueness check against other accounts.
func (s *LifecycleService) UpdateProfile(userID uint, username, email, fullName string) (*models.User, error) {
	var user models.User
	if err := models.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.checkCooldown(user.LastProfileUpdate); err != nil {
		return nil, err
	}

	if username == "" {
		username = user.Username
	}
	if email == "" {
		email = user.Email
	}
	if fullName == "" {
		fullName = user.FullName
	}

	var clash int64
	if err := models.DB.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", username, email, userID).
		Count(&clash).Error; err != nil {
		return nil, err
	}
	if clash > 0 {
		return nil, ErrUserExists
	}

	now := time.Now()
	if err := models.DB.Model(&user).Updates(map[string]interface{}{
		"username":            username,
		"email":               email,
		"full_name":           fullName,
		"last_profile_update": now,
	}).Error; err != nil {
		return nil, err
	}

	user.Username = username
	user.Email = email
	user.FullName = fullName
	user.LastProfileUpdate = &now
	return &user, nil
}

// generateNumericCode returns a zero-padded random code of n digits.
func generateNumericCode(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
