package models

import (
	"time"
)

// Session binds a refresh token to a user and device. One row per
// logged-in device; deleting the row is the only revocation point a
// refresh token has.
type Session struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	RefreshToken string    `json:"-" gorm:"type:varchar(500);uniqueIndex;not null"`
	Device       string    `json:"device" gorm:"type:varchar(255)"`
	IPAddress    string    `json:"ip_address" gorm:"type:varchar(45)"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at"`
	User         User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// PasswordResetToken is consumed exactly once; an unexpired unused row
// suppresses minting a second one.
type PasswordResetToken struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	Token     string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
	User      User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// ReactivationCode is a 6-digit emailed code. At most one valid
// (unused, unexpired) code exists per user; requesting a new code
// invalidates prior ones.
type ReactivationCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Code      string    `json:"-" gorm:"type:varchar(6);not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	Used      bool      `json:"used" gorm:"default:false;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactivationRequest statuses.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// ReactivationRequest records a deactivated user's ask to be restored.
// At most one pending request per user.
type ReactivationRequest struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      uint       `json:"user_id" gorm:"not null;index"`
	Reason      string     `json:"reason" gorm:"type:text;not null"`
	Status      string     `json:"status" gorm:"type:varchar(20);default:'pending';not null;index"`
	ReviewerID  *uint      `json:"reviewer_id"`
	ReviewNotes string     `json:"review_notes" gorm:"type:text"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	User        User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Reviewer    *User      `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}
