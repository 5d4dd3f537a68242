package models

import (
	"time"
)

// Audit outcome statuses.
const (
	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"
)

// AuditLog is append-only; the core never updates or deletes rows.
// UserID is null for anonymous failures (e.g. a bad login).
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     *uint     `json:"user_id" gorm:"index"`
	BranchID   *uint     `json:"branch_id" gorm:"index"`
	Action     string    `json:"action" gorm:"type:varchar(100);not null;index"`
	Resource   string    `json:"resource" gorm:"type:varchar(100)"`
	ResourceID string    `json:"resource_id" gorm:"type:varchar(255)"`
	Details    string    `json:"details" gorm:"type:text"` // JSON blob
	IPAddress  string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string    `json:"user_agent" gorm:"type:varchar(500)"`
	Status     string    `json:"status" gorm:"type:varchar(20);not null;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
	User       *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
