package models

import (
	"time"
)

// Role names. HeadAdministrator bypasses explicit permission checks.
const (
	RoleHeadAdministrator = "head_administrator"
	RoleMarketingClerk    = "marketing_clerk"
	RoleFinanceOfficer    = "finance_officer"
)

// PermissionWildcard grants every resource:action pair.
const PermissionWildcard = "*:*"

// EmployeePrefixes maps branch roles to their employee-id prefix. The
// counter behind a prefix is shared across branches, so the second
// marketing clerk anywhere becomes MC002.
var EmployeePrefixes = map[string]string{
	RoleMarketingClerk: "MC",
	RoleFinanceOfficer: "FO",
}

type User struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	Username           string     `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	Email              string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash       string     `json:"-" gorm:"type:varchar(255);not null"`
	FullName           string     `json:"full_name" gorm:"type:varchar(255)"`
	EmployeeID         string     `json:"employee_id" gorm:"type:varchar(20);index"`
	RoleID             uint       `json:"role_id" gorm:"not null;index"`
	Role               Role       `json:"role,omitempty" gorm:"foreignKey:RoleID"`
	BranchID           *uint      `json:"branch_id" gorm:"index"`
	Branch             *Branch    `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	IsActive           bool       `json:"is_active" gorm:"default:true;not null"`
	LastLogin          *time.Time `json:"last_login"`
	LastProfileUpdate  *time.Time `json:"last_profile_update"`
	LastPasswordChange *time.Time `json:"last_password_change"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsMainBranch reports whether the user belongs to the head branch.
func (u *User) IsMainBranch() bool {
	return u.Branch != nil && u.Branch.IsMainBranch
}

// PermissionNames returns the permission strings granted by the user's role.
func (u *User) PermissionNames() []string {
	names := make([]string, 0, len(u.Role.Permissions))
	for _, p := range u.Role.Permissions {
		names = append(names, p.Name)
	}
	return names
}

type Role struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string       `json:"display_name" gorm:"type:varchar(100)"`
	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:role_permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission names follow the resource:action convention, e.g. "members:view".
type Permission struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
}

type Branch struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Location     string    `json:"location" gorm:"type:varchar(255);uniqueIndex;not null"` // normalized
	IsMainBranch bool      `json:"is_main_branch" gorm:"default:false;not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
