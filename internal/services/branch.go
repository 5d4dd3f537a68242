package services

import (
	"errors"
	"fmt"
	"strings"

	"coopfin/internal/config"
	"coopfin/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUnknownRole    = errors.New("unknown role")
	ErrBranchRequired = errors.New("branch is required for this role")
	ErrBranchNotFound = errors.New("branch not found")
)

type BranchService struct {
	cfg  *config.Config
	auth *AuthService
}

func NewBranchService(cfg *config.Config, auth *AuthService) *BranchService {
	return &BranchService{cfg: cfg, auth: auth}
}

// NormalizeLocation collapses whitespace and case so branch creation is
// idempotent per location.
func NormalizeLocation(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), " "))
}

// getOrCreateBranch finds a branch by normalized location, creating it
// when absent. Runs on the caller's transaction handle.
func (s *BranchService) getOrCreateBranch(tx *gorm.DB, name, location string) (*models.Branch, error) {
	normalized := NormalizeLocation(location)
	if normalized == "" {
		return nil, ErrBranchRequired
	}

	var branch models.Branch
	err := tx.Where("location = ?", normalized).First(&branch).Error
	if err == nil {
		return &branch, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	branch = models.Branch{Name: name, Location: normalized}
	if branch.Name == "" {
		branch.Name = strings.TrimSpace(location)
	}
	if err := tx.Create(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

// GetOrCreateBranch is the standalone variant used by the branches API.
func (s *BranchService) GetOrCreateBranch(name, location string) (*models.Branch, error) {
	var branch *models.Branch
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		branch, err = s.getOrCreateBranch(tx, name, location)
		return err
	})
	return branch, err
}

// RegisterUserData carries a branch-user registration.
type RegisterUserData struct {
	Username       string
	Password       string
	Email          string
	FullName       string
	Role           string
	BranchName     string
	BranchLocation string
}

// RegisterUser creates a user with a sequential employee id. The id
// counter is per role prefix and shared across branches: the second
// marketing clerk anywhere becomes MC002 regardless of branch. Branch
// creation and user creation commit together.
func (s *BranchService) RegisterUser(data RegisterUserData) (*models.User, error) {
	var role models.Role
	if err := models.DB.Where("name = ?", data.Role).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownRole
		}
		return nil, err
	}

	if err := ValidatePassword(s.cfg, data.Password); err != nil {
		return nil, err
	}

	email := data.Email
	if email == "" {
		email = data.Username + placeholderDomain
	}

	hash, err := s.auth.HashPassword(data.Password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		var clash int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", data.Username, email).
			Count(&clash).Error; err != nil {
			return err
		}
		if clash > 0 {
			return ErrUserExists
		}

		var branchID *uint
		if role.Name != models.RoleHeadAdministrator {
			branch, err := s.getOrCreateBranch(tx, data.BranchName, data.BranchLocation)
			if err != nil {
				return err
			}
			branchID = &branch.ID
		}

		employeeID := ""
		if prefix, ok := models.EmployeePrefixes[role.Name]; ok {
			var count int64
			if err := tx.Model(&models.User{}).
				Where("employee_id LIKE ?", prefix+"%").
				Count(&count).Error; err != nil {
				return err
			}
			employeeID = fmt.Sprintf("%s%03d", prefix, count+1)
		}

		user = &models.User{
			Username:     data.Username,
			Email:        email,
			PasswordHash: hash,
			FullName:     data.FullName,
			EmployeeID:   employeeID,
			RoleID:       role.ID,
			BranchID:     branchID,
			IsActive:     true,
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, err
	}

	user.Role = role
	return user, nil
}

// ListBranches returns all branches.
func (s *BranchService) ListBranches() ([]models.Branch, error) {
	var branches []models.Branch
	err := models.DB.Order("id ASC").Find(&branches).Error
	return branches, err
}

// ListBranchMembers returns the users attached to a branch.
func (s *BranchService) ListBranchMembers(branchID uint) ([]models.User, error) {
	var branch models.Branch
	if err := models.DB.First(&branch, branchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}

	var users []models.User
	err := models.DB.Preload("Role").
		Where("branch_id = ?", branchID).
		Order("employee_id ASC").
		Find(&users).Error
	return users, err
}
