package models

import (
	"fmt"

	"coopfin/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB initializes the database connection and pool limits
func InitDB(cfg *config.Config) error {
	var dialector gorm.Dialector
	var err error

	switch cfg.Database.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.SQLite.Path)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Database.MySQL.Username,
			cfg.Database.MySQL.Password,
			cfg.Database.MySQL.Host,
			cfg.Database.MySQL.Port,
			cfg.Database.MySQL.Database,
			cfg.Database.MySQL.Charset,
		)
		dialector = mysql.Open(dsn)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.Pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.Pool.Lifetime())
	sqlDB.SetConnMaxIdleTime(cfg.Database.Pool.IdleTime())

	// Auto migrate models
	if err := DB.AutoMigrate(
		&User{}, &Role{}, &Permission{}, &Branch{},
		&Session{}, &PasswordResetToken{},
		&ReactivationCode{}, &ReactivationRequest{},
		&AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// SeedDefaults creates the built-in roles, permissions, and the main
// branch. Idempotent; safe to run on every start.
func SeedDefaults() error {
	perms := []string{
		PermissionWildcard,
		"members:view", "members:create", "members:update",
		"loans:view", "loans:create", "loans:update",
		"savings:view", "savings:create",
		"reports:view", "reports:generate",
	}
	for _, name := range perms {
		if err := DB.Where(Permission{Name: name}).FirstOrCreate(&Permission{Name: name}).Error; err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", name, err)
		}
	}

	grants := map[string]struct {
		display string
		perms   []string
	}{
		RoleHeadAdministrator: {"Head Administrator", []string{PermissionWildcard}},
		RoleMarketingClerk: {"Marketing Clerk", []string{
			"members:view", "members:create", "members:update", "savings:view",
		}},
		RoleFinanceOfficer: {"Finance Officer", []string{
			"members:view", "loans:view", "loans:create", "loans:update",
			"savings:view", "savings:create", "reports:view", "reports:generate",
		}},
	}

	for name, def := range grants {
		var role Role
		if err := DB.Where(Role{Name: name}).
			Attrs(Role{DisplayName: def.display}).
			FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", name, err)
		}

		var rolePerms []Permission
		if err := DB.Where("name IN ?", def.perms).Find(&rolePerms).Error; err != nil {
			return fmt.Errorf("failed to load permissions for %s: %w", name, err)
		}
		if err := DB.Model(&role).Association("Permissions").Replace(rolePerms); err != nil {
			return fmt.Errorf("failed to grant permissions to %s: %w", name, err)
		}
	}

	var main Branch
	return DB.Where(Branch{Location: "head office"}).
		Attrs(Branch{Name: "Head Office", IsMainBranch: true}).
		FirstOrCreate(&main).Error
}
