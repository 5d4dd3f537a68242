package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Security    SecurityConfig    `yaml:"security"`
	Email       EmailConfig       `yaml:"email"`
	Audit       AuditConfig       `yaml:"audit"`
	Logging     LoggingConfig     `yaml:"logging"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Pool   PoolConfig   `yaml:"pool"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

type PoolConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

type JWTConfig struct {
	Secret           string `yaml:"secret"`
	Issuer           string `yaml:"issuer"`
	Audience         string `yaml:"audience"`
	AccessExpiresIn  string `yaml:"access_expires_in"`
	RefreshExpiresIn string `yaml:"refresh_expires_in"`
}

type SecurityConfig struct {
	BcryptCost   int             `yaml:"bcrypt_cost"`
	CooldownDays int             `yaml:"cooldown_days"`
	Password     PasswordConfig  `yaml:"password"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type PasswordConfig struct {
	MinLength     int  `yaml:"min_length"`
	RequireUpper  bool `yaml:"require_upper"`
	RequireDigit  bool `yaml:"require_digit"`
	RequireSymbol bool `yaml:"require_symbol"`
}

type RateLimitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	Window      string `yaml:"window"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	BaseURL  string `yaml:"base_url"` // used to build reset links
}

type AuditConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type DefaultUserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

var Global *Config

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	if jwtSecret := os.Getenv("COOPFIN_JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	if dbType := os.Getenv("COOPFIN_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}

	if dbPath := os.Getenv("COOPFIN_DB_PATH"); dbPath != "" {
		cfg.Database.SQLite.Path = dbPath
	}

	if mysqlHost := os.Getenv("COOPFIN_MYSQL_HOST"); mysqlHost != "" {
		cfg.Database.MySQL.Host = mysqlHost
	}

	if mysqlUser := os.Getenv("COOPFIN_MYSQL_USER"); mysqlUser != "" {
		cfg.Database.MySQL.Username = mysqlUser
	}

	if mysqlPass := os.Getenv("COOPFIN_MYSQL_PASSWORD"); mysqlPass != "" {
		cfg.Database.MySQL.Password = mysqlPass
	}

	if mysqlDB := os.Getenv("COOPFIN_MYSQL_DATABASE"); mysqlDB != "" {
		cfg.Database.MySQL.Database = mysqlDB
	}

	if smtpPass := os.Getenv("COOPFIN_SMTP_PASSWORD"); smtpPass != "" {
		cfg.Email.Password = smtpPass
	}

	applyDefaults(&cfg)

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Validate MySQL configuration if MySQL is selected
	if cfg.Database.Type == "mysql" {
		if cfg.Database.MySQL.Username == "" {
			return nil, fmt.Errorf("MySQL username is required")
		}
		if cfg.Database.MySQL.Database == "" {
			return nil, fmt.Errorf("MySQL database name is required")
		}
	}

	Global = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWT.AccessExpiresIn == "" {
		cfg.JWT.AccessExpiresIn = "1h"
	}
	if cfg.JWT.RefreshExpiresIn == "" {
		cfg.JWT.RefreshExpiresIn = "168h"
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = 12
	}
	if cfg.Security.CooldownDays == 0 {
		cfg.Security.CooldownDays = 30
	}
	if cfg.Security.Password.MinLength == 0 {
		cfg.Security.Password.MinLength = 8
	}
	if cfg.Security.RateLimit.MaxAttempts == 0 {
		cfg.Security.RateLimit.MaxAttempts = 5
	}
	if cfg.Security.RateLimit.Window == "" {
		cfg.Security.RateLimit.Window = "15m"
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 256
	}
	if cfg.Database.Pool.MaxOpenConns == 0 {
		cfg.Database.Pool.MaxOpenConns = 25
	}
	if cfg.Database.Pool.MaxIdleConns == 0 {
		cfg.Database.Pool.MaxIdleConns = 5
	}
	if cfg.Database.Pool.ConnMaxLifetime == "" {
		cfg.Database.Pool.ConnMaxLifetime = "1h"
	}
	if cfg.Database.Pool.ConnMaxIdleTime == "" {
		cfg.Database.Pool.ConnMaxIdleTime = "10m"
	}
}

// RateLimitWindow returns the failed-login lockout window.
func (c *Config) RateLimitWindow() time.Duration {
	d, err := time.ParseDuration(c.Security.RateLimit.Window)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// ConnMaxLifetime returns the pooled connection reuse ceiling.
func (p *PoolConfig) Lifetime() time.Duration {
	return parseDurationOr(p.ConnMaxLifetime, time.Hour)
}

// IdleTime returns the pooled connection idle timeout.
func (p *PoolConfig) IdleTime() time.Duration {
	return parseDurationOr(p.ConnMaxIdleTime, 10*time.Minute)
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWT.AccessExpiresIn)
	if err != nil {
		return time.Hour
	}
	return d
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWT.RefreshExpiresIn)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}
