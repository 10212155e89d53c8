// Package config loads TransDock's configuration from environment
// variables (per the external interfaces table) and, for CLI
// convenience, can load and atomically save the same settings as a
// local JSON file. It holds no target-host SSH settings; the only SSH
// field is the known_hosts path.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/transdock/transdock/internal/observability"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Host string `json:"host"`
	Port int    `json:"port"`

	// Logging
	LogLevel string `json:"log_level"`

	// Feature toggles
	Debug      bool `json:"debug"`
	Testing    bool `json:"testing"`
	EnableDocs bool `json:"enable_docs"`

	// Repository backend
	DatabaseURL string `json:"database_url"`

	// Auth collaborator (contract only; no auth implementation ships here)
	JWTSecretKey              string        `json:"-"`
	JWTAlgorithm              string        `json:"jwt_algorithm"`
	AccessTokenExpireMinutes  int           `json:"access_token_expire_minutes"`
	RefreshTokenExpireDays    int           `json:"refresh_token_expire_days"`
	AdminPassword             string        `json:"-"`
	UserPassword              string        `json:"-"`

	// Orchestrator safety toggles
	MandatoryPreMigrationSnapshots bool          `json:"mandatory_pre_migration_snapshots"`
	RequireRollbackCapability      bool          `json:"require_rollback_capability"`
	EnableAtomicOperations         bool          `json:"enable_atomic_operations"`
	ValidateChecksumIntegrity      bool          `json:"validate_checksum_integrity"`
	RequireDryRunBeforeTransfer    bool          `json:"require_dry_run_before_transfer"`
	MaxMigrationTimeout            time.Duration `json:"max_migration_timeout"`
	RequireDiskHealthCheck         bool          `json:"require_disk_health_check"`
	ValidateNetworkStability       bool          `json:"validate_network_stability"`
	BackupRetentionDays            int           `json:"backup_retention_days"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Command executor defaults
	CommandTimeout time.Duration `json:"command_timeout"`
	KnownHostsPath string        `json:"known_hosts_path"`

	mu sync.RWMutex
}

// DefaultConfig returns a configuration with the defaults named in the
// environment table.
func DefaultConfig() *Config {
	return &Config{
		Host:                     "0.0.0.0",
		Port:                     8000,
		LogLevel:                 "INFO",
		JWTAlgorithm:             "HS256",
		AccessTokenExpireMinutes: 30,
		RefreshTokenExpireDays:   7,

		MandatoryPreMigrationSnapshots: true,
		RequireRollbackCapability:      false,
		EnableAtomicOperations:         true,
		ValidateChecksumIntegrity:      true,
		RequireDryRunBeforeTransfer:    false,
		MaxMigrationTimeout:            12 * time.Hour,
		RequireDiskHealthCheck:         true,
		ValidateNetworkStability:       false,
		BackupRetentionDays:            30,

		CORSOrigins: []string{"*"},

		CommandTimeout: 30 * time.Second,
		KnownHostsPath: defaultKnownHostsPath(),
	}
}

func defaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".transdock/known_hosts"
	}
	return filepath.Join(home, ".transdock", "known_hosts")
}

// LoadFromEnv builds a Config from defaults overridden by the
// environment keys of the external interfaces table.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.Debug = envBool("DEBUG", cfg.Debug)
	cfg.Testing = envBool("TESTING", cfg.Testing)
	cfg.EnableDocs = envBool("ENABLE_DOCS", cfg.EnableDocs)

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if v := os.Getenv("JWT_ALGORITHM"); v != "" {
		cfg.JWTAlgorithm = v
	}
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AccessTokenExpireMinutes = n
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_EXPIRE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RefreshTokenExpireDays = n
		}
	}
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.UserPassword = os.Getenv("USER_PASSWORD")

	cfg.MandatoryPreMigrationSnapshots = envBool("MANDATORY_PRE_MIGRATION_SNAPSHOTS", cfg.MandatoryPreMigrationSnapshots)
	cfg.RequireRollbackCapability = envBool("REQUIRE_ROLLBACK_CAPABILITY", cfg.RequireRollbackCapability)
	cfg.EnableAtomicOperations = envBool("ENABLE_ATOMIC_OPERATIONS", cfg.EnableAtomicOperations)
	cfg.ValidateChecksumIntegrity = envBool("VALIDATE_CHECKSUM_INTEGRITY", cfg.ValidateChecksumIntegrity)
	cfg.RequireDryRunBeforeTransfer = envBool("REQUIRE_DRY_RUN_BEFORE_TRANSFER", cfg.RequireDryRunBeforeTransfer)
	if v := os.Getenv("MAX_MIGRATION_TIMEOUT_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxMigrationTimeout = time.Duration(n) * time.Hour
		}
	}
	cfg.RequireDiskHealthCheck = envBool("REQUIRE_DISK_HEALTH_CHECK", cfg.RequireDiskHealthCheck)
	cfg.ValidateNetworkStability = envBool("VALIDATE_NETWORK_STABILITY", cfg.ValidateNetworkStability)
	if v := os.Getenv("BACKUP_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BackupRetentionDays = n
		}
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.CORSOrigins = origins
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Addr returns the bind address derived from Host/Port.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads a Config saved as JSON (such as a known_hosts path
// override) from path, falling back to DefaultConfig if the file is
// absent.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save persists the config atomically (temp file + rename), directory
// mode 0700, file mode 0600.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}
	return nil
}

// Redact returns a loggable view with every secret masked.
func (c *Config) Redact() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]any{
		"host":                   c.Host,
		"port":                   c.Port,
		"log_level":              c.LogLevel,
		"debug":                  c.Debug,
		"testing":                c.Testing,
		"enable_docs":            c.EnableDocs,
		"database_url":           observability.RedactString(c.DatabaseURL),
		"jwt_algorithm":          c.JWTAlgorithm,
		"jwt_secret_key":         "***REDACTED***",
		"admin_password":         "***REDACTED***",
		"user_password":          "***REDACTED***",
		"max_migration_timeout":  c.MaxMigrationTimeout.String(),
		"backup_retention_days":  c.BackupRetentionDays,
		"cors_origins":           c.CORSOrigins,
		"known_hosts_path":       c.KnownHostsPath,
	}
}
