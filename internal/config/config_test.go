package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8000, cfg.Port)
	assert.True(t, cfg.MandatoryPreMigrationSnapshots)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BACKUP_RETENTION_DAYS", "7")

	cfg := LoadFromEnv()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 7, cfg.BackupRetentionDays)
}

func TestLoadFromEnvIgnoresInvalidIntegers(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg := LoadFromEnv()
	assert.Equal(t, 8000, cfg.Port)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Port, cfg.Port)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Host = "10.0.0.5"
	cfg.Port = 9443
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", loaded.Host)
	assert.Equal(t, 9443, loaded.Port)
}

func TestRedactMasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWTSecretKey = "super-secret"
	cfg.AdminPassword = "hunter2"
	cfg.DatabaseURL = "postgres://user:password=hunter2@db/app"

	redacted := cfg.Redact()
	assert.Equal(t, "***REDACTED***", redacted["jwt_secret_key"])
	assert.Equal(t, "***REDACTED***", redacted["admin_password"])
	assert.NotContains(t, redacted["database_url"], "hunter2")
}
