package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, map[string]string{"STATEMENTS_DATA_DIR": dir})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "statements.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "trades"), cfg.TradesDir)
	assert.Equal(t, filepath.Join(dir, "prepared"), cfg.PreparedDir)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.IngestAtomic)
	assert.Equal(t, []string{"http://localhost", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "0 0 3 * * SUN", cfg.MaintenanceSchedule)
	assert.Empty(t, cfg.SnapshotFile)
	assert.False(t, cfg.Bucket.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, map[string]string{
		"STATEMENTS_DATA_DIR":      dir,
		"STATEMENTS_DB_PATH":       "/var/lib/statements/ibkr.db",
		"STATEMENTS_TRADES_DIR":    "exports",
		"GO_PORT":                  "9090",
		"INGEST_ATOMIC":            "true",
		"CORS_ALLOWED_ORIGINS":     "https://dash.example.com, ",
		"SNAPSHOT_FILE":            "snapshots/latest.msgpack",
		"SNAPSHOT_RELOAD_SCHEDULE": "@every 5m",
		"BACKUP_SCHEDULE":          "0 30 2 * * *",
		"STATEMENTS_BUCKET":        "statements",
		"S3_ENDPOINT":              "https://acct.r2.cloudflarestorage.com",
		"S3_ACCESS_KEY_ID":         "key",
		"S3_SECRET_ACCESS_KEY":     "secret",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/statements/ibkr.db", cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "exports"), cfg.TradesDir)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IngestAtomic)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, filepath.Join(dir, "snapshots/latest.msgpack"), cfg.SnapshotFile)
	assert.True(t, cfg.Bucket.Enabled())

	store := cfg.Bucket.ObjectStore()
	assert.Equal(t, "statements", store.Bucket)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", store.Endpoint)
}

func TestLoad_InvalidIntegerFallsBack(t *testing.T) {
	setEnv(t, map[string]string{"STATEMENTS_DATA_DIR": t.TempDir(), "GO_PORT": "eighty"})
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 8000, BackupRetentionDays: 30, MaintenanceSchedule: "0 0 3 * * SUN"}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 70000 }},
		{"retention", func(c *Config) { c.BackupRetentionDays = -1 }},
		{"schedule", func(c *Config) { c.SnapshotReloadSchedule = "every now and then" }},
		{"half credentials", func(c *Config) { c.Bucket.AccessKeyID = "key" }},
		{"backup without bucket", func(c *Config) { c.BackupSchedule = "@daily" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
