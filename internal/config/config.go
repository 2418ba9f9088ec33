// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/statements/internal/clients/objectstore"
	"github.com/aristath/statements/internal/utils"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// scheduleParser matches the scheduler's six-field cron format.
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the database and working files (always absolute)
	DBPath      string
	TradesDir   string // Raw statement exports
	PreparedDir string // Prepared wide-table CSVs
	LogLevel    string
	Port        int
	DevMode     bool

	CORSAllowedOrigins []string

	IngestAtomic bool

	SnapshotFile           string // Serve from an exported snapshot instead of the database
	SnapshotReloadSchedule string
	MaintenanceSchedule    string
	BackupSchedule         string
	BackupRetentionDays    int

	Bucket BucketConfig
}

// BucketConfig holds S3-compatible object storage settings.
type BucketConfig struct {
	Name            string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether a bucket is configured.
func (b BucketConfig) Enabled() bool {
	return b.Name != ""
}

// ObjectStore converts the settings for the object store client.
func (b BucketConfig) ObjectStore() objectstore.Config {
	return objectstore.Config{
		Bucket:          b.Name,
		Prefix:          b.Prefix,
		Endpoint:        b.Endpoint,
		Region:          b.Region,
		AccessKeyID:     b.AccessKeyID,
		SecretAccessKey: b.SecretAccessKey,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("STATEMENTS_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		DBPath:      resolve(absDataDir, getEnv("STATEMENTS_DB_PATH", "statements.db")),
		TradesDir:   resolve(absDataDir, getEnv("STATEMENTS_TRADES_DIR", "trades")),
		PreparedDir: resolve(absDataDir, getEnv("STATEMENTS_PREPARED_DIR", "prepared")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvAsInt("GO_PORT", 8000),
		DevMode:     getEnvAsBool("DEV_MODE", false),

		CORSAllowedOrigins: utils.ParseCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost,http://localhost:3000")),

		IngestAtomic: getEnvAsBool("INGEST_ATOMIC", false),

		SnapshotFile:           getEnv("SNAPSHOT_FILE", ""),
		SnapshotReloadSchedule: getEnv("SNAPSHOT_RELOAD_SCHEDULE", ""),
		MaintenanceSchedule:    getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * SUN"),
		BackupSchedule:         getEnv("BACKUP_SCHEDULE", ""),
		BackupRetentionDays:    getEnvAsInt("BACKUP_RETENTION_DAYS", 30),

		Bucket: BucketConfig{
			Name:            getEnv("STATEMENTS_BUCKET", ""),
			Prefix:          getEnv("STATEMENTS_BUCKET_PREFIX", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}
	if cfg.SnapshotFile != "" {
		cfg.SnapshotFile = resolve(absDataDir, cfg.SnapshotFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("GO_PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.BackupRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative, got %d", c.BackupRetentionDays))
	}

	schedules := map[string]string{
		"SNAPSHOT_RELOAD_SCHEDULE": c.SnapshotReloadSchedule,
		"MAINTENANCE_SCHEDULE":     c.MaintenanceSchedule,
		"BACKUP_SCHEDULE":          c.BackupSchedule,
	}
	for name, expr := range schedules {
		if expr == "" {
			continue
		}
		if _, err := scheduleParser.Parse(expr); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, expr, err))
		}
	}

	if (c.Bucket.AccessKeyID == "") != (c.Bucket.SecretAccessKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together"))
	}
	if c.BackupSchedule != "" && !c.Bucket.Enabled() {
		errs = append(errs, errors.New("BACKUP_SCHEDULE requires STATEMENTS_BUCKET"))
	}

	return errors.Join(errs...)
}

// resolve makes p absolute, relative to base.
func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
