// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/statements/internal/clients/objectstore"
	"github.com/aristath/statements/internal/database"
	"github.com/aristath/statements/internal/modules/analytics"
	"github.com/aristath/statements/internal/modules/ingestion"
	"github.com/aristath/statements/internal/modules/snapshot"
	"github.com/aristath/statements/internal/modules/statements"
	"github.com/aristath/statements/internal/modules/store"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/aristath/statements/internal/reliability"
	"github.com/aristath/statements/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// It is created by Wire() and passed to the server and the CLI commands.
type Container struct {
	// Database
	DB *database.DB

	// Clients (nil when no bucket is configured)
	ObjectStore *objectstore.Client

	// Repositories
	Repository *store.Repository

	// Services
	Schema           *widetable.Schema
	Processor        *statements.Processor
	Pipeline         *ingestion.Pipeline
	Reconstructor    *widetable.Reconstructor
	SnapshotHolder   *snapshot.Holder
	Engine           *analytics.Engine
	AnalyticsService *analytics.Service
	BackupService    *reliability.BackupService // nil without a bucket
}

// JobInstances holds the scheduled jobs for manual triggering via API
type JobInstances struct {
	ReloadSnapshot scheduler.Job
	CheckDatabase  scheduler.Job
	Maintenance    scheduler.Job
	Backup         scheduler.Job // nil without a bucket
}

// Close releases the container's resources.
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
