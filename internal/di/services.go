// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/statements/internal/clients/objectstore"
	"github.com/aristath/statements/internal/config"
	"github.com/aristath/statements/internal/modules/analytics"
	"github.com/aristath/statements/internal/modules/ingestion"
	"github.com/aristath/statements/internal/modules/snapshot"
	"github.com/aristath/statements/internal/modules/statements"
	"github.com/aristath/statements/internal/modules/store"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/aristath/statements/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the repositories and services on top of the
// container's database.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database cannot be nil")
	}

	container.Repository = store.NewRepository(container.DB.Conn(), log)
	container.Schema = widetable.DefaultSchema()

	container.Processor = statements.NewProcessor(log)
	container.Pipeline = ingestion.NewPipeline(container.Repository, container.Schema, cfg.IngestAtomic, log)
	container.Reconstructor = widetable.NewReconstructor(log)

	// The server reads either the store or an exported snapshot file
	var loader snapshot.Loader = snapshot.NewStoreLoader(container.Repository, container.Reconstructor)
	if cfg.SnapshotFile != "" {
		loader = snapshot.NewFileLoader(cfg.SnapshotFile)
		log.Info().Str("file", cfg.SnapshotFile).Msg("Serving snapshot from file")
	}
	container.SnapshotHolder = snapshot.NewHolder(loader, log)

	container.Engine = analytics.NewEngine(container.Schema)
	container.AnalyticsService = analytics.NewService(container.Engine, container.SnapshotHolder, log)

	if cfg.Bucket.Enabled() {
		client, err := objectstore.New(ctx, cfg.Bucket.ObjectStore(), log)
		if err != nil {
			return fmt.Errorf("failed to create object store client: %w", err)
		}
		container.ObjectStore = client
		container.BackupService = reliability.NewBackupService(
			container.DB,
			client,
			filepath.Join(cfg.DataDir, "backups"),
			log,
		)
	}

	log.Info().Bool("bucket", container.ObjectStore != nil).Msg("Services initialized")
	return nil
}
