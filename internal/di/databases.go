// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/aristath/statements/internal/config"
	"github.com/aristath/statements/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the statements database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	// statements.db - write-once statement history, maximum durability
	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileLedger,
		Name:    "statements",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize statements database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate statements database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Statements database initialized")
	return &Container{DB: db}, nil
}
