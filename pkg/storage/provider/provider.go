// Package provider opens the storage driver named by configuration.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/logger"
	"github.com/papercomputeco/neolink/pkg/storage"
	"github.com/papercomputeco/neolink/pkg/storage/file"
	"github.com/papercomputeco/neolink/pkg/storage/inmemory"
	"github.com/papercomputeco/neolink/pkg/storage/postgres"
	"github.com/papercomputeco/neolink/pkg/storage/sqlite"
)

const (
	Memory   = "memory"
	File     = "file"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Providers lists the accepted provider names.
var Providers = []string{Memory, File, SQLite, Postgres}

// NewDriver opens the driver for provider. target is a file path for file
// and sqlite, a connection string for postgres, and ignored for memory.
func NewDriver(ctx context.Context, provider, target string, log *zap.Logger) (storage.Driver, error) {
	log = logger.OrNop(log)

	switch provider {
	case "", Memory:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case File:
		if target == "" {
			return nil, fmt.Errorf("file storage requires a target path")
		}
		driver, err := file.NewDriver(target)
		if err != nil {
			return nil, fmt.Errorf("failed to create file storer: %w", err)
		}
		log.Info("using file storage", zap.String("path", target))
		return driver, nil

	case SQLite:
		if target == "" {
			return nil, fmt.Errorf("sqlite storage requires a target path")
		}
		driver, err := sqlite.NewDriver(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		log.Info("using SQLite storage", zap.String("path", target))
		return driver, nil

	case Postgres:
		if target == "" {
			return nil, fmt.Errorf("postgres storage requires a connection string")
		}
		driver, err := postgres.NewDriver(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage provider %q (want one of %v)", provider, Providers)
	}
}
