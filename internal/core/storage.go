package core

import (
	"context"
	"fmt"
	"strings"

	"gardenkeep/internal/infra/persistence/memory"
	"gardenkeep/internal/infra/persistence/postgres"
	"gardenkeep/internal/infra/persistence/sqlite"
	"gardenkeep/pkg/domain"
)

// StorageDriver selects a persistent store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

// StorageConfig describes how to open the persistent store.
type StorageConfig struct {
	Driver     StorageDriver
	SQLitePath string
	DSN        string
}

// OpenPersistentStore constructs the configured store. An empty driver means
// sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig) (domain.PersistentStore, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case "", StorageSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = sqlite.DefaultPath
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = postgres.DefaultDSN
		}
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, &domain.ConfigError{Setting: "STORAGE_DRIVER", Reason: fmt.Sprintf("has unknown value %q", cfg.Driver)}
	}
}
