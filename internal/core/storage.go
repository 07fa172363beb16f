package core

import (
	"context"
	"fmt"

	"modelcore/internal/blob"
	"modelcore/internal/config"
	"modelcore/internal/infra/persistence/badger"
	"modelcore/internal/infra/persistence/blobpart"
	"modelcore/internal/infra/persistence/memory"
	"modelcore/internal/infra/persistence/postgres"
	"modelcore/internal/infra/persistence/sqlite"
	"modelcore/internal/modelstore"
	"modelcore/pkg/domain"
)

// StorageDriver identifies a concrete partition store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded badger key-value store
	StorageBlob     StorageDriver = "blob"     // JSON-lines objects on a blob store
)

// OpenPartitionStore selects a backend from cfg.Storage.Driver. Defaults to
// sqlite when unset.
func OpenPartitionStore(ctx context.Context, cfg config.Config) (domain.PartitionStore, error) {
	driver := StorageDriver(cfg.Storage.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, cfg.Storage.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
	case StorageBadger:
		return badger.NewStore(badger.Options{Dir: cfg.Storage.BadgerDir, InMemory: cfg.Storage.BadgerInMemory})
	case StorageBlob:
		blobs, err := blob.Open(ctx, cfg.Blob.BlobConfig())
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return blobpart.New(blobs, cfg.Storage.BlobPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenModelStore opens the configured partition store and wraps it in a
// modelstore using the configured read timeout and import concurrency.
func OpenModelStore(ctx context.Context, cfg config.Config, logger Logger) (*modelstore.Store, error) {
	parts, err := OpenPartitionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return modelstore.New(parts,
		modelstore.WithReadTimeout(cfg.ReadTimeout),
		modelstore.WithImportConcurrency(cfg.ImportWorkers),
		modelstore.WithLogger(logger),
	), nil
}
