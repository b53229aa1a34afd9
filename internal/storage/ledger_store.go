// Package storage selects the LedgerStore implementation named in config.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/khata-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/khata-ledger/internal/storage/mongo"
	"github.com/sheikh-saqib/khata-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/khata-ledger/internal/storage/sqlite"
)

// Open returns the configured store with its schema in place.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (interfaces.LedgerStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("store", cfg.StoreDriver))

	var (
		store interfaces.LedgerStore
		err   error
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		store = memory.NewMemoryLedgerStore()
	case config.StoreSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLiteDir)
	case config.StorePostgres:
		store, err = postgres.Open(ctx, cfg.DatabaseURL, logger)
	case config.StoreMongo:
		store, err = mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("ledger store ready")
	return store, nil
}

// Migrate applies the schema of a SQL store without serving. The memory
// and mongo stores have nothing to migrate.
func Migrate(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return postgres.Migrate(cfg.DatabaseURL, logger)
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLiteDir)
		if err != nil {
			return err
		}
		return s.Close()
	case config.StoreMongo:
		s, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return err
		}
		return s.Close()
	case config.StoreMemory:
		logger.Info("memory store has no schema")
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
