// Package storage selects the ledger storage backend.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/storage/sqlite"
	"github.com/bobmcallan/savings/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendSQLite    = "sqlite"
	BackendSurrealDB = "surrealdb"
)

// NewStorageManager creates a storage manager based on the configuration.
// Supported backends: "sqlite" (default), "surrealdb".
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend := config.Storage.Backend
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendSQLite:
		return sqlite.NewManager(ctx, logger, config)

	case BackendSurrealDB:
		return surrealdb.NewManager(ctx, logger, config)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, surrealdb)", backend)
	}
}
