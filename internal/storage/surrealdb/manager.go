// Package surrealdb stores the savings ledger in SurrealDB.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db    *surrealdb.DB
	store *Store
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// SurrealDB v3 errors on querying non-existent tables
	tables := []string{tableAccount, tableTxn, tableHold, tableOwner, tableKV, tableCounter}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS txn_account ON TABLE ledger_txn FIELDS account_id, txn_id",
		"DEFINE INDEX IF NOT EXISTS txn_ref ON TABLE ledger_txn FIELDS ref_no UNIQUE",
		"DEFINE INDEX IF NOT EXISTS hold_account ON TABLE on_hold FIELDS account_id",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define index: %w", err)
		}
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB ledger store initialized")

	return &Manager{db: db, store: NewStore(db, logger)}, nil
}

func (m *Manager) LedgerStore() interfaces.LedgerStore       { return m.store }
func (m *Manager) OwnerDirectory() interfaces.OwnerDirectory { return m.store }
func (m *Manager) SystemKVStore() interfaces.SystemKVStore   { return m.store }
func (m *Manager) Backend() string                           { return "surrealdb" }

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
