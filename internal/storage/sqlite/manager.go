package sqlite

import (
	"context"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SQLite.
type Manager struct {
	db     *DB
	ledger *LedgerStore
	owners *OwnerStore
	kv     *KVStore
}

// NewManager opens the database at config.Storage.Path.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	db, err := Open(ctx, config.Storage.Path, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:     db,
		ledger: NewLedgerStore(db),
		owners: NewOwnerStore(db),
		kv:     NewKVStore(db),
	}, nil
}

func (m *Manager) LedgerStore() interfaces.LedgerStore       { return m.ledger }
func (m *Manager) OwnerDirectory() interfaces.OwnerDirectory { return m.owners }
func (m *Manager) SystemKVStore() interfaces.SystemKVStore   { return m.kv }
func (m *Manager) Backend() string                           { return "sqlite" }

func (m *Manager) Close() error {
	return m.db.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
