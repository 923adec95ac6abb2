// Package interfaces defines service contracts for the savings ledger
package interfaces

import (
	"context"

	"github.com/bobmcallan/savings/internal/models"
)

// StorageManager coordinates the storage backend
type StorageManager interface {
	LedgerStore() LedgerStore
	OwnerDirectory() OwnerDirectory
	SystemKVStore() SystemKVStore

	// Backend names the active backend ("sqlite" or "surrealdb").
	Backend() string

	Close() error
}

// LedgerStore persists accounts, their transactions and on-hold records.
type LedgerStore interface {
	// CreateAccount inserts a new account row. The ledger must be empty.
	CreateAccount(ctx context.Context, account *models.Account) error

	// ListAccountIDs returns every account id in ascending order.
	ListAccountIDs(ctx context.Context) ([]string, error)

	// LoadAccount returns the account with its full ledger attached.
	LoadAccount(ctx context.Context, accountID string) (*models.Account, error)

	// SaveAccount persists account state, bumps Version and assigns ids to
	// any unsaved transactions.
	SaveAccount(ctx context.Context, account *models.Account) error

	// SaveTransaction persists one transaction, assigning tx.ID when zero.
	SaveTransaction(ctx context.Context, tx *models.Transaction) error

	// SaveTransactions bulk-persists a set of transactions.
	SaveTransactions(ctx context.Context, txs []*models.Transaction) error

	// GetTransaction looks up a transaction by account and id.
	GetTransaction(ctx context.Context, accountID string, id int64) (*models.Transaction, error)

	// OnHoldTransactions returns active holds ordered by creation.
	OnHoldTransactions(ctx context.Context, accountID string) ([]*models.OnHoldTransaction, error)

	// SaveOnHold persists a hold, assigning hold.ID when zero.
	SaveOnHold(ctx context.Context, hold *models.OnHoldTransaction) error

	// Atomically runs fn as one unit of work. Writes made through the
	// context passed to fn are discarded if fn returns an error.
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}

// OwnerDirectory resolves whether an account's owners may transact.
type OwnerDirectory interface {
	ClientActive(ctx context.Context, clientID string) (bool, error)
	GroupActive(ctx context.Context, groupID string) (bool, error)
	SetClientActive(ctx context.Context, clientID string, active bool) error
	SetGroupActive(ctx context.Context, groupID string, active bool) error
}

// SystemKVStore holds runtime overrides for ledger settings.
type SystemKVStore interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
}
