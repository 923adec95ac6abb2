package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/models"
	"github.com/bobmcallan/savings/internal/storage/records"
)

const (
	tableAccount = "account"
	tableTxn     = "ledger_txn"
	tableHold    = "on_hold"
	tableOwner   = "owner"
	tableKV      = "system_kv"
	tableCounter = "counter"
)

// Store implements the ledger, owner and system KV stores on SurrealDB.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var (
	_ interfaces.LedgerStore    = (*Store)(nil)
	_ interfaces.OwnerDirectory = (*Store)(nil)
	_ interfaces.SystemKVStore  = (*Store)(nil)
)

func NewStore(db *surrealdb.DB, logger *common.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Transaction ids are allocated per account, so ledger_txn records are keyed
// by account and id.
func txnRecordID(accountID string, id int64) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableTxn, fmt.Sprintf("%s_%d", accountID, id))
}

type counterRow struct {
	Value int64 `json:"value"`
}

// nextID reserves the next value of a named sequence. Reservations are not
// part of the unit of work, so a discarded batch leaves a gap.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	sql := "UPSERT $rid SET value = (value ?? 0) + 1 RETURN AFTER"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableCounter, name)}

	results, err := surrealdb.Query[[]counterRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, fmt.Errorf("sequence %s returned no value", name)
	}
	return (*results)[0].Result[0].Value, nil
}

func (s *Store) accountExists(ctx context.Context, accountID string) (bool, error) {
	row, err := surrealdb.Select[records.Account](ctx, s.db, surrealmodels.NewRecordID(tableAccount, accountID))
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to select account %s: %w", accountID, err)
	}
	return row != nil, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	if len(account.Transactions()) > 0 {
		return &models.LedgerError{Kind: models.ErrInvalidTransaction, AccountID: account.ID, Action: "create account", Detail: "ledger must be empty"}
	}
	exists, err := s.accountExists(ctx, account.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	row, err := records.FromAccount(account)
	if err != nil {
		return err
	}
	return s.apply(ctx, write{verb: "CREATE", rid: surrealmodels.NewRecordID(tableAccount, account.ID), row: row})
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	type idRow struct {
		AccountID string `json:"account_id"`
	}
	results, err := surrealdb.Query[[]idRow](ctx, s.db, "SELECT account_id FROM account ORDER BY account_id", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	var ids []string
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			ids = append(ids, r.AccountID)
		}
	}
	return ids, nil
}

func (s *Store) LoadAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row, err := surrealdb.Select[records.Account](ctx, s.db, surrealmodels.NewRecordID(tableAccount, accountID))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to select account %s: %w", accountID, err)
	}
	if row == nil {
		return nil, &models.LedgerError{Kind: models.ErrAccountNotFound, AccountID: accountID}
	}

	sql := "SELECT * FROM ledger_txn WHERE account_id = $account ORDER BY txn_id"
	results, err := surrealdb.Query[[]records.Transaction](ctx, s.db, sql, map[string]any{"account": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for account %s: %w", accountID, err)
	}
	var txs []records.Transaction
	if results != nil && len(*results) > 0 {
		txs = (*results)[0].Result
	}
	return row.ToAccount(txs)
}

// SaveAccount stages the account and every new or changed transaction.
func (s *Store) SaveAccount(ctx context.Context, account *models.Account) error {
	exists, err := s.accountExists(ctx, account.ID)
	if err != nil {
		return err
	}
	if !exists {
		return &models.LedgerError{Kind: models.ErrAccountNotFound, AccountID: account.ID, Action: "save account"}
	}

	return s.Atomically(ctx, func(ctx context.Context) error {
		for _, tx := range account.Transactions() {
			if !tx.NeedsWrite() {
				continue
			}
			if err := s.SaveTransaction(ctx, tx); err != nil {
				return err
			}
		}
		row, err := records.FromAccount(account)
		if err != nil {
			return err
		}
		row.Version = account.Version + 1
		if err := s.apply(ctx, write{verb: "UPSERT", rid: surrealmodels.NewRecordID(tableAccount, account.ID), row: row}); err != nil {
			return err
		}
		account.Version++
		return nil
	})
}

func (s *Store) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == 0 {
		id, err := s.nextID(ctx, tableTxn+"_"+tx.AccountID)
		if err != nil {
			return err
		}
		tx.ID = id
	}
	row, err := records.FromTransaction(tx)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, write{verb: "UPSERT", rid: txnRecordID(tx.AccountID, tx.ID), row: row}); err != nil {
		return err
	}
	tx.MarkStored()
	return nil
}

func (s *Store) SaveTransactions(ctx context.Context, txs []*models.Transaction) error {
	return s.Atomically(ctx, func(ctx context.Context) error {
		for _, tx := range txs {
			if err := s.SaveTransaction(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetTransaction(ctx context.Context, accountID string, id int64) (*models.Transaction, error) {
	row, err := surrealdb.Select[records.Transaction](ctx, s.db, txnRecordID(accountID, id))
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to select transaction %d: %w", id, err)
	}
	if row == nil {
		return nil, &models.LedgerError{Kind: models.ErrTransactionNotFound, AccountID: accountID, TransactionID: id}
	}
	return row.ToTransaction()
}

func (s *Store) OnHoldTransactions(ctx context.Context, accountID string) ([]*models.OnHoldTransaction, error) {
	sql := "SELECT * FROM on_hold WHERE account_id = $account AND reversed = false ORDER BY hold_id"
	results, err := surrealdb.Query[[]records.Hold](ctx, s.db, sql, map[string]any{"account": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to load holds for account %s: %w", accountID, err)
	}
	var holds []*models.OnHoldTransaction
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			h, err := r.ToHold()
			if err != nil {
				return nil, err
			}
			holds = append(holds, h)
		}
	}
	return holds, nil
}

func (s *Store) SaveOnHold(ctx context.Context, hold *models.OnHoldTransaction) error {
	if hold.ID == 0 {
		id, err := s.nextID(ctx, tableHold)
		if err != nil {
			return err
		}
		hold.ID = id
	}
	rid := surrealmodels.NewRecordID(tableHold, fmt.Sprintf("%d", hold.ID))
	return s.apply(ctx, write{verb: "UPSERT", rid: rid, row: records.FromHold(hold)})
}
