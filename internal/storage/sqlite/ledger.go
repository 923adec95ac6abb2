package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/models"
	"github.com/bobmcallan/savings/internal/storage/records"
)

// LedgerStore implements interfaces.LedgerStore on SQLite.
type LedgerStore struct {
	*DB
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a ledger store on db.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{DB: db}
}

const accountColumns = `account_id, account_no, client_id, group_id, currency, status, sub_status,
	product, on_hold_funds, summary, version, created_at, updated_at`

const transactionColumns = `txn_id, account_id, type, date, amount, currency, ref_no, reversed,
	reversal_of_id, reversal_of_ref, reversal_of_type, running_balance, user_posting, charges_paid, created_at`

func (s *LedgerStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if len(account.Transactions()) > 0 {
		return &models.LedgerError{Kind: models.ErrInvalidTransaction, AccountID: account.ID, Action: "create account", Detail: "ledger must be empty"}
	}
	row, err := records.FromAccount(account)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.AccountID, row.AccountNo, row.ClientID, row.GroupID, row.Currency, row.Status, row.SubStatus,
		row.Product, row.OnHoldFunds, row.Summary, row.Version, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}
	return nil
}

func (s *LedgerStore) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT account_id FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *LedgerStore) LoadAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var row records.Account
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = ?`, accountID).
		Scan(&row.AccountID, &row.AccountNo, &row.ClientID, &row.GroupID, &row.Currency, &row.Status, &row.SubStatus,
			&row.Product, &row.OnHoldFunds, &row.Summary, &row.Version, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.LedgerError{Kind: models.ErrAccountNotFound, AccountID: accountID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ? ORDER BY txn_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var txs []records.Transaction
	for rows.Next() {
		r, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions for account %s: %w", accountID, err)
	}
	return row.ToAccount(txs)
}

// SaveAccount writes the account row and every new or changed transaction.
func (s *LedgerStore) SaveAccount(ctx context.Context, account *models.Account) error {
	return s.Atomically(ctx, func(ctx context.Context) error {
		for _, tx := range account.Transactions() {
			if !tx.NeedsWrite() {
				continue
			}
			if err := s.SaveTransaction(ctx, tx); err != nil {
				return err
			}
		}

		account.UpdatedAt = time.Now().UTC()
		row, err := records.FromAccount(account)
		if err != nil {
			return err
		}
		res, err := s.conn(ctx).ExecContext(ctx, `UPDATE accounts SET
				account_no = ?, client_id = ?, group_id = ?, currency = ?, status = ?, sub_status = ?,
				product = ?, on_hold_funds = ?, summary = ?, version = version + 1, updated_at = ?
			WHERE account_id = ?`,
			row.AccountNo, row.ClientID, row.GroupID, row.Currency, row.Status, row.SubStatus,
			row.Product, row.OnHoldFunds, row.Summary, row.UpdatedAt, row.AccountID)
		if err != nil {
			return fmt.Errorf("failed to save account %s: %w", account.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &models.LedgerError{Kind: models.ErrAccountNotFound, AccountID: account.ID, Action: "save account"}
		}
		account.Version++
		return nil
	})
}

// SaveTransaction inserts tx, assigning its id, or updates it in place.
func (s *LedgerStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	r, err := records.FromTransaction(tx)
	if err != nil {
		return err
	}

	if tx.ID == 0 {
		res, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO transactions (account_id, type, date, amount, currency,
				ref_no, reversed, reversal_of_id, reversal_of_ref, reversal_of_type, running_balance, user_posting,
				charges_paid, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.AccountID, r.Type, r.Date, r.Amount, r.Currency, r.RefNo, r.Reversed, r.ReversalOfID,
			r.ReversalOfRef, r.ReversalOfType, r.RunningBalance, r.UserPosting, r.ChargesPaid, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert %s transaction: %w", tx.Type, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read transaction id: %w", err)
		}
		tx.ID = id
		tx.MarkStored()
		return nil
	}

	// Only the mutable columns change once an entry exists.
	_, err = s.conn(ctx).ExecContext(ctx, `UPDATE transactions SET
			reversed = ?, running_balance = ?, charges_paid = ?
		WHERE txn_id = ? AND account_id = ?`,
		r.Reversed, r.RunningBalance, r.ChargesPaid, r.TxnID, r.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", tx.ID, err)
	}
	tx.MarkStored()
	return nil
}

func (s *LedgerStore) SaveTransactions(ctx context.Context, txs []*models.Transaction) error {
	return s.Atomically(ctx, func(ctx context.Context) error {
		for _, tx := range txs {
			if err := s.SaveTransaction(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LedgerStore) GetTransaction(ctx context.Context, accountID string, id int64) (*models.Transaction, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = ? AND txn_id = ?`, accountID, id)
	r, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.LedgerError{Kind: models.ErrTransactionNotFound, AccountID: accountID, TransactionID: id}
	}
	if err != nil {
		return nil, err
	}
	return r.ToTransaction()
}

func (s *LedgerStore) OnHoldTransactions(ctx context.Context, accountID string) ([]*models.OnHoldTransaction, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT hold_id, account_id, amount, date, reversed, lien, created_at
		FROM on_hold WHERE account_id = ? AND reversed = 0 ORDER BY hold_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holds for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var holds []*models.OnHoldTransaction
	for rows.Next() {
		var r records.Hold
		if err := rows.Scan(&r.HoldID, &r.AccountID, &r.Amount, &r.Date, &r.Reversed, &r.Lien, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		h, err := r.ToHold()
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (s *LedgerStore) SaveOnHold(ctx context.Context, hold *models.OnHoldTransaction) error {
	r := records.FromHold(hold)
	if hold.ID == 0 {
		res, err := s.conn(ctx).ExecContext(ctx, `INSERT INTO on_hold (account_id, amount, date, reversed, lien, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, r.AccountID, r.Amount, r.Date, r.Reversed, r.Lien, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert hold: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read hold id: %w", err)
		}
		hold.ID = id
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx, `UPDATE on_hold SET amount = ?, reversed = ? WHERE hold_id = ?`,
		r.Amount, r.Reversed, r.HoldID)
	if err != nil {
		return fmt.Errorf("failed to update hold %d: %w", hold.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (records.Transaction, error) {
	var r records.Transaction
	err := row.Scan(&r.TxnID, &r.AccountID, &r.Type, &r.Date, &r.Amount, &r.Currency, &r.RefNo, &r.Reversed,
		&r.ReversalOfID, &r.ReversalOfRef, &r.ReversalOfType, &r.RunningBalance, &r.UserPosting, &r.ChargesPaid, &r.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return r, err
}
