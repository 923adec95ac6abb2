package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/models"
)

// SavingsService posts and reconciles savings ledger transactions.
// Operations mutate the account in memory and persist through the
// LedgerStore; callers wrap them in LedgerStore.Atomically and dispatch
// returned events only after commit.
type SavingsService interface {
	HandleDeposit(ctx context.Context, account *models.Account, req models.TransactionRequest) (*models.TransactionResult, error)
	HandleWithdrawal(ctx context.Context, account *models.Account, req models.TransactionRequest) (*models.TransactionResult, error)
	HandleDividendPayout(ctx context.Context, account *models.Account, req models.TransactionRequest) (*models.TransactionResult, error)

	// HandleReversal reverses every original and returns one reversal per original.
	HandleReversal(ctx context.Context, account *models.Account, originals []*models.Transaction, mode models.ReconciliationMode) ([]*models.Transaction, error)

	UndoTransaction(ctx context.Context, account *models.Account, transactionID int64, mode models.ReconciliationMode) (*models.Transaction, error)
	PostInterest(ctx context.Context, account *models.Account, req models.PostInterestRequest) error
	// HandleHold earmarks funds. Unless lienAllowed, the hold must fit the
	// available balance.
	HandleHold(ctx context.Context, account *models.Account, amount decimal.Decimal, date time.Time, lienAllowed bool) (*models.OnHoldTransaction, error)
	CheckOwnerActive(ctx context.Context, account *models.Account) error
	PostJournalEntries(ctx context.Context, account *models.Account, snapshot models.IDSnapshot, mode models.ReconciliationMode) error
}
