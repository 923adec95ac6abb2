package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/models"
	"github.com/bobmcallan/savings/internal/services/accountlock"
)

// Ledger runs savings operations one account at a time, each inside a single
// unit of work. Events are dispatched only after the unit of work commits.
type Ledger struct {
	store    interfaces.LedgerStore
	svc      interfaces.SavingsService
	locks    *accountlock.Locker
	notifier interfaces.EventNotifier
	logger   *common.Logger
	now      func() time.Time
}

// OpenAccount stores a new, empty account.
func (l *Ledger) OpenAccount(ctx context.Context, account *models.Account) error {
	return l.locks.Do(ctx, account.ID, func(ctx context.Context) error {
		return l.store.CreateAccount(ctx, account)
	})
}

// Account loads the current state of an account.
func (l *Ledger) Account(ctx context.Context, accountID string) (*models.Account, error) {
	return l.store.LoadAccount(ctx, accountID)
}

func (l *Ledger) Deposit(ctx context.Context, accountID string, req models.TransactionRequest) (*models.Transaction, error) {
	return l.post(ctx, accountID, req, l.svc.HandleDeposit)
}

func (l *Ledger) PayDividend(ctx context.Context, accountID string, req models.TransactionRequest) (*models.Transaction, error) {
	return l.post(ctx, accountID, req, l.svc.HandleDividendPayout)
}

func (l *Ledger) Withdraw(ctx context.Context, accountID string, req models.TransactionRequest) (*models.Transaction, error) {
	return l.post(ctx, accountID, req, l.svc.HandleWithdrawal)
}

type handler func(ctx context.Context, account *models.Account, req models.TransactionRequest) (*models.TransactionResult, error)

func (l *Ledger) post(ctx context.Context, accountID string, req models.TransactionRequest, handle handler) (*models.Transaction, error) {
	var tx *models.Transaction
	err := l.withAccount(ctx, accountID, func(ctx context.Context, account *models.Account) ([]models.Event, error) {
		res, err := handle(ctx, account, req)
		if err != nil {
			return nil, err
		}
		tx = res.Transaction
		return res.Events, nil
	})
	return tx, err
}

// Reverse reverses the transactions with the given ids, in order.
func (l *Ledger) Reverse(ctx context.Context, accountID string, ids []int64, mode models.ReconciliationMode) ([]*models.Transaction, error) {
	var reversals []*models.Transaction
	err := l.withAccount(ctx, accountID, func(ctx context.Context, account *models.Account) ([]models.Event, error) {
		originals := make([]*models.Transaction, 0, len(ids))
		for _, id := range ids {
			tx, ok := account.TransactionByID(id)
			if !ok {
				return nil, &models.LedgerError{Kind: models.ErrTransactionNotFound, AccountID: accountID, TransactionID: id, Action: "reversal"}
			}
			originals = append(originals, tx)
		}
		var err error
		reversals, err = l.svc.HandleReversal(ctx, account, originals, mode)
		return nil, err
	})
	return reversals, err
}

// Undo reverses a transaction in place.
func (l *Ledger) Undo(ctx context.Context, accountID string, id int64, mode models.ReconciliationMode) (*models.Transaction, error) {
	var undone *models.Transaction
	err := l.withAccount(ctx, accountID, func(ctx context.Context, account *models.Account) ([]models.Event, error) {
		var err error
		undone, err = l.svc.UndoTransaction(ctx, account, id, mode)
		return nil, err
	})
	return undone, err
}

// PostInterest posts and corrects interest for one account.
func (l *Ledger) PostInterest(ctx context.Context, accountID string, req models.PostInterestRequest) error {
	return l.withAccount(ctx, accountID, func(ctx context.Context, account *models.Account) ([]models.Event, error) {
		return nil, l.svc.PostInterest(ctx, account, req)
	})
}

// Hold earmarks funds on an account. A lien may exceed the available balance.
func (l *Ledger) Hold(ctx context.Context, accountID string, amount decimal.Decimal, date time.Time, lienAllowed bool) (*models.OnHoldTransaction, error) {
	var hold *models.OnHoldTransaction
	err := l.withAccount(ctx, accountID, func(ctx context.Context, account *models.Account) ([]models.Event, error) {
		var err error
		hold, err = l.svc.HandleHold(ctx, account, amount, date, lienAllowed)
		return nil, err
	})
	return hold, err
}

// PostInterestAll posts interest through upTo for every account. Accounts
// that are not active are skipped; a failure on one account does not stop
// the others. It returns how many accounts were posted.
func (l *Ledger) PostInterestAll(ctx context.Context, upTo time.Time) (int, error) {
	ids, err := l.store.ListAccountIDs(ctx)
	if err != nil {
		return 0, err
	}

	posted := 0
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			return posted, ctx.Err()
		}
		err := l.withAccount(ctx, id, func(ctx context.Context, account *models.Account) ([]models.Event, error) {
			if !account.IsActive() {
				return nil, errSkipped
			}
			return nil, l.svc.PostInterest(ctx, account, models.PostInterestRequest{UpTo: upTo, PostingDate: models.DefaultPostingDate()})
		})
		switch {
		case errors.Is(err, errSkipped):
		case err != nil:
			l.logger.Warn().Err(err).Str("account", id).Msg("Interest posting failed")
			errs = append(errs, fmt.Errorf("account %s: %w", id, err))
		default:
			posted++
		}
	}
	return posted, errors.Join(errs...)
}

var errSkipped = errors.New("skipped")

// withAccount is the unit-of-work boundary for one account.
func (l *Ledger) withAccount(ctx context.Context, accountID string, fn func(ctx context.Context, account *models.Account) ([]models.Event, error)) error {
	return l.locks.Do(ctx, accountID, func(ctx context.Context) error {
		var events []models.Event
		err := l.store.Atomically(ctx, func(ctx context.Context) error {
			account, err := l.store.LoadAccount(ctx, accountID)
			if err != nil {
				return err
			}
			events, err = fn(ctx, account)
			return err
		})
		if err != nil {
			return err
		}
		l.dispatch(ctx, events)
		return nil
	})
}

func (l *Ledger) dispatch(ctx context.Context, events []models.Event) {
	if l.notifier == nil {
		return
	}
	for _, ev := range events {
		if err := l.notifier.Notify(ctx, ev); err != nil {
			l.logger.Warn().
				Err(err).
				Str("account", ev.AccountID).
				Str("event", string(ev.Type)).
				Msg("Event dispatch failed")
		}
	}
}
