package savings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/models"
)

// ledgerScope fixes, once per call, which part of the ledger an operation
// reconciles. Normal mode covers the whole ledger; backdated mode covers
// entries dated on or after the pivot date.
type ledgerScope struct {
	account *models.Account
	mode    models.ReconciliationMode
	pivot   time.Time // zero means the whole ledger
	carried models.Summary
}

func newLedgerScope(account *models.Account, mode models.ReconciliationMode) ledgerScope {
	s := ledgerScope{account: account, mode: mode}
	// Without a prior calculation there is no frozen prefix to start from.
	if mode.IsBackdated() && !account.Summary.LastInterestCalculationDate.IsZero() {
		s.pivot = account.Summary.PivotDate
		if !s.pivot.IsZero() {
			s.carried = account.Summary
		}
	}
	return s
}

// transactions returns the in-scope entries in timeline order, including
// entries appended since the scope was opened.
func (s ledgerScope) transactions() []*models.Transaction {
	all := s.account.Transactions()
	if s.pivot.IsZero() {
		return all
	}
	out := all[:0:0]
	for _, tx := range all {
		if !tx.Date.Before(s.pivot) {
			out = append(out, tx)
		}
	}
	return out
}

// opening is the balance the in-scope walk starts from.
func (s ledgerScope) opening() decimal.Decimal {
	if s.pivot.IsZero() {
		return decimal.Zero
	}
	return s.carried.RunningBalanceOnPivotDate
}

// findPosting returns the live interest or overdraft posting dated on date.
func (s ledgerScope) findPosting(date time.Time) *models.Transaction {
	for _, tx := range s.transactions() {
		if tx.IsInterestPosting() && tx.Date.Equal(date) {
			return tx
		}
	}
	return nil
}

// withholdingOn returns the live withholding entry dated on date.
func (s ledgerScope) withholdingOn(date time.Time) *models.Transaction {
	for _, tx := range s.transactions() {
		if tx.Type == models.TxWithholdTax && !tx.Reversed && tx.Date.Equal(date) {
			return tx
		}
	}
	return nil
}

// lastPostingDate is the date of the latest live posting visible to the scope.
func (s ledgerScope) lastPostingDate() time.Time {
	last := s.carried.PostedTillBeforePivot
	for _, tx := range s.transactions() {
		if tx.IsInterestPosting() && tx.Date.After(last) {
			last = tx.Date
		}
	}
	return last
}

// isBeforeLastPosting reports whether date falls strictly before the last
// interest posting, meaning postings after it may be stale.
func (s ledgerScope) isBeforeLastPosting(date time.Time) bool {
	last := s.lastPostingDate()
	return !last.IsZero() && date.Before(last)
}

// summarize recomputes the account summary for this scope.
func (s ledgerScope) summarize(opts models.SummaryOptions) models.Summary {
	if s.pivot.IsZero() {
		return models.Summarize(s.account.Transactions(), opts)
	}
	return models.SummarizeFrom(s.carried, s.transactions(), opts)
}

// snapshotIDs records persisted ids in scope for the accounting diff.
func snapshotIDs(s ledgerScope) models.IDSnapshot {
	var snap models.IDSnapshot
	for _, tx := range s.transactions() {
		if tx.ID == 0 {
			continue
		}
		snap.Existing = append(snap.Existing, tx.ID)
		if tx.Reversed {
			snap.Reversed = append(snap.Reversed, tx.ID)
		}
	}
	return snap
}

// ValidatePivotDate rejects, in backdated mode, a date before the pivot date.
func ValidatePivotDate(account *models.Account, date time.Time, mode models.ReconciliationMode) error {
	scope := newLedgerScope(account, mode)
	if scope.pivot.IsZero() || !date.Before(scope.pivot) {
		return nil
	}
	return &models.LedgerError{
		Kind:      models.ErrBeforePivotDate,
		AccountID: account.ID,
		Detail:    "date " + date.Format("2006-01-02") + " is before pivot " + scope.pivot.Format("2006-01-02"),
	}
}
