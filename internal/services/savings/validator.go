package savings

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/models"
)

// ValidateBalance walks the in-scope ledger and fails if the running balance,
// net of active holds dated on or before each entry, ever turns negative.
// The closing balance must also cover every active hold. skip bypasses the check.
func ValidateBalance(account *models.Account, onHold []*models.OnHoldTransaction, mode models.ReconciliationMode, action string, skip bool) error {
	if skip {
		return nil
	}
	scope := newLedgerScope(account, mode)
	allowance := overdraftAllowance(account)

	running := scope.opening()
	for _, tx := range scope.transactions() {
		if !tx.AffectsBalance() {
			continue
		}
		running = running.Add(tx.SignedAmount())
		held := heldAsOf(onHold, tx)
		if running.Sub(held).Add(allowance).IsNegative() {
			return insufficientFunds(account, tx.ID, action, running, held)
		}
	}

	held := heldAsOf(onHold, nil)
	if running.Sub(held).Add(allowance).IsNegative() {
		return insufficientFunds(account, 0, action, running, held)
	}
	return nil
}

// ValidateBalanceMinimal is the reversal-path check: the running balance alone
// must stay non-negative. amount is the reversed amount reported on failure.
func ValidateBalanceMinimal(account *models.Account, amount decimal.Decimal, mode models.ReconciliationMode, skip bool) error {
	if skip {
		return nil
	}
	scope := newLedgerScope(account, mode)
	allowance := overdraftAllowance(account)

	running := scope.opening()
	for _, tx := range scope.transactions() {
		if !tx.AffectsBalance() {
			continue
		}
		running = running.Add(tx.SignedAmount())
		if running.Add(allowance).IsNegative() {
			return &models.LedgerError{
				Kind:          models.ErrInsufficientFunds,
				AccountID:     account.ID,
				TransactionID: tx.ID,
				Action:        "reversal",
				Detail:        "reversing " + amount.StringFixed(2) + " leaves balance " + running.StringFixed(2),
			}
		}
	}
	return nil
}

// heldAsOf sums active holds dated on or before tx; a nil tx sums all of them.
func heldAsOf(onHold []*models.OnHoldTransaction, tx *models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, h := range onHold {
		if h.Reversed {
			continue
		}
		if tx != nil && h.Date.After(tx.Date) {
			continue
		}
		total = total.Add(h.Amount)
	}
	return total
}

func overdraftAllowance(account *models.Account) decimal.Decimal {
	if account.Product.AllowOverdraft {
		return account.Product.OverdraftLimit
	}
	return decimal.Zero
}

func insufficientFunds(account *models.Account, txID int64, action string, running, held decimal.Decimal) error {
	detail := "balance " + running.StringFixed(2)
	if held.IsPositive() {
		detail += " with " + held.StringFixed(2) + " on hold"
	}
	return &models.LedgerError{
		Kind:          models.ErrInsufficientFunds,
		AccountID:     account.ID,
		TransactionID: txID,
		Action:        action,
		Detail:        detail,
	}
}
