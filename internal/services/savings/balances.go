package savings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/models"
)

// RecalculateBalances rewrites running balances for the scope selected by
// mode, starting at opening and stopping after cutoff (zero cutoff walks the
// whole scope), then replaces the account summary.
func RecalculateBalances(account *models.Account, opening decimal.Decimal, cutoff time.Time, mode models.ReconciliationMode, postReversals bool, opts models.SummaryOptions) {
	recalculate(newLedgerScope(account, mode), opening, cutoff, postReversals, opts)
}

func recalculate(scope ledgerScope, opening decimal.Decimal, cutoff time.Time, postReversals bool, opts models.SummaryOptions) {
	running := opening
	for _, tx := range scope.transactions() {
		if !cutoff.IsZero() && tx.Date.After(cutoff) {
			break
		}
		switch {
		case tx.Type == models.TxReversal:
			// Reversal records only carry a balance snapshot when they are posted.
			if postReversals {
				tx.RunningBalance = running
			}
		case tx.Reversed:
			continue
		default:
			running = running.Add(tx.SignedAmount())
			tx.RunningBalance = running
		}
	}
	scope.account.Summary = scope.summarize(opts)
}
