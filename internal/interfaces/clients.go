package interfaces

import (
	"context"

	"github.com/bobmcallan/savings/internal/models"
)

// ConfigProvider exposes the ledger-wide posting settings.
type ConfigProvider interface {
	InterestPostingAtPeriodEnd(ctx context.Context) bool
	ReversalTransactionsAllowed(ctx context.Context) bool
	FinancialYearBeginningMonth(ctx context.Context) int
	PivotDateRelaxingDays(ctx context.Context) int
}

// AccountingBridge turns a ledger diff into journal entries.
type AccountingBridge interface {
	CreateJournalEntries(ctx context.Context, data models.AccountingBridgeData) error
}

// EventNotifier delivers domain events after commit.
type EventNotifier interface {
	Notify(ctx context.Context, event models.Event) error
}

// InterestCalculator computes posting periods from daily balances.
type InterestCalculator interface {
	CalculatePostingPeriods(ctx context.Context, account *models.Account, req models.InterestCalculationRequest) ([]models.PostingPeriod, error)
}
