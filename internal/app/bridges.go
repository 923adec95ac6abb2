package app

import (
	"context"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/interfaces"
	"github.com/bobmcallan/savings/internal/models"
)

// LogAccountingBridge records each journal diff as a structured log line.
type LogAccountingBridge struct {
	logger *common.Logger
}

var _ interfaces.AccountingBridge = (*LogAccountingBridge)(nil)

func NewLogAccountingBridge(logger *common.Logger) *LogAccountingBridge {
	return &LogAccountingBridge{logger: logger}
}

func (b *LogAccountingBridge) CreateJournalEntries(_ context.Context, data models.AccountingBridgeData) error {
	newIDs := make([]int64, 0, len(data.New))
	for _, tx := range data.New {
		newIDs = append(newIDs, tx.ID)
	}
	reversedIDs := make([]int64, 0, len(data.NewlyReversed))
	for _, tx := range data.NewlyReversed {
		reversedIDs = append(reversedIDs, tx.ID)
	}
	b.logger.Info().
		Str("account", data.AccountID).
		Str("currency", data.Currency).
		Ints64("new", newIDs).
		Ints64("reversed", reversedIDs).
		Bool("account_transfer", data.AccountTransfer).
		Bool("backdated", data.Backdated).
		Msg("Journal entries")
	return nil
}

// LogNotifier records domain events.
type LogNotifier struct {
	logger *common.Logger
}

var _ interfaces.EventNotifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *common.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event models.Event) error {
	ev := n.logger.Info().
		Str("event", string(event.Type)).
		Str("account", event.AccountID).
		Time("occurred_at", event.OccurredAt)
	if event.Transaction != nil {
		ev = ev.Int64("transaction", event.Transaction.ID).Str("amount", event.Transaction.Amount.String())
	}
	ev.Msg("Event")
	return nil
}

// NoInterestCalculator computes no posting periods. It stands in until a
// rate engine is injected with WithCalculator.
type NoInterestCalculator struct{}

var _ interfaces.InterestCalculator = NoInterestCalculator{}

func (NoInterestCalculator) CalculatePostingPeriods(context.Context, *models.Account, models.InterestCalculationRequest) ([]models.PostingPeriod, error) {
	return nil, nil
}
