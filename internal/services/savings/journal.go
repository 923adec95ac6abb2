package savings

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/savings/internal/models"
)

// bridgeData derives the accounting diff between snapshot and the scope.
func bridgeData(scope ledgerScope, snapshot models.IDSnapshot, accountTransfer bool) models.AccountingBridgeData {
	existing := make(map[int64]bool, len(snapshot.Existing))
	for _, id := range snapshot.Existing {
		existing[id] = true
	}
	reversed := make(map[int64]bool, len(snapshot.Reversed))
	for _, id := range snapshot.Reversed {
		reversed[id] = true
	}

	data := models.AccountingBridgeData{
		AccountID:       scope.account.ID,
		Currency:        scope.account.Currency,
		ExistingIDs:     snapshot.Existing,
		ReversedIDs:     snapshot.Reversed,
		AccountTransfer: accountTransfer,
		Backdated:       scope.mode.IsBackdated(),
	}
	for _, tx := range scope.transactions() {
		if tx.ID == 0 {
			continue
		}
		switch {
		case !existing[tx.ID]:
			data.New = append(data.New, tx)
		case tx.Reversed && !reversed[tx.ID]:
			data.NewlyReversed = append(data.NewlyReversed, tx)
		}
	}
	return data
}

func (s *Service) postJournalEntries(ctx context.Context, scope ledgerScope, snapshot models.IDSnapshot, accountTransfer bool) error {
	if s.bridge == nil {
		return nil
	}
	if err := s.bridge.CreateJournalEntries(ctx, bridgeData(scope, snapshot, accountTransfer)); err != nil {
		return fmt.Errorf("failed to create journal entries for account %s: %w", scope.account.ID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrTransactionNotFound) || errors.Is(err, models.ErrAccountNotFound)
}
