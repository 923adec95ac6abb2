package surrealdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/models"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time {
	return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestRender(t *testing.T) {
	single, vars := render([]write{{verb: "UPSERT", row: 1}})
	assert.Equal(t, "UPSERT $rid0 CONTENT $row0;\n", single)
	assert.Len(t, vars, 2)

	multi, vars := render([]write{{verb: "CREATE"}, {verb: "UPSERT"}})
	assert.Contains(t, multi, "BEGIN TRANSACTION;")
	assert.Contains(t, multi, "CREATE $rid0 CONTENT $row0;")
	assert.Contains(t, multi, "UPSERT $rid1 CONTENT $row1;")
	assert.Contains(t, multi, "COMMIT TRANSACTION;")
	assert.Len(t, vars, 4)
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := testManager(t).store

	a := models.NewAccount("SAV-1", "AUD", models.Product{Name: "passbook", AllowDeposit: true})
	require.NoError(t, s.CreateAccount(ctx, a))
	assert.Error(t, s.CreateAccount(ctx, models.NewAccount("SAV-1", "AUD", models.Product{})))

	wd := &models.Transaction{Type: models.TxWithdrawal, Date: day(2), Amount: amt("10")}
	fee := &models.Transaction{Type: models.TxWithdrawalFee, Date: day(2), Amount: amt("1.50")}
	require.NoError(t, a.AddTransaction(&models.Transaction{Type: models.TxDeposit, Date: day(0), Amount: amt("100")}))
	require.NoError(t, a.AddTransaction(wd))
	require.NoError(t, a.AddTransaction(fee))
	a.Summary.AccountBalance = amt("88.50")

	require.NoError(t, s.Atomically(ctx, func(ctx context.Context) error {
		if err := s.SaveTransaction(ctx, wd); err != nil {
			return err
		}
		if err := s.SaveTransaction(ctx, fee); err != nil {
			return err
		}
		return s.SaveAccount(ctx, a)
	}))
	assert.Equal(t, wd.ID+1, fee.ID)

	got, err := s.LoadAccount(ctx, "SAV-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.True(t, got.Balance().Equal(amt("88.50")))
	require.Len(t, got.Transactions(), 3)

	stored, err := s.GetTransaction(ctx, "SAV-1", fee.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsWithdrawalFeeAndNotReversed())

	_, err = s.GetTransaction(ctx, "SAV-1", 999)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
	_, err = s.LoadAccount(ctx, "SAV-404")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestStore_AtomicallyDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	mgr := testManager(t)
	s := mgr.store

	a := models.NewAccount("SAV-1", "AUD", models.Product{})
	require.NoError(t, s.CreateAccount(ctx, a))

	boom := errors.New("insufficient funds")
	err := s.Atomically(ctx, func(ctx context.Context) error {
		require.NoError(t, a.AddTransaction(&models.Transaction{Type: models.TxDeposit, Date: day(0), Amount: amt("5")}))
		if err := s.SaveAccount(ctx, a); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := surreal.Query[[]map[string]any](ctx, rawDB(mgr), "SELECT * FROM ledger_txn", nil)
	require.NoError(t, err)
	assert.Empty(t, (*rows)[0].Result)
}

func TestStore_HoldsOwnersAndKV(t *testing.T) {
	ctx := context.Background()
	s := testManager(t).store

	h := &models.OnHoldTransaction{AccountID: "SAV-1", Amount: amt("25"), Date: day(3)}
	require.NoError(t, s.SaveOnHold(ctx, h))
	assert.NotZero(t, h.ID)
	holds, err := s.OnHoldTransactions(ctx, "SAV-1")
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.True(t, holds[0].Amount.Equal(amt("25")))

	active, err := s.ClientActive(ctx, "C-1")
	require.NoError(t, err)
	assert.True(t, active)
	require.NoError(t, s.SetClientActive(ctx, "C-1", false))
	active, err = s.ClientActive(ctx, "C-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, s.SetSystemKV(ctx, common.KeyReversalTransactionsAllowed, "true"))
	settings := common.NewSettings(s, common.NewDefaultConfig().Savings)
	assert.True(t, settings.ReversalTransactionsAllowed(ctx))
}
