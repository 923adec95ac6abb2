package models

import (
	"testing"
)

func ledger(t *testing.T, txs ...*Transaction) *Account {
	t.Helper()
	a := NewAccount("SAV-1", "AUD", Product{})
	for _, tx := range txs {
		if err := a.AddTransaction(tx); err != nil {
			t.Fatal(err)
		}
	}
	return a
}

func TestSummarize_TotalsAndBalance(t *testing.T) {
	reversed := &Transaction{Type: TxDeposit, Date: day(3), Amount: amt("999"), Reversed: true}
	a := ledger(t,
		&Transaction{Type: TxDeposit, Date: day(0), Amount: amt("100")},
		&Transaction{Type: TxWithdrawal, Date: day(2), Amount: amt("30")},
		&Transaction{Type: TxWithdrawalFee, Date: day(2), Amount: amt("1")},
		&Transaction{Type: TxInterestPosting, Date: day(30), Amount: amt("2.50")},
		&Transaction{Type: TxAccrual, Date: day(30), Amount: amt("2.50")},
		&Transaction{Type: TxWithholdTax, Date: day(30), Amount: amt("0.25")},
		&Transaction{Type: TxDividendPayout, Date: day(31), Amount: amt("5")},
		reversed,
		&Transaction{Type: TxReversal, Date: day(3), Amount: amt("-999")},
	)

	s := Summarize(a.Transactions(), SummaryOptions{CalculatedOn: day(31)})

	if !s.Deposits.Equal(amt("100")) {
		t.Errorf("Deposits = %s", s.Deposits)
	}
	if !s.Withdrawals.Equal(amt("30")) || !s.WithdrawalFees.Equal(amt("1")) {
		t.Errorf("Withdrawals = %s, fees = %s", s.Withdrawals, s.WithdrawalFees)
	}
	if !s.InterestPosted.Equal(amt("2.5")) || !s.WithholdTax.Equal(amt("0.25")) || !s.Dividends.Equal(amt("5")) {
		t.Errorf("interest = %s, tax = %s, dividends = %s", s.InterestPosted, s.WithholdTax, s.Dividends)
	}
	// 100 - 30 - 1 + 2.50 - 0.25 + 5
	if !s.AccountBalance.Equal(amt("76.25")) {
		t.Errorf("AccountBalance = %s, want 76.25", s.AccountBalance)
	}
	if !s.InterestPostedTillDate.Equal(day(30)) || !s.PivotDate.Equal(day(30)) {
		t.Errorf("posted till = %v, pivot = %v", s.InterestPostedTillDate, s.PivotDate)
	}
	if !s.LastInterestCalculationDate.Equal(day(31)) {
		t.Errorf("LastInterestCalculationDate = %v", s.LastInterestCalculationDate)
	}
	// everything before day 30: 100 - 30 - 1
	if !s.RunningBalanceOnPivotDate.Equal(amt("69")) {
		t.Errorf("RunningBalanceOnPivotDate = %s, want 69", s.RunningBalanceOnPivotDate)
	}
}

func TestSummarize_RelaxDaysMovesPivot(t *testing.T) {
	a := ledger(t,
		&Transaction{Type: TxDeposit, Date: day(0), Amount: amt("100")},
		&Transaction{Type: TxInterestPosting, Date: day(30), Amount: amt("1")},
	)
	s := Summarize(a.Transactions(), SummaryOptions{RelaxDays: 5})
	if !s.PivotDate.Equal(day(25)) {
		t.Errorf("PivotDate = %v, want day 25", s.PivotDate)
	}
}

func TestSummarizeFrom_MatchesFullSummary(t *testing.T) {
	a := ledger(t,
		&Transaction{Type: TxDeposit, Date: day(0), Amount: amt("100")},
		&Transaction{Type: TxInterestPosting, Date: day(30), Amount: amt("1.25")},
		&Transaction{Type: TxDeposit, Date: day(35), Amount: amt("40")},
		&Transaction{Type: TxWithdrawal, Date: day(40), Amount: amt("15")},
		&Transaction{Type: TxInterestPosting, Date: day(59), Amount: amt("0.80")},
		&Transaction{Type: TxDeposit, Date: day(61), Amount: amt("3")},
	)
	all := a.Transactions()
	opts := SummaryOptions{CalculatedOn: day(61), RelaxDays: 2}

	// Carried state as it stood after the first posting.
	carried := Summarize(all[:2], opts)

	var subset []*Transaction
	for _, tx := range all {
		if !tx.Date.Before(carried.PivotDate) {
			subset = append(subset, tx)
		}
	}

	full := Summarize(all, opts)
	scoped := SummarizeFrom(carried, subset, opts)

	if !full.Totals.Equal(scoped.Totals) {
		t.Errorf("totals differ: full %+v scoped %+v", full.Totals, scoped.Totals)
	}
	if !full.AccountBalance.Equal(scoped.AccountBalance) {
		t.Errorf("balance differs: %s vs %s", full.AccountBalance, scoped.AccountBalance)
	}
	if !full.PivotDate.Equal(scoped.PivotDate) || !full.RunningBalanceOnPivotDate.Equal(scoped.RunningBalanceOnPivotDate) {
		t.Errorf("pivot differs: %v/%s vs %v/%s", full.PivotDate, full.RunningBalanceOnPivotDate,
			scoped.PivotDate, scoped.RunningBalanceOnPivotDate)
	}
}
