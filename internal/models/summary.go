package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Totals aggregates live (non-reversed) entries by type.
type Totals struct {
	Deposits          decimal.Decimal `json:"total_deposits"`
	Withdrawals       decimal.Decimal `json:"total_withdrawals"`
	WithdrawalFees    decimal.Decimal `json:"total_withdrawal_fees"`
	InterestPosted    decimal.Decimal `json:"total_interest_posted"`
	OverdraftInterest decimal.Decimal `json:"total_overdraft_interest"`
	WithholdTax       decimal.Decimal `json:"total_withhold_tax"`
	Dividends         decimal.Decimal `json:"total_dividends"`
}

func (t Totals) add(tx *Transaction) Totals {
	if tx.Reversed {
		return t
	}
	switch tx.Type {
	case TxDeposit:
		t.Deposits = t.Deposits.Add(tx.Amount)
	case TxWithdrawal:
		t.Withdrawals = t.Withdrawals.Add(tx.Amount)
	case TxWithdrawalFee:
		t.WithdrawalFees = t.WithdrawalFees.Add(tx.Amount)
	case TxInterestPosting:
		t.InterestPosted = t.InterestPosted.Add(tx.Amount)
	case TxOverdraftInterest:
		t.OverdraftInterest = t.OverdraftInterest.Add(tx.Amount)
	case TxWithholdTax:
		t.WithholdTax = t.WithholdTax.Add(tx.Amount)
	case TxDividendPayout:
		t.Dividends = t.Dividends.Add(tx.Amount)
	}
	return t
}

// Equal compares totals by value.
func (t Totals) Equal(o Totals) bool {
	return t.Deposits.Equal(o.Deposits) &&
		t.Withdrawals.Equal(o.Withdrawals) &&
		t.WithdrawalFees.Equal(o.WithdrawalFees) &&
		t.InterestPosted.Equal(o.InterestPosted) &&
		t.OverdraftInterest.Equal(o.OverdraftInterest) &&
		t.WithholdTax.Equal(o.WithholdTax) &&
		t.Dividends.Equal(o.Dividends)
}

// Summary is derived account state. It is only ever produced by Summarize or
// SummarizeFrom and never updated incrementally.
type Summary struct {
	Totals
	AccountBalance              decimal.Decimal `json:"account_balance"`
	LastInterestCalculationDate time.Time       `json:"last_interest_calculation_date"`
	InterestPostedTillDate      time.Time       `json:"interest_posted_till_date"`

	// Pivot bookkeeping: everything dated before PivotDate is frozen into
	// the fields below so backdated reconciliation can start from them.
	PivotDate                 time.Time       `json:"pivot_date"`
	RunningBalanceOnPivotDate decimal.Decimal `json:"running_balance_on_pivot_date"`
	TotalsBeforePivot         Totals          `json:"totals_before_pivot"`
	PostedTillBeforePivot     time.Time       `json:"posted_till_before_pivot"`
}

// SummaryOptions parameterizes summary computation.
type SummaryOptions struct {
	CalculatedOn time.Time // becomes LastInterestCalculationDate
	RelaxDays    int       // pivot date = interest posted till date - RelaxDays
}

// Summarize computes the summary of a complete ledger.
func Summarize(txs []*Transaction, opts SummaryOptions) Summary {
	return SummarizeFrom(Summary{}, txs, opts)
}

// SummarizeFrom folds txs onto the frozen pre-pivot state of carried.
// txs must hold every entry dated on or after carried.PivotDate. With a zero
// carried summary this is identical to Summarize.
func SummarizeFrom(carried Summary, txs []*Transaction, opts SummaryOptions) Summary {
	ordered := make([]*Transaction, len(txs))
	copy(ordered, txs)
	SortTransactions(ordered)

	s := Summary{
		Totals:                      carried.TotalsBeforePivot,
		AccountBalance:              carried.RunningBalanceOnPivotDate,
		LastInterestCalculationDate: opts.CalculatedOn,
		InterestPostedTillDate:      carried.PostedTillBeforePivot,
	}
	for _, tx := range ordered {
		s.Totals = s.Totals.add(tx)
		s.AccountBalance = s.AccountBalance.Add(tx.SignedAmount())
		if tx.IsInterestPosting() && tx.Date.After(s.InterestPostedTillDate) {
			s.InterestPostedTillDate = tx.Date
		}
	}

	s.PivotDate = pivotDate(s.InterestPostedTillDate, opts.RelaxDays)
	if s.PivotDate.Before(carried.PivotDate) {
		s.PivotDate = carried.PivotDate
	}

	s.TotalsBeforePivot = carried.TotalsBeforePivot
	s.RunningBalanceOnPivotDate = carried.RunningBalanceOnPivotDate
	s.PostedTillBeforePivot = carried.PostedTillBeforePivot
	for _, tx := range ordered {
		if !tx.Date.Before(s.PivotDate) {
			break
		}
		s.TotalsBeforePivot = s.TotalsBeforePivot.add(tx)
		s.RunningBalanceOnPivotDate = s.RunningBalanceOnPivotDate.Add(tx.SignedAmount())
		if tx.IsInterestPosting() && tx.Date.After(s.PostedTillBeforePivot) {
			s.PostedTillBeforePivot = tx.Date
		}
	}
	return s
}

func pivotDate(postedTill time.Time, relaxDays int) time.Time {
	if postedTill.IsZero() {
		return time.Time{}
	}
	return postedTill.AddDate(0, 0, -relaxDays)
}
