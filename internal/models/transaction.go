package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType categorizes a savings ledger entry.
type TransactionType string

const (
	TxDeposit           TransactionType = "deposit"
	TxWithdrawal        TransactionType = "withdrawal"
	TxInterestPosting   TransactionType = "interest_posting"
	TxOverdraftInterest TransactionType = "overdraft_interest"
	TxAccrual           TransactionType = "accrual"
	TxWithholdTax       TransactionType = "withhold_tax"
	TxDividendPayout    TransactionType = "dividend_payout"
	TxWithdrawalFee     TransactionType = "withdrawal_fee"
	TxReversal          TransactionType = "reversal"
)

var validTransactionTypes = map[TransactionType]bool{
	TxDeposit:           true,
	TxWithdrawal:        true,
	TxInterestPosting:   true,
	TxOverdraftInterest: true,
	TxAccrual:           true,
	TxWithholdTax:       true,
	TxDividendPayout:    true,
	TxWithdrawalFee:     true,
	TxReversal:          true,
}

// ValidTransactionType returns true if t is a known transaction type.
func ValidTransactionType(t TransactionType) bool {
	return validTransactionTypes[t]
}

// IsCredit returns true for types that increase the balance.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TxDeposit, TxDividendPayout, TxInterestPosting:
		return true
	default:
		return false
	}
}

// IsDebit returns true for types that decrease the balance.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TxWithdrawal, TxWithdrawalFee, TxOverdraftInterest, TxWithholdTax:
		return true
	default:
		return false
	}
}

// IsInterestPosting covers both positive postings and overdraft interest.
func (t TransactionType) IsInterestPosting() bool {
	return t == TxInterestPosting || t == TxOverdraftInterest
}

// ChargePaid records a charge settled by a transaction.
type ChargePaid struct {
	ChargeID int64           `json:"charge_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// Transaction is a single savings ledger entry.
// Amount holds the magnitude for regular entries; reversal records carry the
// negated amount of the transaction they reverse.
type Transaction struct {
	ID             int64           `json:"id"`
	AccountID      string          `json:"account_id"`
	Type           TransactionType `json:"type"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	RefNo          string          `json:"ref_no"`
	Reversed       bool            `json:"reversed"`
	ReversalOfID   int64           `json:"reversal_of_id,omitempty"`
	ReversalOfRef  string          `json:"reversal_of_ref,omitempty"`
	ReversalOfType TransactionType `json:"reversal_of_type,omitempty"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	UserPosting    bool            `json:"user_posting,omitempty"`
	ChargesPaid    []ChargePaid    `json:"charges_paid,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	seq    int64
	stored *storedState
}

// storedState is the mutable part of a transaction as last written.
type storedState struct {
	reversed       bool
	runningBalance decimal.Decimal
	chargesPaid    []ChargePaid
}

// MarkStored records the current mutable state as persisted.
func (t *Transaction) MarkStored() {
	t.stored = &storedState{
		reversed:       t.Reversed,
		runningBalance: t.RunningBalance,
		chargesPaid:    append([]ChargePaid(nil), t.ChargesPaid...),
	}
}

// NeedsWrite reports whether the entry is new or differs from its stored row.
func (t *Transaction) NeedsWrite() bool {
	if t.ID == 0 || t.stored == nil {
		return true
	}
	if t.Reversed != t.stored.reversed || !t.RunningBalance.Equal(t.stored.runningBalance) {
		return true
	}
	if len(t.ChargesPaid) != len(t.stored.chargesPaid) {
		return true
	}
	for i, c := range t.ChargesPaid {
		if c.ChargeID != t.stored.chargesPaid[i].ChargeID || !c.Amount.Equal(t.stored.chargesPaid[i].Amount) {
			return true
		}
	}
	return false
}

// AffectsBalance reports whether the entry currently moves the balance.
// Reversed entries, accrual memos and reversal records do not.
func (t *Transaction) AffectsBalance() bool {
	if t.Reversed {
		return false
	}
	return t.Type.IsCredit() || t.Type.IsDebit()
}

// SignedAmount is the balance movement of the entry: positive for credits,
// negative for debits and zero for entries that do not affect the balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if !t.AffectsBalance() {
		return decimal.Zero
	}
	if t.Type.IsDebit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsInterestPosting returns true for a live interest or overdraft-interest posting.
func (t *Transaction) IsInterestPosting() bool {
	return !t.Reversed && t.Type.IsInterestPosting()
}

// IsWithdrawalFeeAndNotReversed identifies a live fee entry.
func (t *Transaction) IsWithdrawalFeeAndNotReversed() bool {
	return t.Type == TxWithdrawalFee && !t.Reversed
}

// RequiresInterestRecalculation reports whether reversing this entry changes
// the balances the interest engine posted against.
func (t *Transaction) RequiresInterestRecalculation() bool {
	switch t.Type {
	case TxDeposit, TxWithdrawal, TxWithdrawalFee, TxDividendPayout, TxInterestPosting, TxOverdraftInterest, TxWithholdTax:
		return true
	default:
		return false
	}
}

// HasNotAmount compares a stored posting with a freshly computed earned amount.
// Overdraft interest is stored as a magnitude, so it is compared against the
// negated earned amount.
func (t *Transaction) HasNotAmount(earned decimal.Decimal) bool {
	if t.Type == TxOverdraftInterest {
		return !t.Amount.Equal(earned.Neg())
	}
	return !t.Amount.Equal(earned)
}

// Clone returns a copy that shares no mutable state with t.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.ChargesPaid != nil {
		c.ChargesPaid = append([]ChargePaid(nil), t.ChargesPaid...)
	}
	return &c
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
