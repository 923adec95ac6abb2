package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationMode selects how much of the ledger an operation reconciles.
type ReconciliationMode int

const (
	// ModeNormal reconciles the whole ledger.
	ModeNormal ReconciliationMode = iota
	// ModeBackdated reconciles only entries dated on or after the pivot date.
	ModeBackdated
)

func (m ReconciliationMode) String() string {
	if m == ModeBackdated {
		return "backdated"
	}
	return "normal"
}

// IsBackdated is shorthand for m == ModeBackdated.
func (m ReconciliationMode) IsBackdated() bool { return m == ModeBackdated }

// PostingPeriod is an externally computed interest period.
type PostingPeriod struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	InterestEarned decimal.Decimal `json:"interest_earned"`
	PostingDate    time.Time       `json:"posting_date"`
	UserPosting    bool            `json:"user_posting"`
}

// PostingDate selects the date interest is posted on: the calculator's
// default schedule, or an explicit date.
type PostingDate struct {
	date time.Time
	set  bool
}

// DefaultPostingDate lets the calculator choose posting dates.
func DefaultPostingDate() PostingDate { return PostingDate{} }

// PostOn forces postings onto d.
func PostOn(d time.Time) PostingDate { return PostingDate{date: Day(d), set: true} }

// Date returns the explicit posting date, if one was given.
func (p PostingDate) Date() (time.Time, bool) { return p.date, p.set }

func (p PostingDate) IsDefault() bool { return !p.set }

// InterestCalculationRequest is passed to the external interest calculator.
type InterestCalculationRequest struct {
	UpTo                        time.Time
	InterestTransfer            bool
	PostAtPeriodEnd             bool
	FinancialYearBeginningMonth int
	PostingDate                 PostingDate
	Mode                        ReconciliationMode
}

// PostInterestRequest drives a full post-and-correct run.
type PostInterestRequest struct {
	UpTo             time.Time
	InterestTransfer bool
	PostingDate      PostingDate
	Mode             ReconciliationMode
}

// TransactionFlags are the behavioral switches of deposit/withdrawal.
type TransactionFlags struct {
	RegularTransaction bool // subject to product allow/deny rules
	ApplyFee           bool
	AccountTransfer    bool
	InterestTransfer   bool
	SkipBalanceCheck   bool
	Mode               ReconciliationMode
}

// TransactionRequest describes a deposit or withdrawal.
type TransactionRequest struct {
	Date   time.Time
	Amount decimal.Decimal
	Flags  TransactionFlags
}

// OnHoldTransaction earmarks funds outside the reconciled ledger.
type OnHoldTransaction struct {
	ID        int64           `json:"id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Reversed  bool            `json:"reversed"`
	Lien      bool            `json:"lien"` // may exceed the available balance
	CreatedAt time.Time       `json:"created_at"`
}
