package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a savings account.
type AccountStatus string

const (
	StatusSubmitted AccountStatus = "submitted"
	StatusActive    AccountStatus = "active"
	StatusClosed    AccountStatus = "closed"
)

// SubStatus carries operational blocks independent of the lifecycle state.
type SubStatus string

const (
	SubStatusNone        SubStatus = ""
	SubStatusBlock       SubStatus = "block"
	SubStatusBlockDebit  SubStatus = "block_debit"
	SubStatusBlockCredit SubStatus = "block_credit"
)

// Product holds the deposit-product rules an account was opened under.
type Product struct {
	Name              string          `json:"name"`
	AllowDeposit      bool            `json:"allow_deposit"`
	AllowWithdrawal   bool            `json:"allow_withdrawal"`
	AllowModify       bool            `json:"allow_modify"`
	AccrualAccounting bool            `json:"accrual_accounting"`
	WithholdTaxRate   decimal.Decimal `json:"withhold_tax_rate"` // percent of posted interest
	WithdrawalFee     decimal.Decimal `json:"withdrawal_fee"`
	AllowOverdraft    bool            `json:"allow_overdraft"`
	OverdraftLimit    decimal.Decimal `json:"overdraft_limit"`
}

// WithholdsTax reports whether postings attract withholding tax.
func (p Product) WithholdsTax() bool {
	return p.WithholdTaxRate.IsPositive()
}

// Account is the savings aggregate. It owns its transactions exclusively;
// other entries reference each other by ID or RefNo only.
type Account struct {
	ID          string          `json:"id"`
	AccountNo   string          `json:"account_no"`
	ClientID    string          `json:"client_id,omitempty"`
	GroupID     string          `json:"group_id,omitempty"`
	Currency    string          `json:"currency"`
	Status      AccountStatus   `json:"status"`
	SubStatus   SubStatus       `json:"sub_status,omitempty"`
	Product     Product         `json:"product"`
	OnHoldFunds decimal.Decimal `json:"on_hold_funds"`
	Summary     Summary         `json:"summary"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	transactions []*Transaction
	byRef        map[string]*Transaction
	nextSeq      int64
}

// NewAccount creates an active account with an empty ledger.
func NewAccount(id, currency string, product Product) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		AccountNo: id,
		Currency:  currency,
		Status:    StatusActive,
		Product:   product,
		CreatedAt: now,
		UpdatedAt: now,
		byRef:     make(map[string]*Transaction),
	}
}

func (a *Account) IsActive() bool { return a.Status == StatusActive }

// IsBlocked reports a full block on the account.
func (a *Account) IsBlocked() bool { return a.SubStatus == SubStatusBlock }

func (a *Account) IsCreditBlocked() bool { return a.SubStatus == SubStatusBlockCredit }

func (a *Account) IsDebitBlocked() bool { return a.SubStatus == SubStatusBlockDebit }

// Balance returns the summarized account balance.
func (a *Account) Balance() decimal.Decimal { return a.Summary.AccountBalance }

// AddTransaction attaches tx to the ledger. A transaction owned by another
// account is rejected; a transaction without a RefNo receives one.
func (a *Account) AddTransaction(tx *Transaction) error {
	if tx == nil {
		return &LedgerError{Kind: ErrInvalidTransaction, AccountID: a.ID, Detail: "nil transaction"}
	}
	if tx.AccountID != "" && tx.AccountID != a.ID {
		return &LedgerError{
			Kind:          ErrInvalidTransaction,
			AccountID:     a.ID,
			TransactionID: tx.ID,
			Detail:        "transaction belongs to account " + tx.AccountID,
		}
	}
	if a.byRef == nil {
		a.byRef = make(map[string]*Transaction)
	}
	if tx.RefNo == "" {
		tx.RefNo = uuid.NewString()
	}
	if _, dup := a.byRef[tx.RefNo]; dup {
		return &LedgerError{Kind: ErrInvalidTransaction, AccountID: a.ID, Detail: "duplicate reference " + tx.RefNo}
	}
	tx.AccountID = a.ID
	tx.Date = Day(tx.Date)
	if tx.Currency == "" {
		tx.Currency = a.Currency
	}
	a.nextSeq++
	tx.seq = a.nextSeq
	a.transactions = append(a.transactions, tx)
	a.byRef[tx.RefNo] = tx
	return nil
}

// Transactions returns the ledger ordered by date, then insertion.
func (a *Account) Transactions() []*Transaction {
	out := make([]*Transaction, len(a.transactions))
	copy(out, a.transactions)
	SortTransactions(out)
	return out
}

// TransactionByRef resolves a transaction by its reference number.
func (a *Account) TransactionByRef(ref string) (*Transaction, bool) {
	tx, ok := a.byRef[ref]
	return tx, ok
}

// TransactionByID resolves a persisted transaction by its identifier.
func (a *Account) TransactionByID(id int64) (*Transaction, bool) {
	if id == 0 {
		return nil, false
	}
	for _, tx := range a.transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return nil, false
}

// Reverse marks tx reversed and builds its reversal record. The record is
// not attached to the ledger; callers decide whether to post it.
func (a *Account) Reverse(tx *Transaction) (*Transaction, error) {
	owned, ok := a.byRef[tx.RefNo]
	if !ok || owned != tx {
		return nil, &LedgerError{Kind: ErrTransactionNotFound, AccountID: a.ID, TransactionID: tx.ID, Action: "reverse"}
	}
	if tx.Type == TxReversal {
		return nil, &LedgerError{Kind: ErrInvalidTransaction, AccountID: a.ID, TransactionID: tx.ID, Action: "reverse", Detail: "reversal records cannot be reversed"}
	}
	if tx.Reversed {
		return nil, &LedgerError{Kind: ErrAlreadyReversed, AccountID: a.ID, TransactionID: tx.ID, Action: "reverse"}
	}
	tx.Reversed = true

	return &Transaction{
		AccountID:      a.ID,
		Type:           TxReversal,
		Date:           tx.Date,
		Amount:         tx.Amount.Neg(),
		Currency:       tx.Currency,
		RefNo:          uuid.NewString(),
		ReversalOfID:   tx.ID,
		ReversalOfRef:  tx.RefNo,
		ReversalOfType: tx.Type,
		ChargesPaid:    append([]ChargePaid(nil), tx.ChargesPaid...),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// ActivateBasedOnBalance reopens a closed account that holds funds again.
func (a *Account) ActivateBasedOnBalance() bool {
	if a.Status == StatusClosed && !a.Balance().IsZero() {
		a.Status = StatusActive
		return true
	}
	return false
}

// SortTransactions orders entries by date, then by insertion order.
func SortTransactions(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].seq < txs[j].seq
	})
}
