// Package records flattens ledger models into backend-neutral rows. Money is
// carried as decimal strings and dates as ISO strings so neither backend has
// to round-trip floats or time zones.
package records

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/savings/internal/models"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = time.RFC3339Nano
)

// Account is the stored form of an account without its ledger.
type Account struct {
	AccountID   string `json:"account_id"`
	AccountNo   string `json:"account_no"`
	ClientID    string `json:"client_id"`
	GroupID     string `json:"group_id"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	SubStatus   string `json:"sub_status"`
	Product     string `json:"product"` // JSON
	OnHoldFunds string `json:"on_hold_funds"`
	Summary     string `json:"summary"` // JSON
	Version     int    `json:"version"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Transaction is the stored form of a ledger entry.
type Transaction struct {
	TxnID          int64  `json:"txn_id"`
	AccountID      string `json:"account_id"`
	Type           string `json:"type"`
	Date           string `json:"date"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	RefNo          string `json:"ref_no"`
	Reversed       bool   `json:"reversed"`
	ReversalOfID   int64  `json:"reversal_of_id"`
	ReversalOfRef  string `json:"reversal_of_ref"`
	ReversalOfType string `json:"reversal_of_type"`
	RunningBalance string `json:"running_balance"`
	UserPosting    bool   `json:"user_posting"`
	ChargesPaid    string `json:"charges_paid"` // JSON, empty when none
	CreatedAt      string `json:"created_at"`
}

// Hold is the stored form of an on-hold record.
type Hold struct {
	HoldID    int64  `json:"hold_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Reversed  bool   `json:"reversed"`
	Lien      bool   `json:"lien"`
	CreatedAt string `json:"created_at"`
}

// FromAccount flattens a, ignoring its transactions.
func FromAccount(a *models.Account) (Account, error) {
	product, err := json.Marshal(a.Product)
	if err != nil {
		return Account{}, fmt.Errorf("failed to encode product: %w", err)
	}
	summary, err := json.Marshal(a.Summary)
	if err != nil {
		return Account{}, fmt.Errorf("failed to encode summary: %w", err)
	}
	return Account{
		AccountID:   a.ID,
		AccountNo:   a.AccountNo,
		ClientID:    a.ClientID,
		GroupID:     a.GroupID,
		Currency:    a.Currency,
		Status:      string(a.Status),
		SubStatus:   string(a.SubStatus),
		Product:     string(product),
		OnHoldFunds: a.OnHoldFunds.String(),
		Summary:     string(summary),
		Version:     a.Version,
		CreatedAt:   stamp(a.CreatedAt),
		UpdatedAt:   stamp(a.UpdatedAt),
	}, nil
}

// ToAccount rebuilds an account and attaches txs in the order given.
func (r Account) ToAccount(txs []Transaction) (*models.Account, error) {
	a := &models.Account{
		ID:        r.AccountID,
		AccountNo: r.AccountNo,
		ClientID:  r.ClientID,
		GroupID:   r.GroupID,
		Currency:  r.Currency,
		Status:    models.AccountStatus(r.Status),
		SubStatus: models.SubStatus(r.SubStatus),
		Version:   r.Version,
	}
	var err error
	if err = json.Unmarshal([]byte(r.Product), &a.Product); err != nil {
		return nil, fmt.Errorf("failed to decode product for account %s: %w", r.AccountID, err)
	}
	if err = json.Unmarshal([]byte(r.Summary), &a.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary for account %s: %w", r.AccountID, err)
	}
	if a.OnHoldFunds, err = parseAmount(r.OnHoldFunds); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseStamp(r.CreatedAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseStamp(r.UpdatedAt); err != nil {
		return nil, err
	}

	for _, row := range txs {
		tx, err := row.ToTransaction()
		if err != nil {
			return nil, err
		}
		if err := a.AddTransaction(tx); err != nil {
			return nil, fmt.Errorf("failed to attach transaction %d: %w", row.TxnID, err)
		}
	}
	return a, nil
}

// FromTransaction flattens tx.
func FromTransaction(tx *models.Transaction) (Transaction, error) {
	r := Transaction{
		TxnID:          tx.ID,
		AccountID:      tx.AccountID,
		Type:           string(tx.Type),
		Date:           tx.Date.UTC().Format(dateLayout),
		Amount:         tx.Amount.String(),
		Currency:       tx.Currency,
		RefNo:          tx.RefNo,
		Reversed:       tx.Reversed,
		ReversalOfID:   tx.ReversalOfID,
		ReversalOfRef:  tx.ReversalOfRef,
		ReversalOfType: string(tx.ReversalOfType),
		RunningBalance: tx.RunningBalance.String(),
		UserPosting:    tx.UserPosting,
		CreatedAt:      stamp(tx.CreatedAt),
	}
	if len(tx.ChargesPaid) > 0 {
		charges, err := json.Marshal(tx.ChargesPaid)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to encode charges for transaction %d: %w", tx.ID, err)
		}
		r.ChargesPaid = string(charges)
	}
	return r, nil
}

// ToTransaction rebuilds the model.
func (r Transaction) ToTransaction() (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:             r.TxnID,
		AccountID:      r.AccountID,
		Type:           models.TransactionType(r.Type),
		Currency:       r.Currency,
		RefNo:          r.RefNo,
		Reversed:       r.Reversed,
		ReversalOfID:   r.ReversalOfID,
		ReversalOfRef:  r.ReversalOfRef,
		ReversalOfType: models.TransactionType(r.ReversalOfType),
		UserPosting:    r.UserPosting,
	}
	if !models.ValidTransactionType(tx.Type) {
		return nil, fmt.Errorf("transaction %d has unknown type %q", r.TxnID, r.Type)
	}
	var err error
	if tx.Date, err = time.Parse(dateLayout, r.Date); err != nil {
		return nil, fmt.Errorf("transaction %d has bad date %q: %w", r.TxnID, r.Date, err)
	}
	if tx.Amount, err = parseAmount(r.Amount); err != nil {
		return nil, err
	}
	if tx.RunningBalance, err = parseAmount(r.RunningBalance); err != nil {
		return nil, err
	}
	if tx.CreatedAt, err = parseStamp(r.CreatedAt); err != nil {
		return nil, err
	}
	if r.ChargesPaid != "" {
		if err := json.Unmarshal([]byte(r.ChargesPaid), &tx.ChargesPaid); err != nil {
			return nil, fmt.Errorf("failed to decode charges for transaction %d: %w", r.TxnID, err)
		}
	}
	tx.MarkStored()
	return tx, nil
}

// FromHold flattens h.
func FromHold(h *models.OnHoldTransaction) Hold {
	return Hold{
		HoldID:    h.ID,
		AccountID: h.AccountID,
		Amount:    h.Amount.String(),
		Date:      h.Date.UTC().Format(dateLayout),
		Reversed:  h.Reversed,
		Lien:      h.Lien,
		CreatedAt: stamp(h.CreatedAt),
	}
}

// ToHold rebuilds the model.
func (r Hold) ToHold() (*models.OnHoldTransaction, error) {
	h := &models.OnHoldTransaction{ID: r.HoldID, AccountID: r.AccountID, Reversed: r.Reversed, Lien: r.Lien}
	var err error
	if h.Amount, err = parseAmount(r.Amount); err != nil {
		return nil, err
	}
	if h.Date, err = time.Parse(dateLayout, r.Date); err != nil {
		return nil, fmt.Errorf("hold %d has bad date %q: %w", r.HoldID, r.Date, err)
	}
	if h.CreatedAt, err = parseStamp(r.CreatedAt); err != nil {
		return nil, err
	}
	return h, nil
}

// Stamp formats a timestamp the way every row stores it.
func Stamp(t time.Time) string { return stamp(t) }

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(stampLayout)
}

func parseStamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return d, nil
}
