package models

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Match with errors.Is; inspect context with errors.As on *LedgerError.
var (
	ErrTransactionNotAllowed  = errors.New("transaction not allowed")
	ErrAccountBlocked         = errors.New("account is blocked")
	ErrAccountNotActive       = errors.New("account is not active")
	ErrModificationNotAllowed = errors.New("account does not allow modification")
	ErrOwnerInactive          = errors.New("account owner is not active")
	ErrInsufficientFunds      = errors.New("insufficient account balance")
	ErrBeforePivotDate        = errors.New("transaction date is before the pivot date")
	ErrAlreadyReversed        = errors.New("transaction is already reversed")
	ErrInvalidTransaction     = errors.New("invalid transaction")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrAccountNotFound        = errors.New("account not found")
)

// LedgerError carries the context of a failed ledger operation.
type LedgerError struct {
	Kind          error
	AccountID     string
	TransactionID int64
	Action        string
	Detail        string
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Action != "" {
		fmt.Fprintf(&b, ": %s", e.Action)
	}
	if e.AccountID != "" {
		fmt.Fprintf(&b, " (account %s", e.AccountID)
		if e.TransactionID != 0 {
			fmt.Fprintf(&b, ", transaction %d", e.TransactionID)
		}
		b.WriteString(")")
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

func (e *LedgerError) Unwrap() error { return e.Kind }
