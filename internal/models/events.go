package models

import "time"

// EventType names a domain event emitted by a ledger operation.
type EventType string

const (
	EventDepositCompleted    EventType = "deposit_completed"
	EventWithdrawalCompleted EventType = "withdrawal_completed"
)

// Event is returned by ledger operations and dispatched by the caller
// once the unit of work has committed.
type Event struct {
	Type        EventType    `json:"type"`
	AccountID   string       `json:"account_id"`
	Transaction *Transaction `json:"transaction"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// TransactionResult is the outcome of a deposit or withdrawal.
type TransactionResult struct {
	Transaction *Transaction
	Events      []Event
}

// IDSnapshot captures persisted transaction ids before a mutation.
type IDSnapshot struct {
	Existing []int64
	Reversed []int64
}

// AccountingBridgeData is the diff handed to the journal collaborator.
type AccountingBridgeData struct {
	AccountID       string
	Currency        string
	ExistingIDs     []int64
	ReversedIDs     []int64
	AccountTransfer bool
	Backdated       bool
	New             []*Transaction // persisted entries absent from ExistingIDs
	NewlyReversed   []*Transaction // entries reversed since the snapshot
}
