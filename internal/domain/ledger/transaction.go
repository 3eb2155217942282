package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the origin of a credit movement
type TransactionType string

const (
	// TransactionTypeUsage is a debit produced by metering resource consumption
	TransactionTypeUsage TransactionType = "usage"
	// TransactionTypeTopUp is a credit funded through the payment provider
	TransactionTypeTopUp TransactionType = "top-up"
	// TransactionTypeStarter is the one-time bonus grant for new users
	TransactionTypeStarter TransactionType = "starter"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeUsage, TransactionTypeTopUp, TransactionTypeStarter:
		return true
	}
	return false
}

// Transaction is an immutable record of a credit movement.
// Positive amounts are credits, negative amounts are debits.
type Transaction struct {
	ID            string
	UserID        string
	AmountCredits int64
	Type          TransactionType
	Description   string
	CreatedAt     time.Time
	Metadata      map[string]any

	// BalanceAfter is the user's balance immediately after this transaction
	// committed, read inside the same atomic unit.
	BalanceAfter int64
}

// IsDebit reports whether the transaction reduces the balance
func (t *Transaction) IsDebit() bool {
	return t.AmountCredits < 0
}

// Entry is a request to append one transaction to the ledger.
type Entry struct {
	UserID        string
	AmountCredits int64
	Type          TransactionType
	Description   string
	Metadata      map[string]any

	// IdempotencyKey, when set, makes the entry apply at most once.
	// A second entry with the same key fails with ErrAlreadyApplied.
	IdempotencyKey string

	// PaymentCustomerID, when set, is stored on the user's balance row
	// in the same atomic unit as the transaction.
	PaymentCustomerID string
}

// Validate checks the entry before it reaches the store
func (e Entry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("ledger: user id is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("ledger: invalid transaction type %q", e.Type)
	}
	if e.AmountCredits == 0 {
		return fmt.Errorf("ledger: amount must be non-zero")
	}
	return nil
}

// NewTransaction materializes an entry into a transaction with a fresh id.
// Timestamps are truncated to whole seconds, the resolution the ledger is queried at.
func NewTransaction(e Entry, now time.Time) *Transaction {
	return &Transaction{
		ID:            uuid.NewString(),
		UserID:        e.UserID,
		AmountCredits: e.AmountCredits,
		Type:          e.Type,
		Description:   e.Description,
		CreatedAt:     now.UTC().Truncate(time.Second),
		Metadata:      e.Metadata,
	}
}
