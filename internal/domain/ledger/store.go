package ledger

import (
	"context"
	"time"
)

const (
	// DefaultTransactionLimit is used when a caller does not ask for a page size
	DefaultTransactionLimit = 50
	// NoLimit asks GetTransactions for the full history
	NoLimit = -1
	// DefaultConsumptionWindow is the look-back used when no period start is given
	DefaultConsumptionWindow = 30 * 24 * time.Hour
)

// Store is the only component allowed to mutate balances and transactions.
//
// ApplyTransaction is the atomic-commit primitive: the transaction row and the
// balance increment land together or not at all. Write failures are reported as
// *LedgerWriteError, read failures as *LedgerReadError.
type Store interface {
	// ApplyTransaction appends the entry and increments the balance by its amount.
	// Returns ErrAlreadyApplied if the entry's idempotency key was consumed before.
	ApplyTransaction(ctx context.Context, entry Entry) (*Transaction, error)

	// GetBalance returns the balance, or a zero balance for unknown users
	GetBalance(ctx context.Context, userID string) (*UserBalance, error)

	// GetTransactions returns the newest transactions first.
	// limit <= 0 uses DefaultTransactionLimit, NoLimit returns everything.
	GetTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error)

	// GetConsumption sums the absolute value of debits created at or after periodStart
	GetConsumption(ctx context.Context, userID string, periodStart time.Time) (int64, error)

	// HasTransactionOfType reports whether the user has any transaction of the type
	HasTransactionOfType(ctx context.Context, userID string, txType TransactionType) (bool, error)

	// GetPaymentCustomerID returns the stored payment customer id, or "" if none
	GetPaymentCustomerID(ctx context.Context, userID string) (string, error)

	// SetPaymentCustomerID stores the payment customer id, creating the balance row if needed
	SetPaymentCustomerID(ctx context.Context, userID, customerID string) error

	// Stats returns ledger totals, with the "today" figures counted from since
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

// ResolveLimit applies the paging defaults of GetTransactions
func ResolveLimit(limit int) int {
	switch {
	case limit == NoLimit:
		return NoLimit
	case limit <= 0:
		return DefaultTransactionLimit
	default:
		return limit
	}
}
