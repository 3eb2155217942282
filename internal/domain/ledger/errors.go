package ledger

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAlreadyApplied is returned when an entry's idempotency key was consumed by
// an earlier commit. It is an outcome, not a fault: nothing was written.
var ErrAlreadyApplied = errors.New("ledger: entry already applied")

// ErrorKind is the closed set of failure kinds produced by the billing core
type ErrorKind int

const (
	// KindUnknown is any error outside the ledger taxonomy
	KindUnknown ErrorKind = iota
	KindLedgerWrite
	KindLedgerRead
	KindQuotaExceeded
	KindInsufficientBalance
	KindWebhookSignature
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindLedgerWrite:
		return "LEDGER_WRITE"
	case KindLedgerRead:
		return "LEDGER_READ"
	case KindQuotaExceeded:
		return "QUOTA_EXCEEDED"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindWebhookSignature:
		return "WEBHOOK_SIGNATURE"
	}
	return "UNKNOWN"
}

// Retryable reports whether a caller may retry the failed operation as-is
func (k ErrorKind) Retryable() bool {
	return k == KindLedgerWrite || k == KindLedgerRead
}

// KindOf classifies err into the ledger taxonomy
func KindOf(err error) ErrorKind {
	var (
		writeErr     *LedgerWriteError
		readErr      *LedgerReadError
		quotaErr     *QuotaExceededError
		balanceErr   *InsufficientBalanceError
		signatureErr *WebhookSignatureError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &writeErr):
		return KindLedgerWrite
	case errors.As(err, &readErr):
		return KindLedgerRead
	case errors.As(err, &quotaErr):
		return KindQuotaExceeded
	case errors.As(err, &balanceErr):
		return KindInsufficientBalance
	case errors.As(err, &signatureErr):
		return KindWebhookSignature
	}
	return KindUnknown
}

// LedgerWriteError means a write did not commit; ledger state is unchanged
type LedgerWriteError struct {
	Op     string
	UserID string
	Err    error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger write %s for user %s failed: %v", e.Op, e.UserID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// NewLedgerWriteError wraps a storage failure during a write
func NewLedgerWriteError(op, userID string, err error) *LedgerWriteError {
	return &LedgerWriteError{Op: op, UserID: userID, Err: err}
}

// LedgerReadError means a read could not be served by the store
type LedgerReadError struct {
	Op     string
	UserID string
	Err    error
}

func (e *LedgerReadError) Error() string {
	return fmt.Sprintf("ledger read %s for user %s failed: %v", e.Op, e.UserID, e.Err)
}

func (e *LedgerReadError) Unwrap() error { return e.Err }

// NewLedgerReadError wraps a storage failure during a read
func NewLedgerReadError(op, userID string, err error) *LedgerReadError {
	return &LedgerReadError{Op: op, UserID: userID, Err: err}
}

// QuotaExceededError is returned when a user already owns the maximum number of resources
type QuotaExceededError struct {
	UserID string
	Active int64
	Limit  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for user %s: %d of %d active resources", e.UserID, e.Active, e.Limit)
}

// HTTPStatusCode returns the HTTP status code for quota exceeded errors
func (e *QuotaExceededError) HTTPStatusCode() int {
	return http.StatusTooManyRequests
}

// InsufficientBalanceError is returned when a user has no spendable credits
type InsufficientBalanceError struct {
	UserID         string
	BalanceCredits int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: %d credits", e.UserID, e.BalanceCredits)
}

// HTTPStatusCode returns the HTTP status code for insufficient balance errors
func (e *InsufficientBalanceError) HTTPStatusCode() int {
	return http.StatusPaymentRequired
}

// WebhookSignatureError is returned when a payment webhook fails verification.
// It must reach the provider as a failure so that the delivery is retried.
type WebhookSignatureError struct {
	Err error
}

func (e *WebhookSignatureError) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %v", e.Err)
}

func (e *WebhookSignatureError) Unwrap() error { return e.Err }

// HTTPStatusCode returns the HTTP status code for signature failures
func (e *WebhookSignatureError) HTTPStatusCode() int {
	return http.StatusBadRequest
}
