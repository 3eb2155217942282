package ledger

import "github.com/shipbox/billing/internal/domain/shared"

// AggregateTypeUserBalance is the aggregate type for ledger events
const AggregateTypeUserBalance = "UserBalance"

// EventTypeTransactionApplied is published after a transaction commits
const EventTypeTransactionApplied = "ledger.transaction_applied"

// TransactionAppliedEvent carries the committed transaction and the resulting balance
type TransactionAppliedEvent struct {
	shared.BaseDomainEvent
	TransactionID  string          `json:"transaction_id"`
	UserID         string          `json:"user_id"`
	AmountCredits  int64           `json:"amount_credits"`
	Type           TransactionType `json:"transaction_type"`
	BalanceCredits int64           `json:"balance_credits"`
}

// NewTransactionAppliedEvent creates the event for a committed transaction
func NewTransactionAppliedEvent(tx *Transaction) *TransactionAppliedEvent {
	return &TransactionAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionApplied, AggregateTypeUserBalance, tx.UserID),
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		AmountCredits:   tx.AmountCredits,
		Type:            tx.Type,
		BalanceCredits:  tx.BalanceAfter,
	}
}

// PreviousBalance is the balance before the transaction was applied
func (e *TransactionAppliedEvent) PreviousBalance() int64 {
	return e.BalanceCredits - e.AmountCredits
}
