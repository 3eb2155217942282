package persistence

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
)

// MemoryLedgerStore implements ledger.Store in process memory.
// A single mutex stands in for the database transaction.
type MemoryLedgerStore struct {
	mu           sync.Mutex
	now          func() time.Time
	balances     map[string]*ledger.UserBalance
	transactions map[string][]*ledger.Transaction // per user, oldest first
	keys         map[string]struct{}
}

var _ ledger.Store = (*MemoryLedgerStore)(nil)

// NewMemoryLedgerStore creates an empty in-memory ledger
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		now:          time.Now,
		balances:     make(map[string]*ledger.UserBalance),
		transactions: make(map[string][]*ledger.Transaction),
		keys:         make(map[string]struct{}),
	}
}

// SetClock overrides the time source used for transaction timestamps
func (s *MemoryLedgerStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ApplyTransaction appends the entry and increments the balance atomically
func (s *MemoryLedgerStore) ApplyTransaction(ctx context.Context, entry ledger.Entry) (*ledger.Transaction, error) {
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, ledger.NewLedgerWriteError("apply", entry.UserID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.IdempotencyKey != "" {
		if _, seen := s.keys[entry.IdempotencyKey]; seen {
			return nil, ledger.ErrAlreadyApplied
		}
	}

	tx := ledger.NewTransaction(entry, s.now())
	tx.Metadata = maps.Clone(entry.Metadata)

	balance := s.balanceLocked(entry.UserID)
	balance.BalanceCredits += entry.AmountCredits
	balance.UpdatedAt = tx.CreatedAt
	if entry.PaymentCustomerID != "" {
		balance.PaymentCustomerID = entry.PaymentCustomerID
	}
	tx.BalanceAfter = balance.BalanceCredits

	if entry.IdempotencyKey != "" {
		s.keys[entry.IdempotencyKey] = struct{}{}
	}
	s.transactions[entry.UserID] = append(s.transactions[entry.UserID], tx)

	out := *tx
	return &out, nil
}

func (s *MemoryLedgerStore) balanceLocked(userID string) *ledger.UserBalance {
	b, ok := s.balances[userID]
	if !ok {
		b = ledger.ZeroBalance(userID)
		s.balances[userID] = b
	}
	return b
}

// GetBalance returns a copy of the user's balance
func (s *MemoryLedgerStore) GetBalance(_ context.Context, userID string) (*ledger.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[userID]; ok {
		out := *b
		return &out, nil
	}
	return ledger.ZeroBalance(userID), nil
}

// GetTransactions returns the user's transactions, newest first
func (s *MemoryLedgerStore) GetTransactions(_ context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.transactions[userID]
	n := len(history)
	if l := ledger.ResolveLimit(limit); l != ledger.NoLimit && l < n {
		n = l
	}

	out := make([]*ledger.Transaction, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		tx := *history[i]
		out = append(out, &tx)
	}
	return out, nil
}

// GetConsumption sums the absolute value of the user's debits since periodStart
func (s *MemoryLedgerStore) GetConsumption(_ context.Context, userID string, periodStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := periodStart.Unix()
	var total int64
	for _, tx := range s.transactions[userID] {
		if tx.IsDebit() && tx.CreatedAt.Unix() >= from {
			total -= tx.AmountCredits
		}
	}
	return total, nil
}

// HasTransactionOfType reports whether the user has any transaction of the given type
func (s *MemoryLedgerStore) HasTransactionOfType(_ context.Context, userID string, txType ledger.TransactionType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions[userID] {
		if tx.Type == txType {
			return true, nil
		}
	}
	return false, nil
}

// GetPaymentCustomerID returns the stored payment customer id, or "" if none
func (s *MemoryLedgerStore) GetPaymentCustomerID(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[userID]; ok {
		return b.PaymentCustomerID, nil
	}
	return "", nil
}

// SetPaymentCustomerID stores the payment customer id without touching the balance
func (s *MemoryLedgerStore) SetPaymentCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balanceLocked(userID)
	b.PaymentCustomerID = customerID
	b.UpdatedAt = s.now().UTC().Truncate(time.Second)
	return nil
}

// Stats returns ledger totals, counting "today" figures from since
func (s *MemoryLedgerStore) Stats(_ context.Context, since time.Time) (*ledger.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := since.Unix()
	stats := &ledger.Stats{TotalUsers: int64(len(s.balances))}
	for _, history := range s.transactions {
		active := false
		for _, tx := range history {
			recent := tx.CreatedAt.Unix() >= from
			active = active || recent
			if tx.Type == ledger.TransactionTypeTopUp && tx.AmountCredits > 0 {
				stats.TotalRevenueCredits += tx.AmountCredits
				if recent {
					stats.RevenueTodayCredits += tx.AmountCredits
				}
			}
		}
		if active {
			stats.ActiveUsers24h++
		}
	}
	return stats, nil
}
