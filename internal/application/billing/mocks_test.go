package billing

import (
	"context"
	"sync"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/billing"
	"github.com/stretchr/testify/mock"
)

// Mock implementations

type mockLedgerStore struct {
	mock.Mock
}

func (m *mockLedgerStore) ApplyTransaction(ctx context.Context, entry ledger.Entry) (*ledger.Transaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *mockLedgerStore) GetBalance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.UserBalance), args.Error(1)
}

func (m *mockLedgerStore) GetTransactions(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *mockLedgerStore) GetConsumption(ctx context.Context, userID string, periodStart time.Time) (int64, error) {
	args := m.Called(ctx, userID, periodStart)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedgerStore) HasTransactionOfType(ctx context.Context, userID string, txType ledger.TransactionType) (bool, error) {
	args := m.Called(ctx, userID, txType)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedgerStore) GetPaymentCustomerID(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *mockLedgerStore) SetPaymentCustomerID(ctx context.Context, userID, customerID string) error {
	args := m.Called(ctx, userID, customerID)
	return args.Error(0)
}

func (m *mockLedgerStore) Stats(ctx context.Context, since time.Time) (*ledger.Stats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Stats), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendWelcome(ctx context.Context, userID string, credits int64) error {
	args := m.Called(ctx, userID, credits)
	return args.Error(0)
}

func (m *mockNotifier) SendLowBalance(ctx context.Context, userID string, balanceCredits int64) error {
	args := m.Called(ctx, userID, balanceCredits)
	return args.Error(0)
}

func (m *mockNotifier) SendReceipt(ctx context.Context, userID, email string, amountCredits, balanceCredits int64) error {
	args := m.Called(ctx, userID, email, amountCredits, balanceCredits)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, input billing.CheckoutInput) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func (m *mockGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

type mockSessionCounter struct {
	mock.Mock
}

func (m *mockSessionCounter) CountSessions(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) applied() []*ledger.TransactionAppliedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*ledger.TransactionAppliedEvent
	for _, e := range p.events {
		if a, ok := e.(*ledger.TransactionAppliedEvent); ok {
			out = append(out, a)
		}
	}
	return out
}
