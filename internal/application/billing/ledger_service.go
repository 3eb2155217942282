package billing

import (
	"context"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LedgerService serves the ledger read paths and operator top-ups
type LedgerService struct {
	store     ledger.Store
	publisher shared.EventPublisher
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(store ledger.Store, publisher shared.EventPublisher, metrics *telemetry.BillingMetrics, logger *zap.Logger) *LedgerService {
	if metrics == nil {
		metrics = telemetry.NopBillingMetrics()
	}
	return &LedgerService{
		store:     store,
		publisher: publisherOrNop(publisher),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Balance returns the user's balance, zero for unknown users
func (s *LedgerService) Balance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	return s.store.GetBalance(ctx, userID)
}

// Transactions returns the newest transactions first
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	return s.store.GetTransactions(ctx, userID, limit)
}

// Consumption sums debits since periodStart. A zero periodStart uses the
// last DefaultConsumptionWindow.
func (s *LedgerService) Consumption(ctx context.Context, userID string, periodStart time.Time) (int64, time.Time, error) {
	if periodStart.IsZero() {
		periodStart = s.now().Add(-ledger.DefaultConsumptionWindow)
	}
	total, err := s.store.GetConsumption(ctx, userID, periodStart)
	return total, periodStart, err
}

// TopUp credits a user manually. Used by operators for refunds and goodwill.
func (s *LedgerService) TopUp(ctx context.Context, userID string, amountCredits int64, reason, operator string) (*ledger.Transaction, error) {
	if userID == "" || amountCredits <= 0 {
		return nil, shared.ErrInvalidInput.WithMessage("User id and a positive amount are required")
	}
	if reason == "" {
		reason = "Manual top-up"
	}

	tx, err := s.store.ApplyTransaction(ctx, ledger.Entry{
		UserID:        userID,
		AmountCredits: amountCredits,
		Type:          ledger.TransactionTypeTopUp,
		Description:   reason,
		Metadata: map[string]any{
			"source":   "admin",
			"operator": operator,
		},
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCredit(ctx, tx.Type.String(), tx.AmountCredits)
	s.logger.Info("Manual top-up applied",
		zap.String("user_id", userID),
		zap.String("operator", operator),
		zap.Int64("amount_credits", amountCredits),
		zap.Int64("balance_credits", tx.BalanceAfter))
	publishApplied(ctx, s.publisher, tx, s.logger)

	return tx, nil
}

// AdminStatsService reports ledger totals for operators
type AdminStatsService struct {
	store ledger.Store
	now   func() time.Time
}

// NewAdminStatsService creates a new AdminStatsService
func NewAdminStatsService(store ledger.Store) *AdminStatsService {
	return &AdminStatsService{store: store, now: time.Now}
}

// Stats returns user and revenue totals, with "today" meaning the last 24 hours
func (s *AdminStatsService) Stats(ctx context.Context) (*ledger.Stats, error) {
	return s.store.Stats(ctx, s.now().Add(-24*time.Hour))
}
