package billing

import (
	"context"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultLowBalanceThreshold is 500 credits (£5.00)
const DefaultLowBalanceThreshold = 500

// LowBalanceHandler warns a user once a debit takes them below the threshold.
// Only the crossing debit triggers, so a user draining an already-low
// balance is not warned on every report.
type LowBalanceHandler struct {
	threshold int64
	notifier  Notifier
	logger    *zap.Logger
}

// NewLowBalanceHandler creates a new LowBalanceHandler
func NewLowBalanceHandler(threshold int64, notifier Notifier, logger *zap.Logger) *LowBalanceHandler {
	if threshold <= 0 {
		threshold = DefaultLowBalanceThreshold
	}
	return &LowBalanceHandler{threshold: threshold, notifier: notifier, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *LowBalanceHandler) EventTypes() []string {
	return []string{ledger.EventTypeTransactionApplied}
}

// Handle implements shared.EventHandler
func (h *LowBalanceHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	applied, ok := event.(*ledger.TransactionAppliedEvent)
	if !ok || applied.AmountCredits >= 0 {
		return nil
	}

	if applied.BalanceCredits >= h.threshold || applied.PreviousBalance() < h.threshold {
		return nil
	}

	h.logger.Info("Balance fell below threshold",
		zap.String("user_id", applied.UserID),
		zap.Int64("balance_credits", applied.BalanceCredits),
		zap.Int64("threshold", h.threshold))

	return h.notifier.SendLowBalance(ctx, applied.UserID, applied.BalanceCredits)
}
