// Package billing holds the application services of the credit ledger:
// usage metering, payment webhooks, quota checks, starter credits,
// checkout and the read facades used by the HTTP layer.
package billing

import (
	"context"
	"reflect"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/billing"
	"go.uber.org/zap"
)

// Notifier delivers user-facing billing messages. Delivery is best-effort:
// callers log failures and carry on.
type Notifier interface {
	SendWelcome(ctx context.Context, userID string, credits int64) error
	SendLowBalance(ctx context.Context, userID string, balanceCredits int64) error
	SendReceipt(ctx context.Context, userID, email string, amountCredits, balanceCredits int64) error
}

// PaymentGateway creates hosted payment pages at the payment provider.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, input billing.CheckoutInput) (*billing.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// SessionCounter counts the compute sessions a user currently owns.
type SessionCounter interface {
	CountSessions(ctx context.Context, userID string) (int64, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

// publisherOrNop replaces an absent publisher, including a nil pointer held
// in the interface, with one that discards events.
func publisherOrNop(p shared.EventPublisher) shared.EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	if v := reflect.ValueOf(p); v.Kind() == reflect.Pointer && v.IsNil() {
		return nopPublisher{}
	}
	return p
}

// publishApplied announces a committed transaction. The commit already
// stands, so a publish failure is only logged.
func publishApplied(ctx context.Context, publisher shared.EventPublisher, tx *ledger.Transaction, logger *zap.Logger) {
	if err := publisher.Publish(ctx, ledger.NewTransactionAppliedEvent(tx)); err != nil {
		logger.Warn("Failed to publish transaction applied event",
			zap.String("transaction_id", tx.ID),
			zap.String("user_id", tx.UserID),
			zap.Error(err))
	}
}
