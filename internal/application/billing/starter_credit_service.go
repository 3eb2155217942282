package billing

import (
	"context"
	"errors"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultStarterCredits is the one-time grant for a new user
const DefaultStarterCredits = 100

// IdempotencyKeyPrefixStarter prefixes the user id in starter grant keys
const IdempotencyKeyPrefixStarter = "starter:"

// StarterCreditService grants the one-time starter credits
type StarterCreditService struct {
	store     ledger.Store
	credits   int64
	notifier  Notifier
	publisher shared.EventPublisher
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
}

// StarterCreditServiceConfig contains configuration for StarterCreditService
type StarterCreditServiceConfig struct {
	Store     ledger.Store
	Credits   int64
	Notifier  Notifier
	Publisher shared.EventPublisher
	Metrics   *telemetry.BillingMetrics
	Logger    *zap.Logger
}

// NewStarterCreditService creates a new StarterCreditService
func NewStarterCreditService(cfg StarterCreditServiceConfig) *StarterCreditService {
	if cfg.Credits <= 0 {
		cfg.Credits = DefaultStarterCredits
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopBillingMetrics()
	}
	return &StarterCreditService{
		store:     cfg.Store,
		credits:   cfg.Credits,
		notifier:  cfg.Notifier,
		publisher: publisherOrNop(cfg.Publisher),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Grant applies the starter credits once per user and reports whether this
// call granted them. Concurrent and repeated calls grant at most once: the
// per-user idempotency key and the starter index both reject a second row.
func (s *StarterCreditService) Grant(ctx context.Context, userID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "billing.grant_starter_credits",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID))
	defer span.End()

	granted, err := s.store.HasTransactionOfType(ctx, userID, ledger.TransactionTypeStarter)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	if granted {
		return false, nil
	}

	var tx *ledger.Transaction
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationStarterCredits), func(ctx context.Context) {
		tx, err = s.store.ApplyTransaction(ctx, ledger.Entry{
			UserID:         userID,
			AmountCredits:  s.credits,
			Type:           ledger.TransactionTypeStarter,
			Description:    "Starter credits",
			IdempotencyKey: IdempotencyKeyPrefixStarter + userID,
		})
	})
	if errors.Is(err, ledger.ErrAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to grant starter credits", zap.String("user_id", userID), zap.Error(err))
		return false, err
	}

	s.metrics.RecordStarterGrant(ctx)
	s.metrics.RecordCredit(ctx, tx.Type.String(), tx.AmountCredits)
	s.logger.Info("Starter credits granted",
		zap.String("user_id", userID),
		zap.Int64("amount_credits", tx.AmountCredits))

	if s.notifier != nil {
		if err := s.notifier.SendWelcome(ctx, userID, tx.AmountCredits); err != nil {
			s.logger.Warn("Failed to send welcome notification", zap.String("user_id", userID), zap.Error(err))
		}
	}
	publishApplied(ctx, s.publisher, tx, s.logger)

	return true, nil
}
