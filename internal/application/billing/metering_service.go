package billing

import (
	"context"
	"fmt"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/metering"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MeteringService converts reported consumption into usage debits.
//
// Neither entry point looks at the balance before debiting, so a user can
// be driven below zero by usage that already happened. Gating new work on
// funds is QuotaGuard.CheckBalance's job, consulted before allocation.
type MeteringService struct {
	store     ledger.Store
	rates     metering.Rates
	publisher shared.EventPublisher
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
}

// MeteringServiceConfig contains configuration for MeteringService
type MeteringServiceConfig struct {
	Store     ledger.Store
	Rates     metering.Rates
	Publisher shared.EventPublisher
	Metrics   *telemetry.BillingMetrics
	Logger    *zap.Logger
}

// NewMeteringService creates a new MeteringService
func NewMeteringService(cfg MeteringServiceConfig) *MeteringService {
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopBillingMetrics()
	}
	return &MeteringService{
		store:     cfg.Store,
		rates:     cfg.Rates,
		publisher: publisherOrNop(cfg.Publisher),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// ReportUsage debits wall-clock sandbox time. Usage that prices to zero
// credits records nothing and returns (nil, nil).
func (s *MeteringService) ReportUsage(ctx context.Context, userID, sessionID string, durationMs int64) (tx *ledger.Transaction, err error) {
	ctx, span := telemetry.StartSpan(ctx, "billing.report_usage",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID),
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, sessionID),
	)
	defer span.End()

	credits := s.rates.DurationCredits(durationMs)
	if credits == 0 {
		return nil, nil
	}

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationReportUsage), func(ctx context.Context) {
		tx, err = s.debit(ctx, telemetry.UsageKindSandbox, ledger.Entry{
			UserID:        userID,
			AmountCredits: -credits,
			Type:          ledger.TransactionTypeUsage,
			Description:   fmt.Sprintf("Sandbox usage for %s", sessionID),
			Metadata: map[string]any{
				"sessionId":  sessionID,
				"durationMs": durationMs,
			},
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAmountCredits, tx.AmountCredits)
	return tx, nil
}

// ReportTokenUsage debits LLM token consumption. Usage that prices to zero
// credits records nothing and returns (nil, nil).
func (s *MeteringService) ReportTokenUsage(ctx context.Context, userID, sessionID, service string, inputTokens, outputTokens int64, model string) (tx *ledger.Transaction, err error) {
	ctx, span := telemetry.StartSpan(ctx, "billing.report_token_usage",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID),
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, sessionID),
		telemetry.WithAttribute("billing.model", model),
	)
	defer span.End()

	credits := s.rates.TokenCredits(inputTokens, outputTokens)
	if credits == 0 {
		return nil, nil
	}

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationReportTokens), func(ctx context.Context) {
		tx, err = s.debit(ctx, telemetry.UsageKindTokens, ledger.Entry{
			UserID:        userID,
			AmountCredits: -credits,
			Type:          ledger.TransactionTypeUsage,
			Description:   fmt.Sprintf("AI token usage for %s (%s)", sessionID, model),
			Metadata: map[string]any{
				"sessionId":    sessionID,
				"service":      service,
				"inputTokens":  inputTokens,
				"outputTokens": outputTokens,
				"model":        model,
			},
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrAmountCredits, tx.AmountCredits)
	return tx, nil
}

func (s *MeteringService) debit(ctx context.Context, usageKind string, entry ledger.Entry) (*ledger.Transaction, error) {
	tx, err := s.store.ApplyTransaction(ctx, entry)
	if err != nil {
		s.logger.Error("Failed to record usage",
			zap.String("user_id", entry.UserID),
			zap.String("usage_kind", usageKind),
			zap.Int64("amount_credits", entry.AmountCredits),
			zap.Error(err))
		return nil, fmt.Errorf("record %s usage: %w", usageKind, err)
	}

	s.metrics.RecordDebit(ctx, usageKind, -tx.AmountCredits)
	s.logger.Debug("Usage recorded",
		zap.String("user_id", tx.UserID),
		zap.String("transaction_id", tx.ID),
		zap.Int64("amount_credits", tx.AmountCredits),
		zap.Int64("balance_credits", tx.BalanceAfter))

	publishApplied(ctx, s.publisher, tx, s.logger)
	return tx, nil
}
