package billing

import (
	"context"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxActiveResources is the per-user cap on owned sandboxes
const DefaultMaxActiveResources = 3

// QuotaGuard decides whether a user may allocate another compute resource.
//
// Both checks are advisory reads: two concurrent requests can each pass
// before either allocation lands, so a user can briefly exceed the cap.
// The orchestrator owns allocation and accepts that race.
type QuotaGuard struct {
	store     ledger.Store
	sessions  SessionCounter
	maxActive int64
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
}

// QuotaGuardConfig contains configuration for QuotaGuard
type QuotaGuardConfig struct {
	Store              ledger.Store
	Sessions           SessionCounter
	MaxActiveResources int64
	Metrics            *telemetry.BillingMetrics
	Logger             *zap.Logger
}

// NewQuotaGuard creates a new QuotaGuard
func NewQuotaGuard(cfg QuotaGuardConfig) *QuotaGuard {
	if cfg.MaxActiveResources <= 0 {
		cfg.MaxActiveResources = DefaultMaxActiveResources
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopBillingMetrics()
	}
	return &QuotaGuard{
		store:     cfg.Store,
		sessions:  cfg.Sessions,
		maxActive: cfg.MaxActiveResources,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// CheckSandboxQuota fails with *ledger.QuotaExceededError once the user owns
// MaxActiveResources sessions.
func (g *QuotaGuard) CheckSandboxQuota(ctx context.Context, userID string) error {
	active, err := g.sessions.CountSessions(ctx, userID)
	if err != nil {
		if ledger.KindOf(err) != ledger.KindLedgerRead {
			err = ledger.NewLedgerReadError("count_sessions", userID, err)
		}
		return err
	}

	if active >= g.maxActive {
		g.metrics.RecordQuotaRejection(ctx, telemetry.QuotaReasonActiveResources)
		g.logger.Info("Sandbox quota exceeded",
			zap.String("user_id", userID),
			zap.Int64("active", active),
			zap.Int64("limit", g.maxActive))
		return &ledger.QuotaExceededError{UserID: userID, Active: active, Limit: g.maxActive}
	}
	return nil
}

// CheckBalance fails with *ledger.InsufficientBalanceError unless the
// balance is strictly positive.
func (g *QuotaGuard) CheckBalance(ctx context.Context, userID string) error {
	balance, err := g.store.GetBalance(ctx, userID)
	if err != nil {
		return err
	}

	if !balance.IsFunded() {
		g.metrics.RecordQuotaRejection(ctx, telemetry.QuotaReasonBalance)
		return &ledger.InsufficientBalanceError{UserID: userID, BalanceCredits: balance.BalanceCredits}
	}
	return nil
}
