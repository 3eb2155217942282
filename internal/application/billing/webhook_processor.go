package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/billing"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// WebhookOutcome is how a payment webhook delivery was resolved
type WebhookOutcome string

const (
	// WebhookRejected means the signature did not verify; Stripe retries
	WebhookRejected WebhookOutcome = "rejected"
	// WebhookAcknowledged means nothing was applied and nothing should be retried
	WebhookAcknowledged WebhookOutcome = "acknowledged"
	// WebhookApplied means a top-up was committed
	WebhookApplied WebhookOutcome = "applied"
)

// IdempotencyKeyPrefixStripeEvent prefixes the Stripe event id in ledger keys
const IdempotencyKeyPrefixStripeEvent = "stripe:event:"

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	Outcome     WebhookOutcome      `json:"outcome"`
	EventID     string              `json:"event_id,omitempty"`
	EventType   string              `json:"event_type,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Transaction *ledger.Transaction `json:"-"`
}

// WebhookProcessor turns verified checkout.session.completed events into
// top-up credits, applying each Stripe event at most once.
type WebhookProcessor struct {
	config         *billing.StripeConfig
	store          ledger.Store
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	notifier       Notifier
	publisher      shared.EventPublisher
	metrics        *telemetry.BillingMetrics
	logger         *zap.Logger
}

// WebhookProcessorConfig contains configuration for WebhookProcessor
type WebhookProcessorConfig struct {
	Config *billing.StripeConfig
	Store  ledger.Store
	// Idempotency is an optional fast path in front of the ledger's key table
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Notifier       Notifier
	Publisher      shared.EventPublisher
	Metrics        *telemetry.BillingMetrics
	Logger         *zap.Logger
}

// NewWebhookProcessor creates a new WebhookProcessor
func NewWebhookProcessor(cfg WebhookProcessorConfig) *WebhookProcessor {
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopBillingMetrics()
	}
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = 72 * time.Hour
	}
	return &WebhookProcessor{
		config:         cfg.Config,
		store:          cfg.Store,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		notifier:       cfg.Notifier,
		publisher:      publisherOrNop(cfg.Publisher),
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
}

// Process verifies and applies one webhook delivery.
//
// A bad signature returns a *ledger.WebhookSignatureError with a rejected
// result. A ledger failure returns the error and no result so the caller
// answers 5xx and Stripe redelivers. Everything else is acknowledged or applied.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (result *WebhookResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "billing.payment_webhook")
	defer func() {
		if result != nil {
			p.metrics.RecordWebhook(ctx, string(result.Outcome))
			telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, string(result.Outcome))
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		p.logger.Warn("Failed to verify webhook signature", zap.Error(err))
		return &WebhookResult{Outcome: WebhookRejected, Reason: "invalid signature"},
			&ledger.WebhookSignatureError{Err: err}
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrEventID, event.ID)
	p.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return p.acknowledge(event, "event type not handled"), nil
	}

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationWebhook), func(ctx context.Context) {
		result, err = p.handleCheckoutCompleted(ctx, event)
	})
	return result, err
}

func (p *WebhookProcessor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (*WebhookResult, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		p.logger.Warn("Failed to unmarshal checkout session",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return p.acknowledge(event, "malformed checkout session"), nil
	}

	userID := session.Metadata["userId"]
	amountCredits, err := strconv.ParseInt(session.Metadata["amountCredits"], 10, 64)
	if userID == "" || err != nil || amountCredits <= 0 {
		p.logger.Warn("Checkout session is missing billing metadata",
			zap.String("event_id", event.ID),
			zap.String("session_id", session.ID),
			zap.String("user_id", userID),
			zap.String("amount_credits", session.Metadata["amountCredits"]))
		return p.acknowledge(event, "missing or invalid metadata"), nil
	}

	key := IdempotencyKeyPrefixStripeEvent + event.ID
	if p.seen(ctx, key) {
		return p.acknowledge(event, "duplicate event"), nil
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	tx, err := p.store.ApplyTransaction(ctx, ledger.Entry{
		UserID:        userID,
		AmountCredits: amountCredits,
		Type:          ledger.TransactionTypeTopUp,
		Description:   "Stripe top-up",
		Metadata: map[string]any{
			"stripeEventId":    event.ID,
			"stripeSessionId":  session.ID,
			"stripeCustomerId": customerID,
			"paymentIntent":    paymentIntentID,
		},
		IdempotencyKey:    key,
		PaymentCustomerID: customerID,
	})
	if errors.Is(err, ledger.ErrAlreadyApplied) {
		p.markSeen(ctx, key)
		return p.acknowledge(event, "duplicate event"), nil
	}
	if err != nil {
		p.logger.Error("Failed to apply Stripe top-up",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID),
			zap.Int64("amount_credits", amountCredits),
			zap.Error(err))
		return nil, err
	}

	p.markSeen(ctx, key)
	p.metrics.RecordCredit(ctx, tx.Type.String(), tx.AmountCredits)

	p.logger.Info("Stripe top-up applied",
		zap.String("event_id", event.ID),
		zap.String("user_id", userID),
		zap.String("transaction_id", tx.ID),
		zap.Int64("amount_credits", amountCredits),
		zap.Int64("balance_credits", tx.BalanceAfter))

	p.sendReceipt(ctx, &session, tx)
	publishApplied(ctx, p.publisher, tx, p.logger)

	return &WebhookResult{
		Outcome:     WebhookApplied,
		EventID:     event.ID,
		EventType:   string(event.Type),
		Transaction: tx,
	}, nil
}

func (p *WebhookProcessor) acknowledge(event stripe.Event, reason string) *WebhookResult {
	return &WebhookResult{
		Outcome:   WebhookAcknowledged,
		EventID:   event.ID,
		EventType: string(event.Type),
		Reason:    reason,
	}
}

// seen consults the fast-path store. Errors fall through to the ledger,
// whose key table decides.
func (p *WebhookProcessor) seen(ctx context.Context, key string) bool {
	if p.idempotency == nil {
		return false
	}
	processed, err := p.idempotency.IsProcessed(ctx, key)
	if err != nil {
		p.logger.Warn("Idempotency cache lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return processed
}

func (p *WebhookProcessor) markSeen(ctx context.Context, key string) {
	if p.idempotency == nil {
		return
	}
	if _, err := p.idempotency.MarkProcessed(ctx, key, p.idempotencyTTL); err != nil {
		p.logger.Warn("Failed to mark event in idempotency cache", zap.String("key", key), zap.Error(err))
	}
}

func (p *WebhookProcessor) sendReceipt(ctx context.Context, session *stripe.CheckoutSession, tx *ledger.Transaction) {
	if p.notifier == nil {
		return
	}

	email := session.CustomerEmail
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = session.CustomerDetails.Email
	}

	if err := p.notifier.SendReceipt(ctx, tx.UserID, email, tx.AmountCredits, tx.BalanceAfter); err != nil {
		p.logger.Warn("Failed to send payment receipt",
			zap.String("user_id", tx.UserID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
	}
}
