package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Usage kinds for debit metrics.
const (
	UsageKindSandbox = "sandbox"
	UsageKindTokens  = "tokens"
)

// Quota rejection reasons.
const (
	QuotaReasonActiveResources = "active_resources"
	QuotaReasonBalance         = "balance"
)

// BillingMetrics holds the ledger business counters
type BillingMetrics struct {
	creditsDebited  *Counter
	creditsCredited *Counter
	webhookEvents   *Counter
	quotaRejections *Counter
	starterGrants   *Counter
}

// NewBillingMetrics registers the billing counters on meter. A nil meter
// yields counters that record nothing.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("billing")
	}

	bm := &BillingMetrics{}
	var err error

	if bm.creditsDebited, err = NewCounter(meter, "billing_credits_debited_total",
		"Credits debited for metered usage", "{credit}"); err != nil {
		return nil, err
	}
	if bm.creditsCredited, err = NewCounter(meter, "billing_credits_credited_total",
		"Credits added by top-ups and starter grants", "{credit}"); err != nil {
		return nil, err
	}
	if bm.webhookEvents, err = NewCounter(meter, "billing_webhook_events_total",
		"Payment webhook deliveries by outcome", "{event}"); err != nil {
		return nil, err
	}
	if bm.quotaRejections, err = NewCounter(meter, "billing_quota_rejections_total",
		"Resource requests rejected by quota or balance checks", "{request}"); err != nil {
		return nil, err
	}
	if bm.starterGrants, err = NewCounter(meter, "billing_starter_grants_total",
		"Starter credit grants applied", "{grant}"); err != nil {
		return nil, err
	}

	return bm, nil
}

// NopBillingMetrics returns metrics that record nothing, for tests and
// for wiring without a meter provider.
func NopBillingMetrics() *BillingMetrics {
	bm, _ := NewBillingMetrics(nil)
	return bm
}

// RecordDebit counts credits charged for usage of the given kind
func (bm *BillingMetrics) RecordDebit(ctx context.Context, usageKind string, credits int64) {
	bm.creditsDebited.Add(ctx, credits, AttrUsageKind.String(usageKind))
}

// RecordCredit counts credits added by a transaction type
func (bm *BillingMetrics) RecordCredit(ctx context.Context, txType string, credits int64) {
	bm.creditsCredited.Add(ctx, credits, AttrTransactionType.String(txType))
}

func (bm *BillingMetrics) RecordWebhook(ctx context.Context, outcome string) {
	bm.webhookEvents.Inc(ctx, AttrWebhookOutcome.String(outcome))
}

func (bm *BillingMetrics) RecordQuotaRejection(ctx context.Context, reason string) {
	bm.quotaRejections.Inc(ctx, AttrQuotaReason.String(reason))
}

func (bm *BillingMetrics) RecordStarterGrant(ctx context.Context) {
	bm.starterGrants.Inc(ctx)
}
