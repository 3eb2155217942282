package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/metering"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/persistence"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestMetrics(t *testing.T) (*telemetry.BillingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := telemetry.NewBillingMetrics(provider.Meter("billing-test"))
	require.NoError(t, err)
	return metrics, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func newTestMeteringService(store ledger.Store, p *recordingPublisher, metrics *telemetry.BillingMetrics) *MeteringService {
	var publisher shared.EventPublisher
	if p != nil {
		publisher = p
	}
	return NewMeteringService(MeteringServiceConfig{
		Store:     store,
		Rates:     metering.DefaultRates(),
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    zap.NewNop(),
	})
}

func TestMeteringService_ReportUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("ten minutes for a new user debits ten credits", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		publisher := &recordingPublisher{}
		metrics, reader := newTestMetrics(t)
		svc := newTestMeteringService(store, publisher, metrics)

		tx, err := svc.ReportUsage(ctx, "u1", "s1", 600_000)
		require.NoError(t, err)
		require.NotNil(t, tx)

		assert.Equal(t, int64(-10), tx.AmountCredits)
		assert.Equal(t, ledger.TransactionTypeUsage, tx.Type)
		assert.Equal(t, "Sandbox usage for s1", tx.Description)
		assert.Equal(t, "s1", tx.Metadata["sessionId"])
		assert.Equal(t, int64(600_000), tx.Metadata["durationMs"])
		assert.Equal(t, int64(-10), tx.BalanceAfter)

		balance, err := store.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(-10), balance.BalanceCredits)

		txs, err := store.GetTransactions(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Len(t, txs, 1)

		events := publisher.applied()
		require.Len(t, events, 1)
		assert.Equal(t, tx.ID, events[0].TransactionID)
		assert.Equal(t, int64(-10), events[0].BalanceCredits)

		assert.Equal(t, int64(10), counterTotal(t, reader, "billing_credits_debited_total"))
	})

	t.Run("partial minute rounds up", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		svc := newTestMeteringService(store, nil, nil)

		tx, err := svc.ReportUsage(ctx, "u1", "s1", 1)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, int64(-1), tx.AmountCredits)
	})

	t.Run("nil publisher pointer still commits", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		var publisher *recordingPublisher
		svc := NewMeteringService(MeteringServiceConfig{
			Store:     store,
			Rates:     metering.DefaultRates(),
			Publisher: publisher,
			Logger:    zap.NewNop(),
		})

		tx, err := svc.ReportUsage(ctx, "u1", "s1", 60_000)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, int64(-1), tx.BalanceAfter)
	})

	t.Run("zero duration records nothing", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		publisher := &recordingPublisher{}
		svc := newTestMeteringService(store, publisher, nil)

		for _, d := range []int64{0, -5} {
			tx, err := svc.ReportUsage(ctx, "u1", "s1", d)
			require.NoError(t, err)
			assert.Nil(t, tx)
		}

		txs, err := store.GetTransactions(ctx, "u1", ledger.NoLimit)
		require.NoError(t, err)
		assert.Empty(t, txs)
		assert.Empty(t, publisher.applied())
	})

	t.Run("usage may drive the balance negative", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		svc := newTestMeteringService(store, nil, nil)

		_, err := svc.ReportUsage(ctx, "u1", "s1", 60_000)
		require.NoError(t, err)
		_, err = svc.ReportUsage(ctx, "u1", "s2", 120_000)
		require.NoError(t, err)

		balance, err := store.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(-3), balance.BalanceCredits)
	})

	t.Run("store failure is wrapped and nothing is published", func(t *testing.T) {
		store := new(mockLedgerStore)
		writeErr := ledger.NewLedgerWriteError("apply", "u1", errors.New("connection reset"))
		store.On("ApplyTransaction", mock.Anything, mock.AnythingOfType("ledger.Entry")).Return(nil, writeErr)
		publisher := &recordingPublisher{}
		svc := newTestMeteringService(store, publisher, nil)

		tx, err := svc.ReportUsage(ctx, "u1", "s1", 60_000)
		assert.Nil(t, tx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record sandbox usage")
		assert.Equal(t, ledger.KindLedgerWrite, ledger.KindOf(err))
		assert.True(t, ledger.KindOf(err).Retryable())
		assert.Empty(t, publisher.applied())
		store.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the debit", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		publisher := &recordingPublisher{err: errors.New("bus down")}
		svc := newTestMeteringService(store, publisher, nil)

		tx, err := svc.ReportUsage(ctx, "u1", "s1", 60_000)
		require.NoError(t, err)
		assert.NotNil(t, tx)
	})
}

func TestMeteringService_ReportTokenUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("input and output tokens are priced separately", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		svc := newTestMeteringService(store, nil, nil)

		tx, err := svc.ReportTokenUsage(ctx, "u3", "s1", "anthropic", 1000, 1000, "model-x")
		require.NoError(t, err)
		require.NotNil(t, tx)

		assert.Equal(t, int64(-6), tx.AmountCredits)
		assert.Equal(t, "AI token usage for s1 (model-x)", tx.Description)
		assert.Equal(t, "anthropic", tx.Metadata["service"])
		assert.Equal(t, int64(1000), tx.Metadata["inputTokens"])
		assert.Equal(t, int64(1000), tx.Metadata["outputTokens"])
		assert.Equal(t, "model-x", tx.Metadata["model"])

		balance, err := store.GetBalance(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, int64(-6), balance.BalanceCredits)
	})

	t.Run("fractional cost rounds up", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		svc := newTestMeteringService(store, nil, nil)

		tx, err := svc.ReportTokenUsage(ctx, "u3", "s1", "anthropic", 10, 0, "model-x")
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, int64(-1), tx.AmountCredits)
	})

	t.Run("no tokens records nothing", func(t *testing.T) {
		store := persistence.NewMemoryLedgerStore()
		svc := newTestMeteringService(store, nil, nil)

		tx, err := svc.ReportTokenUsage(ctx, "u3", "s1", "anthropic", 0, 0, "model-x")
		require.NoError(t, err)
		assert.Nil(t, tx)
	})
}
