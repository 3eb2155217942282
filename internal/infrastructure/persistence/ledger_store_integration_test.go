//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/infrastructure/migration"
	"github.com/shipbox/billing/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a throwaway postgres container with the migrated schema
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("billing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	return db
}

func TestGormLedgerStore_Postgres(t *testing.T) {
	ctx := context.Background()
	store := NewGormLedgerStore(newPostgresDB(t))

	t.Run("concurrent commits keep balance equal to history", func(t *testing.T) {
		const workers = 50
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				amount, txType := int64(-3), ledger.TransactionTypeUsage
				if i%2 == 0 {
					amount, txType = 10, ledger.TransactionTypeTopUp
				}
				_, err := store.ApplyTransaction(ctx, ledger.Entry{UserID: "pg-user", AmountCredits: amount, Type: txType})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		balance, err := store.GetBalance(ctx, "pg-user")
		require.NoError(t, err)
		txs, err := store.GetTransactions(ctx, "pg-user", ledger.NoLimit)
		require.NoError(t, err)
		assert.Len(t, txs, workers)
		assert.Equal(t, sumAmounts(txs), balance.BalanceCredits)
		assert.Equal(t, int64(25*10-25*3), balance.BalanceCredits)
	})

	t.Run("replayed idempotency key is rejected", func(t *testing.T) {
		entry := ledger.Entry{
			UserID:            "pg-payer",
			AmountCredits:     1000,
			Type:              ledger.TransactionTypeTopUp,
			IdempotencyKey:    "stripe:event:evt_pg",
			PaymentCustomerID: "cus_pg",
		}
		_, err := store.ApplyTransaction(ctx, entry)
		require.NoError(t, err)
		_, err = store.ApplyTransaction(ctx, entry)
		assert.ErrorIs(t, err, ledger.ErrAlreadyApplied)

		balance, err := store.GetBalance(ctx, "pg-payer")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance.BalanceCredits)
		assert.Equal(t, "cus_pg", balance.PaymentCustomerID)
	})

	t.Run("second starter grant violates the partial index", func(t *testing.T) {
		_, err := store.ApplyTransaction(ctx, ledger.Entry{UserID: "pg-new", AmountCredits: 100, Type: ledger.TransactionTypeStarter})
		require.NoError(t, err)
		_, err = store.ApplyTransaction(ctx, ledger.Entry{UserID: "pg-new", AmountCredits: 100, Type: ledger.TransactionTypeStarter})
		assert.ErrorIs(t, err, ledger.ErrAlreadyApplied)
	})

	t.Run("stats aggregate over postgres numeric sums", func(t *testing.T) {
		stats, err := store.Stats(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.TotalUsers, int64(3))
		assert.Equal(t, int64(25*10+1000), stats.TotalRevenueCredits)
	})
}
