package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ledgerRow struct {
	ID     uint `gorm:"primaryKey"`
	UserID string
	Amount int64
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&ledgerRow{}))
	return db
}

func TestDetectOperationType(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM transactions":            "SELECT",
		"  insert into user_balances values(1)": "INSERT",
		"UPDATE user_balances SET x = 1":        "UPDATE",
		"delete from transactions":              "DELETE",
		"WITH t AS (SELECT 1) SELECT * FROM t":  "OTHER",
	}
	for sql, expected := range tests {
		assert.Equal(t, expected, detectOperationType(sql), sql)
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	db := newTestDB(t)
	meter, reader := setupTestMeter(t)

	metrics, err := RegisterDBMetrics(db, meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, metrics)
	defer metrics.Stop()

	require.NoError(t, db.Create(&ledgerRow{UserID: "u1", Amount: 10}).Error)
	var rows []ledgerRow
	require.NoError(t, db.Find(&rows).Error)
	var total int64
	require.NoError(t, db.Raw("SELECT SUM(amount) FROM ledger_rows").Row().Scan(&total))

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(rm, "db_query_total", AttrDBOperation.String("INSERT")))
	assert.GreaterOrEqual(t, counterValue(rm, "db_query_total", AttrDBOperation.String("SELECT")), int64(2))
	assert.True(t, hasMetric(rm, "db_query_duration_seconds"))
}

func TestRegisterDBMetrics_Disabled(t *testing.T) {
	db := newTestDB(t)

	metrics, err := RegisterDBMetrics(db, nil, DefaultDBMetricsConfig(), zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, metrics)

	metrics, err = RegisterDBMetrics(db, nil, DBMetricsConfig{Enabled: false}, zap.NewNop())
	assert.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestDBMetrics_SlowQueryAndPoolStats(t *testing.T) {
	db := newTestDB(t)
	meter, reader := setupTestMeter(t)

	metrics, err := RegisterDBMetrics(db, meter, DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: time.Millisecond,
		PoolStatsInterval:  time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordQuery(ctx, "SELECT", "transactions", 50*time.Millisecond)
	metrics.RecordQuery(ctx, "SELECT", "", 50*time.Millisecond)

	metrics.StartPoolStatsCollection(ctx)
	metrics.Stop()
	metrics.Stop()

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(rm, "db_slow_query_total", AttrDBTable.String("transactions")))
	assert.Equal(t, int64(1), counterValue(rm, "db_slow_query_total", AttrDBTable.String("unknown")))
	assert.True(t, hasMetric(rm, "db_pool_connections_max"))
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := newTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zap.NewNop())

	require.NoError(t, plugin.RegisterOtelGorm(db))
	_, registered := db.Config.Plugins["otelgorm"]
	assert.False(t, registered)
}

func TestDBTracingPlugin_RegisterTwice(t *testing.T) {
	setupTestTracer(t)
	db := newTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	plugin := NewDBTracingPlugin(cfg, zap.NewNop())

	require.NoError(t, plugin.RegisterOtelGorm(db))
	_, registered := db.Config.Plugins["otelgorm"]
	assert.True(t, registered)

	require.NoError(t, db.Create(&ledgerRow{UserID: "u1", Amount: 5}).Error)

	err := plugin.RegisterOtelGorm(db)
	assert.ErrorIs(t, err, gorm.ErrRegistered)
}

func TestDBTracingPlugin_Annotate(t *testing.T) {
	sr := setupTestTracer(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, zap.NewNop())

	ctx, span := StartSpan(context.Background(), "db.query")
	db := &gorm.DB{
		Config:       &gorm.Config{},
		Statement:    &gorm.Statement{Context: ctx, Table: "transactions"},
		RowsAffected: 2,
	}
	markQueryStart(db)
	time.Sleep(time.Millisecond)
	db.Error = errors.New("deadlock detected")

	plugin.annotate(db, "UPDATE")
	span.End()

	recorded := sr.Ended()[0]
	attrs := recorded.Attributes()
	assert.Contains(t, attrs, attribute.String("db.operation", "UPDATE"))
	assert.Contains(t, attrs, attribute.Int64("db.rows_affected", 2))
	assert.Contains(t, attrs, attribute.String("db.sql.table", "transactions"))
	assert.Contains(t, attrs, attribute.Bool("db.slow_query", true))
	assert.Equal(t, codes.Error, recorded.Status().Code)
}

func TestDBTracingPlugin_AnnotateIgnoresNotFound(t *testing.T) {
	sr := setupTestTracer(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())

	ctx, span := StartSpan(context.Background(), "db.query")
	db := &gorm.DB{
		Config:    &gorm.Config{},
		Statement: &gorm.Statement{Context: ctx},
		Error:     gorm.ErrRecordNotFound,
	}

	plugin.annotate(db, "SELECT")
	span.End()

	assert.Equal(t, codes.Unset, sr.Ended()[0].Status().Code)
}
