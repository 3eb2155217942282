package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testQueue = "billing:email:queue"

func TestMessages(t *testing.T) {
	welcome := welcomeMessage("u1", 100)
	assert.Equal(t, KindWelcome, welcome.Kind)
	assert.Contains(t, welcome.Body, "100 starter credits (£1.00)")

	low := lowBalanceMessage("u1", 420)
	assert.Contains(t, low.Body, "420 credits (£4.20)")

	receipt := receiptMessage("u1", "a@example.com", 1000, 1100)
	assert.Equal(t, "a@example.com", receipt.To)
	assert.Contains(t, receipt.Body, "payment of £10.00")
	assert.Contains(t, receipt.Body, "1100 credits (£11.00)")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	ctx := context.Background()

	require.NoError(t, n.SendWelcome(ctx, "u1", 100))
	require.NoError(t, n.SendLowBalance(ctx, "u1", 10))
	require.NoError(t, n.SendReceipt(ctx, "u1", "a@example.com", 500, 600))

	entries := logs.FilterMessage("Notification").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "welcome", entries[0].ContextMap()["kind"])
	assert.Equal(t, "low_balance", entries[1].ContextMap()["kind"])
	assert.Equal(t, "a@example.com", entries[2].ContextMap()["to"])
}

func TestRedisQueueNotifier_Enqueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := NewRedisQueueNotifier(db, testQueue, zap.NewNop())
	n.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	job := EmailJob{
		Kind:    KindReceipt,
		UserID:  "u1",
		To:      "a@example.com",
		Subject: "Shipbox payment receipt",
		Body:    receiptMessage("u1", "a@example.com", 500, 600).Body,
		Created: n.now(),
	}
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectLPush(testQueue, string(payload)).SetVal(1)

	err = n.SendReceipt(context.Background(), "u1", "a@example.com", 500, 600)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueueNotifier_AllKinds(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := NewRedisQueueNotifier(db, testQueue, zap.NewNop())
	ctx := context.Background()

	mock.Regexp().ExpectLPush(testQueue, `.*welcome.*`).SetVal(1)
	mock.Regexp().ExpectLPush(testQueue, `.*low_balance.*`).SetVal(2)

	assert.NoError(t, n.SendWelcome(ctx, "u1", 100))
	assert.NoError(t, n.SendLowBalance(ctx, "u1", 40))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueueNotifier_PushFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := NewRedisQueueNotifier(db, testQueue, zap.NewNop())

	mock.Regexp().ExpectLPush(testQueue, `.*`).SetErr(errors.New("connection refused"))

	err := n.SendWelcome(context.Background(), "u1", 100)
	assert.ErrorContains(t, err, "queue welcome email")
}

func TestRedisQueueNotifier_QueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := NewRedisQueueNotifier(db, testQueue, zap.NewNop())

	mock.ExpectLLen(testQueue).SetVal(4)

	length, err := n.QueueLength(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), length)
}
