package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("mark uses SETNX with ttl", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisIdempotencyStore(client, "")

		mock.ExpectSetNX("billing:idempotency:stripe:event:evt_1", "1", time.Hour).SetVal(true)
		mock.ExpectSetNX("billing:idempotency:stripe:event:evt_1", "1", time.Hour).SetVal(false)

		isNew, err := store.MarkProcessed(ctx, "stripe:event:evt_1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "stripe:event:evt_1", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("is processed checks existence", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisIdempotencyStore(client, "test:")

		mock.ExpectExists("test:k").SetVal(1)
		mock.ExpectExists("test:missing").SetVal(0)

		processed, err := store.IsProcessed(ctx, "k")
		require.NoError(t, err)
		assert.True(t, processed)

		processed, err = store.IsProcessed(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("surfaces redis errors", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewRedisIdempotencyStore(client, "")

		mock.ExpectExists("billing:idempotency:k").SetErr(errors.New("connection refused"))

		_, err := store.IsProcessed(ctx, "k")
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestNewIdempotencyStore(t *testing.T) {
	logger := zap.NewNop()

	store, err := NewIdempotencyStore(ModeNone, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = NewIdempotencyStore(ModeMemory, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	_ = store.Close()

	_, err = NewIdempotencyStore(ModeRedis, nil, logger)
	assert.Error(t, err)

	client, _ := redismock.NewClientMock()
	store, err = NewIdempotencyStore(ModeRedis, client, logger)
	require.NoError(t, err)
	assert.IsType(t, &RedisIdempotencyStore{}, store)

	_, err = NewIdempotencyStore("disk", nil, logger)
	assert.Error(t, err)
}
