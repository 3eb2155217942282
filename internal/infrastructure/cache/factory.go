package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shipbox/billing/internal/domain/shared"
	"go.uber.org/zap"
)

// Idempotency cache modes accepted by billing.idempotency_cache
const (
	ModeNone   = "none"
	ModeMemory = "memory"
	ModeRedis  = "redis"
)

// NewIdempotencyStore builds the fast-path idempotency cache for the given mode.
// ModeNone returns a nil store: callers rely on the ledger's durable keys alone.
func NewIdempotencyStore(mode string, client redis.Cmdable, logger *zap.Logger) (shared.IdempotencyStore, error) {
	switch mode {
	case ModeNone:
		logger.Info("Idempotency cache disabled")
		return nil, nil
	case ModeMemory, "":
		logger.Info("Using in-memory idempotency cache")
		return NewInMemoryIdempotencyStore(5 * time.Minute), nil
	case ModeRedis:
		if client == nil {
			return nil, fmt.Errorf("idempotency cache mode %q requires a redis client", mode)
		}
		logger.Info("Using Redis idempotency cache")
		return NewRedisIdempotencyStore(client, DefaultIdempotencyKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown idempotency cache mode %q", mode)
	}
}
