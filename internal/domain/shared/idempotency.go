package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been processed.
//
// Implementations are caches that can lose entries on expiry or restart.
// They only ever sit in front of a durable uniqueness check.
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It reports true if key was not
	// already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}
