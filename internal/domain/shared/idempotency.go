package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers Idempotency-Key values so a retried write
// request takes effect at most once while its key is held.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports whether this call won
	// the claim. A false result means the key is already held.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release drops a claim after the guarded operation failed
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig controls key handling for write services
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig holds keys for one day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
