package redis

import (
	"context"
	"fmt"
	"time"
)

// keyPrefix namespaces dedup entries; the contract address is appended so
// separate ledgers sharing one Redis do not collide.
const keyPrefix = "tronledger:seen:"

// DedupCache implements domain.DedupCache with keys that expire after a
// TTL. It survives process restarts, which the in-process seen-set of tail
// mode cannot. Seen and Mark are split so callers only mark a uid once its
// effects are durably written.
type DedupCache struct {
	client   *Client
	contract string
	ttl      time.Duration
}

// NewDedupCache creates a DedupCache scoped to one contract. A
// non-positive ttl defaults to 24h.
func NewDedupCache(client *Client, contract string, ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DedupCache{client: client, contract: contract, ttl: ttl}
}

func (c *DedupCache) key(uid string) string {
	return keyPrefix + c.contract + ":" + uid
}

// Seen reports whether uid has been marked within the TTL window.
func (c *DedupCache) Seen(ctx context.Context, uid string) (bool, error) {
	n, err := c.client.rdb.Exists(ctx, c.key(uid)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check seen %s: %w", uid, err)
	}
	return n > 0, nil
}

// Mark records uid as processed.
func (c *DedupCache) Mark(ctx context.Context, uid string) error {
	if err := c.client.rdb.Set(ctx, c.key(uid), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark seen %s: %w", uid, err)
	}
	return nil
}
