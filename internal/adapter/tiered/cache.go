// Package tiered layers an in-process cache over a shared remote one.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/opsboard/internal/port/cache"
)

// Cache reads through local then remote, backfilling local on a remote hit.
// The remote level is best effort: its failures are logged and degrade to
// local-only behaviour instead of failing the caller.
type Cache struct {
	local    cache.Cache
	remote   cache.Cache
	backfill time.Duration
}

var _ cache.Cache = (*Cache)(nil)

// New creates a tiered cache. backfill bounds how long a value copied from
// remote lives in local.
func New(local, remote cache.Cache, backfill time.Duration) *Cache {
	return &Cache{local: local, remote: remote, backfill: backfill}
}

// Get checks local, then remote.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.remote.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "remote cache get failed", "key", key, "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	_ = c.local.Set(ctx, key, val, c.backfill)
	return val, true, nil
}

// Set writes local first, then remote.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := c.remote.Set(ctx, key, value, ttl); err != nil {
		slog.WarnContext(ctx, "remote cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes key from both levels. A remote failure is returned so an
// invalidation is never silently lost.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}
