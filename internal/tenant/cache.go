// Package tenant resolves inbound webhook credentials to tenant configuration
// through a short-TTL read-through Redis cache. The cache is advisory: any
// Redis failure falls through to the database.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"botfleet/internal/models"
)

const keyPrefix = "tenant:hook:"

// negativeEntry caches "no such tenant" so redelivery storms for a deleted
// tenant do not hammer the database.
const negativeEntry = "-"

// Lookup is the database side of the cache.
type Lookup interface {
	ByWebhookSecret(ctx context.Context, secret string) (*models.Tenant, error)
}

type Cache struct {
	store Lookup
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCache(store Lookup, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{store: store, rdb: rdb, ttl: ttl}
}

// Resolve returns the active tenant for a webhook secret, (nil, nil) when the
// secret matches no active tenant, and an error only when the database itself
// is unavailable.
func (c *Cache) Resolve(ctx context.Context, secret string) (*models.Tenant, error) {
	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, keyPrefix+secret).Result()
		switch {
		case err == nil:
			if cached == negativeEntry {
				return nil, nil
			}
			var tn models.Tenant
			if jsonErr := json.Unmarshal([]byte(cached), &tn); jsonErr == nil {
				return &tn, nil
			}
			// Corrupt entry: drop it and fall through to the DB.
			c.rdb.Del(ctx, keyPrefix+secret)
		case !errors.Is(err, redis.Nil):
			log.Printf("Tenant cache read failed, falling back to DB: %v", err)
		}
	}

	tn, err := c.store.ByWebhookSecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, secret, tn)
	return tn, nil
}

// Invalidate drops the cached entry for a secret. Called by the admin layer
// whenever tenant configuration changes.
func (c *Cache) Invalidate(ctx context.Context, secret string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+secret).Err(); err != nil {
		log.Printf("Tenant cache invalidate failed for secret: %v", err)
	}
}

func (c *Cache) fill(ctx context.Context, secret string, tn *models.Tenant) {
	if c.rdb == nil {
		return
	}
	entry := negativeEntry
	if tn != nil {
		data, err := json.Marshal(tn)
		if err != nil {
			return
		}
		entry = string(data)
	}
	if err := c.rdb.Set(ctx, keyPrefix+secret, entry, c.ttl).Err(); err != nil {
		log.Printf("Tenant cache write failed: %v", err)
	}
}
