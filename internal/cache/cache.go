// Package cache is a read-through Subscription cache. It never holds
// authority: a miss or a Redis error both fall through to the Store, and
// a write-path mutation invalidates before returning to its caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webhookrelay/delivery/internal/model"
)

const ttl = time.Hour

// Loader fetches a Subscription from the authoritative store on a cache
// miss, matching store.Store.GetSubscription's signature.
type Loader func(ctx context.Context, id string) (model.Subscription, error)

type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func key(id string) string {
	return fmt.Sprintf("subscription:%s", id)
}

// cachedFields mirrors the subset of Subscription a cache hit needs: id,
// target_url, secret_key, event_types. CreatedAt/UpdatedAt aren't needed
// by ingestion or delivery and are left out of the cached blob
// deliberately.
type cachedFields struct {
	ID         string   `json:"id"`
	TargetURL  string   `json:"target_url"`
	SecretKey  string   `json:"secret_key"`
	EventTypes []string `json:"event_types"`
}

func toCached(s model.Subscription) cachedFields {
	return cachedFields{ID: s.ID, TargetURL: s.TargetURL, SecretKey: s.SecretKey, EventTypes: s.EventTypes}
}

func (c cachedFields) toModel() model.Subscription {
	return model.Subscription{ID: c.ID, TargetURL: c.TargetURL, SecretKey: c.SecretKey, EventTypes: c.EventTypes}
}

// Get tries the cache first; on miss (or any Redis error — cache errors
// are never fatal per §7) it loads via load and populates the cache with
// a 1-hour TTL.
func (c *Cache) Get(ctx context.Context, id string, load Loader) (model.Subscription, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key(id)).Bytes()
		if err == nil {
			var cf cachedFields
			if jsonErr := json.Unmarshal(raw, &cf); jsonErr == nil {
				return cf.toModel(), nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// Redis is unreachable or misbehaving: fall through to the store.
		}
	}

	sub, err := load(ctx, id)
	if err != nil {
		return model.Subscription{}, err
	}
	c.set(ctx, sub)
	return sub, nil
}

func (c *Cache) set(ctx context.Context, sub model.Subscription) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(toCached(sub))
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key(sub.ID), raw, ttl).Err()
}

// Invalidate removes the cached entry. Callers must invalidate before a
// create/update/delete returns to its own caller (§4.2).
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if c.rdb == nil {
		return nil
	}
	err := c.rdb.Del(ctx, key(id)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
