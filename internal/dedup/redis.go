// Package dedup keeps the set of already-stored listing keys in Redis so that
// duplicate checks rarely reach the database.
package dedup

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"listing-crawler/internal/logging"
	"listing-crawler/pkg/models"
)

// DefaultSetKey is the Redis set holding stored listing keys.
const DefaultSetKey = "crawler:listing-keys"

// ScopedSetKey derives the set name for one database. A set belongs to exactly
// one database, so two DSNs sharing a Redis server never see each other's keys.
func ScopedSetKey(base, database string) string {
	if base == "" {
		base = DefaultSetKey
	}
	return base + ":" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(database)).String()
}

// Store is the authoritative storage behind the cache.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Insert(ctx context.Context, l models.Listing) (models.InsertOutcome, error)
}

// RedisCache answers Exists from a Redis set and falls back to the store on a
// miss or a Redis error. Inserts always go to the store.
type RedisCache struct {
	client redis.UniversalClient
	setKey string
	store  Store
	logger zerolog.Logger
}

// NewRedisCache wraps store with a Redis seen-key set.
func NewRedisCache(client redis.UniversalClient, setKey string, store Store) *RedisCache {
	if setKey == "" {
		setKey = DefaultSetKey
	}
	return &RedisCache{
		client: client,
		setKey: setKey,
		store:  store,
		logger: logging.NewLogger("dedup"),
	}
}

// Exists reports whether key is stored.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	hit, err := c.client.SIsMember(ctx, c.setKey, key).Result()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Redis lookup failed, using database")
	} else if hit {
		return true, nil
	}

	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		c.remember(ctx, key)
	}
	return ok, nil
}

// Insert stores the listing and records its key in the set.
func (c *RedisCache) Insert(ctx context.Context, l models.Listing) (models.InsertOutcome, error) {
	outcome, err := c.store.Insert(ctx, l)
	if err != nil {
		return outcome, err
	}
	c.remember(ctx, l.Key())
	return outcome, nil
}

func (c *RedisCache) remember(ctx context.Context, key string) {
	if err := c.client.SAdd(ctx, c.setKey, key).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Failed to cache key")
	}
}

// Reset drops every cached key. Used when the database behind the set is
// empty, so keys left from a wiped database are not reported as stored.
func (c *RedisCache) Reset(ctx context.Context) error {
	return c.client.Del(ctx, c.setKey).Err()
}
