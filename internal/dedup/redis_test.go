package dedup

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-crawler/pkg/models"
)

type mapStore struct {
	keys   map[string]bool
	checks int
}

func (m *mapStore) Exists(_ context.Context, key string) (bool, error) {
	m.checks++
	return m.keys[key], nil
}

func (m *mapStore) Insert(_ context.Context, l models.Listing) (models.InsertOutcome, error) {
	if m.keys[l.Key()] {
		return models.OutcomeDuplicate, nil
	}
	m.keys[l.Key()] = true
	return models.OutcomeInserted, nil
}

func TestRedisCacheFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store := &mapStore{keys: map[string]bool{"/t/1": true}}
	cache := NewRedisCache(client, "", store)
	ctx := context.Background()

	ok, err := cache.Exists(ctx, "/t/1")
	require.NoError(t, err)
	assert.True(t, ok)

	outcome, err := cache.Insert(ctx, models.Listing{TorrentHref: "/t/2"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInserted, outcome)

	ok, err = cache.Exists(ctx, "/t/2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.checks)
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisCacheHitsSkipTheStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	setKey := "crawler:test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), setKey) })

	store := &mapStore{keys: map[string]bool{}}
	cache := NewRedisCache(client, setKey, store)

	_, err := cache.Insert(ctx, models.Listing{TorrentHref: "/t/9"})
	require.NoError(t, err)

	ok, err := cache.Exists(ctx, "/t/9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.checks)

	ok, err = cache.Exists(ctx, "/t/10")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.checks)

	// After a reset the store decides again.
	require.NoError(t, cache.Reset(ctx))
	delete(store.keys, "/t/9")
	ok, err = cache.Exists(ctx, "/t/9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, store.checks)
}

func TestScopedSetKey(t *testing.T) {
	a := ScopedSetKey("crawler:keys", "sqlite3:./a.db")
	b := ScopedSetKey("crawler:keys", "sqlite3:./b.db")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ScopedSetKey("crawler:keys", "sqlite3:./a.db"))
	assert.True(t, strings.HasPrefix(a, "crawler:keys:"))
	assert.True(t, strings.HasPrefix(ScopedSetKey("", "x"), DefaultSetKey+":"))
}

func TestRedisCacheResetReportsRedisErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cache := NewRedisCache(client, "", &mapStore{keys: map[string]bool{}})
	assert.Error(t, cache.Reset(context.Background()))
}
