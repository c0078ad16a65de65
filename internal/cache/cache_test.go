package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/webhookrelay/delivery/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func TestCacheGetPopulatesOnMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var loads int
	loader := func(ctx context.Context, id string) (model.Subscription, error) {
		loads++
		return model.Subscription{ID: id, TargetURL: "https://example.com/hook", EventTypes: []string{"order.created"}}, nil
	}

	sub, err := c.Get(ctx, "sub-1", loader)
	require.NoError(t, err)
	require.Equal(t, "sub-1", sub.ID)
	require.Equal(t, 1, loads)

	sub, err = c.Get(ctx, "sub-1", loader)
	require.NoError(t, err)
	require.Equal(t, "sub-1", sub.ID)
	require.Equal(t, 1, loads, "second Get should hit the cache, not call loader again")
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var loads int
	loader := func(ctx context.Context, id string) (model.Subscription, error) {
		loads++
		return model.Subscription{ID: id, TargetURL: "https://example.com/hook"}, nil
	}

	_, err := c.Get(ctx, "sub-2", loader)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "sub-2"))

	_, err = c.Get(ctx, "sub-2", loader)
	require.NoError(t, err)
	require.Equal(t, 2, loads, "invalidate should force the next Get to reload")
}

func TestCacheGetFallsThroughOnRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(rdb)
	mr.Close()

	loaderCalled := false
	sub, err := c.Get(context.Background(), "sub-3", func(ctx context.Context, id string) (model.Subscription, error) {
		loaderCalled = true
		return model.Subscription{ID: id}, nil
	})
	require.NoError(t, err)
	require.True(t, loaderCalled)
	require.Equal(t, "sub-3", sub.ID)
}
