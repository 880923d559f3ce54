package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medusa-storefront/internal/domain"
)

func setupRedis(t *testing.T) (Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, time.Hour), mr
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupRedis(t)

	require.NoError(t, repo.Set(ctx, "s1", "cart_id", []byte("c1")))
	got, err := repo.Get(ctx, "s1", "cart_id")
	require.NoError(t, err)
	assert.Equal(t, "c1", string(got))
	assert.True(t, mr.Exists("storefront:state:s1:cart_id"))
	assert.Equal(t, time.Hour, mr.TTL("storefront:state:s1:cart_id"))

	require.NoError(t, repo.Delete(ctx, "s1", "cart_id"))
	_, err = repo.Get(ctx, "s1", "cart_id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupRedis(t)

	ok, err := repo.SetIfAbsent(ctx, "s1", "checkout_c1", []byte("in_flight"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetIfAbsent(ctx, "s1", "checkout_c1", []byte("in_flight"))
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = repo.SetIfAbsent(ctx, "s1", "checkout_c1", []byte("in_flight"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisPingFailsWhenClosed(t *testing.T) {
	repo, mr := setupRedis(t)
	require.NoError(t, repo.Ping(context.Background()))
	mr.Close()
	assert.Error(t, repo.Ping(context.Background()))
}
