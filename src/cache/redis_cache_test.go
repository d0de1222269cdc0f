package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"www.github.com/Wanderer0074348/MokabuLens/src/config"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := &config.RedisConfig{
		Address:  mr.Addr(),
		Password: "",
		DB:       0,
	}

	cache, err := NewRedisCache(cfg)
	require.NoError(t, err)

	return cache, mr
}

func TestRedisCache_Ping(t *testing.T) {
	cache, mr := setupTestRedis(t)
	defer mr.Close()
	defer cache.Close()

	assert.NoError(t, cache.Ping(context.Background()))
}

func TestRedisCache_PingAfterServerStops(t *testing.T) {
	cache, mr := setupTestRedis(t)
	defer cache.Close()

	mr.Close()

	assert.Error(t, cache.Ping(context.Background()))
}

func TestRedisCache_GetClientSharesConnection(t *testing.T) {
	cache, mr := setupTestRedis(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.GetClient().Set(ctx, "oauth_state:abc", "pending", 0).Err())

	val, err := mr.Get("oauth_state:abc")
	require.NoError(t, err)
	assert.Equal(t, "pending", val)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cache, err := NewRedisCache(&config.RedisConfig{Address: addr})
	assert.Error(t, err)
	assert.Nil(t, cache)
}

func TestNewRedisCache_WithPassword(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	mr.RequireAuth("s3cret")

	_, err = NewRedisCache(&config.RedisConfig{Address: mr.Addr(), Password: "wrong"})
	assert.Error(t, err)

	cache, err := NewRedisCache(&config.RedisConfig{Address: mr.Addr(), Password: "s3cret"})
	require.NoError(t, err)
	defer cache.Close()
}
