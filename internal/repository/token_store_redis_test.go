//go:build unit

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return rdb
}

func unitToken() *service.CachedToken {
	now := time.Now()
	return &service.CachedToken{
		Value:         "tok-unit",
		IssuedAt:      now,
		ExpiresAt:     now.Add(time.Hour),
		EnvironmentID: "env-1",
		ClientID:      "client-1",
	}
}

func TestRedisTokenStore_LoadToken_RedisError(t *testing.T) {
	store := newRedisTokenStore(unreachableRedis(t), "tokengate", nil)
	_, err := store.LoadToken(context.Background(), "env-1:client-1")
	require.Error(t, err)
}

func TestRedisTokenStore_SaveToken_RedisError(t *testing.T) {
	store := newRedisTokenStore(unreachableRedis(t), "tokengate", nil)
	err := store.SaveToken(context.Background(), "env-1:client-1", unitToken(), time.Hour)
	require.Error(t, err)
}

func TestRedisTokenStore_KeyLayout(t *testing.T) {
	store := newRedisTokenStore(unreachableRedis(t), "tokengate", nil)
	require.Equal(t, "tokengate:token:env-1:client-1", store.key("env-1:client-1"))
}
