package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/redis/go-redis/v9"
)

// redisTokenStore persists cached tokens in redis. Entries carry a TTL equal
// to the token's remaining lifetime, so redis itself evicts stale tokens.
type redisTokenStore struct {
	rdb    *redis.Client
	prefix string
	cipher *tokenCipher
}

func newRedisTokenStore(rdb *redis.Client, prefix string, cipher *tokenCipher) *redisTokenStore {
	return &redisTokenStore{rdb: rdb, prefix: prefix, cipher: cipher}
}

func (s *redisTokenStore) key(tenantKey string) string {
	return s.prefix + ":token:" + tenantKey
}

func (s *redisTokenStore) SaveToken(ctx context.Context, key string, token *service.CachedToken, ttl time.Duration) error {
	if token == nil {
		return fmt.Errorf("token is nil")
	}
	if ttl <= 0 {
		// Already expired; remove whatever is there instead of storing it.
		return s.DeleteToken(ctx, key)
	}
	payload, err := encodeStoredToken(s.cipher, token)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(key), payload, ttl).Err()
}

func (s *redisTokenStore) LoadToken(ctx context.Context, key string) (*service.CachedToken, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	token, err := decodeStoredToken(s.cipher, raw)
	if err != nil {
		return nil, err
	}
	if !token.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return token, nil
}

func (s *redisTokenStore) DeleteToken(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// PurgeExpired scans for token entries redis is not going to evict on its own:
// entries without a TTL and entries that no longer decode. Healthy entries
// expire via their TTL and are left alone.
func (s *redisTokenStore) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var removed int64
	iter := s.rdb.Scan(ctx, 0, s.prefix+":token:*", int64(batchSize)).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		ttl, err := s.rdb.TTL(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("ttl %s: %w", key, err)
		}
		if ttl > 0 {
			continue
		}

		raw, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("get %s: %w", key, err)
		}

		token, err := decodeStoredToken(s.cipher, raw)
		if err == nil && token.ExpiresAt.After(time.Now()) {
			continue
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("del %s: %w", key, err)
		}
		removed++
		if removed >= int64(batchSize) {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan tokens: %w", err)
	}
	return removed, nil
}

// Close is a no-op; the redis client is shared and closed by the application.
func (s *redisTokenStore) Close() error { return nil }
