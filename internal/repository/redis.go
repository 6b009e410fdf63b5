package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the shared redis client and verifies connectivity
// before anything else starts depending on it. Deployments on the sqlite
// driver run without redis entirely and get a nil client; consumers treat
// that as "single node, no coordination".
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Storage.Driver == domain.StorageDriverSQLite {
		return nil, nil
	}

	opts := &redis.Options{
		Addr:         cfg.Redis.Address(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  time.Duration(cfg.Redis.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}
	if cfg.Redis.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.Redis.Address(), err)
	}
	return client, nil
}
