package repository

import (
	"fmt"
	"log"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/redis/go-redis/v9"
)

// NewTokenStore selects the durable token store from configuration.
func NewTokenStore(cfg *config.Config, rdb *redis.Client) (service.TokenStore, error) {
	cipher, err := newTokenCipher(cfg.Storage.EncryptionKey)
	if err != nil {
		return nil, err
	}

	var store service.TokenStore
	switch cfg.Storage.Driver {
	case domain.StorageDriverSQLite:
		store, err = newSQLiteTokenStore(cfg.Storage.SQLitePath, cipher)
		if err != nil {
			return nil, err
		}
	case domain.StorageDriverRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis storage selected but no redis client available")
		}
		store = newRedisTokenStore(rdb, cfg.Storage.KeyPrefix, cipher)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}

	log.Printf("[TokenStore] driver=%s encryption=%v", cfg.Storage.Driver, cipher != nil)
	return store, nil
}
