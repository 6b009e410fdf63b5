package repository

import (
	"context"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/service"
)

// nopTokenStore discards writes and never finds anything. Used by tokenctl,
// which runs one acquisition and exits without persisting tokens.
type nopTokenStore struct{}

// NewNopTokenStore returns a store with no persistence behind it.
func NewNopTokenStore() service.TokenStore {
	return nopTokenStore{}
}

func (nopTokenStore) SaveToken(ctx context.Context, key string, token *service.CachedToken, ttl time.Duration) error {
	return nil
}

func (nopTokenStore) LoadToken(ctx context.Context, key string) (*service.CachedToken, error) {
	return nil, nil
}

func (nopTokenStore) DeleteToken(ctx context.Context, key string) error {
	return nil
}

func (nopTokenStore) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	return 0, nil
}
