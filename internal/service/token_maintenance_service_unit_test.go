//go:build unit

package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// With redis configured but unreachable, leader election fails and the pass
// is skipped rather than risking a concurrent purge.
func TestMaintenanceLeaderElectionFailureSkipsPass(t *testing.T) {
	cfg := maintenanceTestConfig()
	store := &purgeRecordingStore{memStore: newMemStore()}
	cache := NewTokenCache(store, NewSubscriberRegistry(), nil, cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewTokenMaintenanceService(cache, store, rdb, cfg)
	svc.RunOnce(context.Background())

	require.Equal(t, 0, store.purgeCount())
}
