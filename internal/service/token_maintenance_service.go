package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/Wei-Shaw/tokengate/internal/config"
)

// Standard 5-field cron, minutes first.
var maintenanceCronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// releaseLeaderScript deletes the leader lock only while we still own it, so
// an instance whose lock expired mid-pass cannot release a successor's lock.
var releaseLeaderScript = redis.NewScript("if redis.call(\"GET\", KEYS[1]) == ARGV[1] then return redis.call(\"DEL\", KEYS[1]) end return 0")

const defaultPurgeBatchSize = 500

// TokenMaintenanceService periodically purges expired durable rows and sweeps
// stale in-memory entries. When redis is available, a leader lock ensures one
// instance per fleet runs the purge per schedule; sqlite deployments are
// per-node and run unconditionally.
type TokenMaintenanceService struct {
	cache *TokenCache
	store TokenStore
	rdb   *redis.Client
	cfg   *config.Config

	cron       *cron.Cron
	instanceID string
	startOnce  sync.Once
	stopOnce   sync.Once
}

func NewTokenMaintenanceService(cache *TokenCache, store TokenStore, rdb *redis.Client, cfg *config.Config) *TokenMaintenanceService {
	return &TokenMaintenanceService{
		cache:      cache,
		store:      store,
		rdb:        rdb,
		cfg:        cfg,
		instanceID: uuid.NewString(),
	}
}

func (s *TokenMaintenanceService) Start() {
	if !s.cfg.Maintenance.Enabled {
		log.Println("[Maintenance] disabled by config")
		return
	}
	s.startOnce.Do(func() {
		c := cron.New(cron.WithParser(maintenanceCronParser), cron.WithLocation(s.cfg.Location()))
		if _, err := c.AddFunc(s.cfg.Maintenance.Schedule, s.runScheduled); err != nil {
			log.Printf("[Maintenance] not started (invalid schedule=%q): %v", s.cfg.Maintenance.Schedule, err)
			return
		}
		s.cron = c
		c.Start()
		log.Printf("[Maintenance] started (schedule=%q instance=%s)", s.cfg.Maintenance.Schedule, s.instanceID)
	})
}

func (s *TokenMaintenanceService) Stop() {
	s.stopOnce.Do(func() {
		if s.cron == nil {
			return
		}
		ctx := s.cron.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(3 * time.Second):
			log.Println("[Maintenance] stop timed out waiting for running job")
		}
		log.Println("[Maintenance] stopped")
	})
}

func (s *TokenMaintenanceService) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one maintenance pass.
func (s *TokenMaintenanceService) RunOnce(ctx context.Context) {
	if s.rdb != nil {
		lockKey := s.leaderLockKey()
		ok, err := s.rdb.SetNX(ctx, lockKey, s.instanceID, s.cfg.Maintenance.LeaderLockTTL()).Result()
		if err != nil {
			log.Printf("[Maintenance] leader election failed: %v", err)
			return
		}
		if !ok {
			log.Println("[Maintenance] another instance holds the leader lock, skipping")
			return
		}
		defer func() {
			if _, err := releaseLeaderScript.Run(ctx, s.rdb, []string{lockKey}, s.instanceID).Result(); err != nil && err != redis.Nil {
				log.Printf("[Maintenance] leader lock release failed: %v", err)
			}
		}()
	}

	batch := s.cfg.Maintenance.PurgeBatchSize
	if batch <= 0 {
		batch = defaultPurgeBatchSize
	}
	purged, err := s.store.PurgeExpired(ctx, batch)
	if err != nil {
		log.Printf("[Maintenance] durable purge failed: %v", err)
	}
	swept := s.cache.SweepExpired()
	log.Printf("[Maintenance] pass complete (purged=%d swept=%d)", purged, swept)
}

func (s *TokenMaintenanceService) leaderLockKey() string {
	prefix := s.cfg.Storage.KeyPrefix
	if prefix == "" {
		prefix = "tokengate"
	}
	return prefix + ":maintenance:leader"
}
