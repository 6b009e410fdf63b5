package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
)

const fallbackRefreshInterval = 60 * time.Second

// TokenRefreshService keeps the cached token fresh in the background. Each
// tick asks the gateway to refresh when the token is missing or inside the
// expiring window; every failure is swallowed and logged, the next tick
// simply tries again.
//
// The service restarts cleanly: Stop followed by Start spins up a new loop.
// Start while running is a logged no-op.
type TokenRefreshService struct {
	gateway  *TokenGatewayService
	enabled  bool
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewTokenRefreshService(gateway *TokenGatewayService, cfg *config.Config) *TokenRefreshService {
	interval := cfg.AutoRefresh.CheckInterval()
	if interval <= 0 {
		interval = fallbackRefreshInterval
	}
	return &TokenRefreshService{
		gateway:  gateway,
		enabled:  cfg.AutoRefresh.Enabled,
		interval: interval,
	}
}

func (s *TokenRefreshService) Start() {
	if !s.enabled {
		log.Println("[TokenRefresh] disabled by config")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("[TokenRefresh] already running; start ignored")
		return
	}
	s.running = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(stopCh)
	log.Printf("[TokenRefresh] started (interval=%s)", s.interval)
}

// Running reports whether the loop is currently active.
func (s *TokenRefreshService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop halts the loop and waits for it to exit. Safe to call when not
// running, and safe to call more than once.
func (s *TokenRefreshService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("[TokenRefresh] stopped")
}

func (s *TokenRefreshService) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	// Immediate catch-up on start; this also warms memory from the durable
	// store after a restart.
	s.refreshOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.refreshOnce()
		}
	}
}

func (s *TokenRefreshService) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	result, ran := s.gateway.RefreshIfNeeded(ctx)
	if !ran {
		return
	}
	if result != nil && !result.Success {
		log.Printf("[TokenRefresh] refresh failed: %v", result.Error)
		return
	}
	log.Println("[TokenRefresh] token refreshed")
}
