package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/collection"
)

var newTimingWheel = collection.NewTimingWheel

// ExpiryWatchService schedules per-tenant expiry warnings on a timing wheel.
// One timer per tenant key; re-arming a key replaces its pending timer, so a
// refreshed token silently supersedes the old warning.
type ExpiryWatchService struct {
	tw       *collection.TimingWheel
	stopOnce sync.Once
}

// NewExpiryWatchService creates the watch service.
// 1 second tick, 3600 slots: warnings land with second precision up to an
// hour out; longer delays wrap around the wheel.
func NewExpiryWatchService() (*ExpiryWatchService, error) {
	tw, err := newTimingWheel(1*time.Second, 3600, func(key, value any) {
		if fn, ok := value.(func()); ok {
			fn()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create timing wheel: %w", err)
	}
	return &ExpiryWatchService{tw: tw}, nil
}

// Arm schedules fn to run after fireIn, keyed by tenant. Delays below one
// tick are clamped up; the wheel cannot fire faster than it turns.
func (s *ExpiryWatchService) Arm(key string, fireIn time.Duration, fn func()) {
	if fireIn < time.Second {
		fireIn = time.Second
	}
	_ = s.tw.SetTimer(key, fn, fireIn)
}

// Cancel drops the pending timer for the tenant, if any.
func (s *ExpiryWatchService) Cancel(key string) {
	_ = s.tw.RemoveTimer(key)
}

func (s *ExpiryWatchService) Stop() {
	s.stopOnce.Do(func() {
		s.tw.Stop()
		log.Println("[ExpiryWatch] stopped")
	})
}
