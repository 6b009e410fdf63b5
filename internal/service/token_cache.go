package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
)

// TokenCache is the in-memory token store of record. Reads and writes go
// through memory; the durable TokenStore is written behind the caller's back,
// best effort. A failed persist never fails the acquisition that produced the
// token.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]*CachedToken

	store    TokenStore
	registry *SubscriberRegistry
	watch    *ExpiryWatchService

	now            func() time.Time
	expiringSoon   time.Duration
	persistTimeout time.Duration
}

func NewTokenCache(store TokenStore, registry *SubscriberRegistry, watch *ExpiryWatchService, cfg *config.Config) *TokenCache {
	return &TokenCache{
		entries:        make(map[string]*CachedToken),
		store:          store,
		registry:       registry,
		watch:          watch,
		now:            time.Now,
		expiringSoon:   cfg.Cache.ExpiringSoon(),
		persistTimeout: cfg.Cache.PersistTimeout(),
	}
}

// Get returns the tenant's token if it is still valid, nil otherwise. An
// expired entry is a miss; it stays in the map until a sweep or eviction
// removes it.
func (c *TokenCache) Get(key string) *CachedToken {
	c.mu.RLock()
	entry := c.entries[key]
	c.mu.RUnlock()

	if !entry.Valid(c.now()) {
		return nil
	}
	cp := *entry
	return &cp
}

// Set stores the token under its tenant key, kicks off the durable persist in
// the background, notifies subscribers and arms the expiry warning.
func (c *TokenCache) Set(token *CachedToken) {
	if token == nil || token.Value == "" {
		return
	}
	cp := *token
	key := cp.TenantKey()

	c.mu.Lock()
	c.entries[key] = &cp
	c.mu.Unlock()

	c.persistAsync(key, &cp)
	c.notify(&cp)
	c.armWatch(key, &cp)
}

// Evict removes the tenant's token from memory and, best effort, from the
// durable store. Reports whether an entry was present.
func (c *TokenCache) Evict(key string) bool {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if c.watch != nil {
		c.watch.Cancel(key)
	}
	c.deleteAsync(key)
	if existed {
		c.notifyMissing()
	}
	return existed
}

// Clear evicts every tenant and returns how many entries were dropped.
func (c *TokenCache) Clear() int {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.entries = make(map[string]*CachedToken)
	c.mu.Unlock()

	for _, key := range keys {
		if c.watch != nil {
			c.watch.Cancel(key)
		}
		c.deleteAsync(key)
	}
	if len(keys) > 0 {
		c.notifyMissing()
	}
	return len(keys)
}

// SweepExpired drops entries whose tokens are no longer valid. The durable
// rows are left for the maintenance purge; the store treats them as misses
// either way.
func (c *TokenCache) SweepExpired() int {
	now := c.now()

	c.mu.Lock()
	var swept []string
	for key, entry := range c.entries {
		if !entry.Valid(now) {
			swept = append(swept, key)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	for _, key := range swept {
		if c.watch != nil {
			c.watch.Cancel(key)
		}
	}
	if len(swept) > 0 {
		c.notifyMissing()
	}
	return len(swept)
}

// Restore reads the tenant's token from the durable store into memory. Used
// as the read-through fallback before issuing and to warm the cache on start.
// Returns nil on miss or store failure; the caller falls through to issuance.
func (c *TokenCache) Restore(ctx context.Context, key string) *CachedToken {
	token, err := c.store.LoadToken(ctx, key)
	if err != nil {
		log.Printf("[TokenCache] durable read failed for %s: %v", key, err)
		return nil
	}
	if !token.Valid(c.now()) {
		return nil
	}

	c.mu.Lock()
	if existing := c.entries[key]; existing.Valid(c.now()) {
		// Someone issued while we were reading; the fresher entry wins.
		cp := *existing
		c.mu.Unlock()
		return &cp
	}
	cp := *token
	c.entries[key] = &cp
	c.mu.Unlock()

	log.Printf("[TokenCache] restored token for %s from durable store (expires %s)", key, cp.ExpiresAt.Format(time.RFC3339))
	c.notify(&cp)
	c.armWatch(key, &cp)
	out := cp
	return &out
}

// Entries returns a snapshot of the cache for inspection.
func (c *TokenCache) Entries() map[string]*CachedToken {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*CachedToken, len(c.entries))
	for key, entry := range c.entries {
		cp := *entry
		out[key] = &cp
	}
	return out
}

// ExpiringSoonThreshold exposes the configured warning threshold.
func (c *TokenCache) ExpiringSoonThreshold() time.Duration {
	return c.expiringSoon
}

func (c *TokenCache) persistAsync(key string, token *CachedToken) {
	if c.store == nil {
		return
	}
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	go func() {
		// Detached from the request context: the acquisition that produced
		// this token may already have returned.
		ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
		defer cancel()
		if err := c.store.SaveToken(ctx, key, token, ttl); err != nil {
			log.Printf("[TokenCache] durable persist failed for %s: %v", key, err)
		}
	}()
}

func (c *TokenCache) deleteAsync(key string) {
	if c.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
		defer cancel()
		if err := c.store.DeleteToken(ctx, key); err != nil {
			log.Printf("[TokenCache] durable delete failed for %s: %v", key, err)
		}
	}()
}

func (c *TokenCache) notify(token *CachedToken) {
	if c.registry == nil {
		return
	}
	cp := *token
	c.registry.Notify(TokenEvent{
		Status: TokenStatus(&cp, c.now(), c.expiringSoon),
		Token:  &cp,
	})
}

func (c *TokenCache) notifyMissing() {
	if c.registry == nil {
		return
	}
	c.registry.Notify(TokenEvent{Status: domain.TokenStatusMissing})
}

// armWatch schedules the expiring warning at expiresAt minus the threshold.
// The callback re-checks that the same token is still cached: a refresh that
// landed in between supersedes the warning.
func (c *TokenCache) armWatch(key string, token *CachedToken) {
	if c.watch == nil {
		return
	}
	fireIn := token.ExpiresAt.Add(-c.expiringSoon).Sub(c.now())
	if fireIn <= 0 {
		// Already inside the warning window; the set event said so.
		return
	}
	value := token.Value
	expiresAt := token.ExpiresAt
	c.watch.Arm(key, fireIn, func() {
		c.mu.RLock()
		entry := c.entries[key]
		current := entry != nil && entry.Value == value && entry.ExpiresAt.Equal(expiresAt)
		c.mu.RUnlock()
		if !current || !entry.Valid(c.now()) {
			return
		}
		log.Printf("[TokenCache] token for %s expiring soon (at %s)", key, expiresAt.Format(time.RFC3339))
		c.notify(entry)
	})
}
