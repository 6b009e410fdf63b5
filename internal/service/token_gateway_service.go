package service

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/pkg/errors"
)

const (
	fallbackAcquireTimeout = 10 * time.Second
	fallbackMaxRetries     = 3
	fallbackRetryBackoff   = 500 * time.Millisecond
)

// TokenGatewayService is the acquisition facade. Every consumer goes through
// GetToken; concurrent acquisitions for the same tenant collapse into one
// issuance via singleflight, and a valid cached token is served without any
// network traffic.
type TokenGatewayService struct {
	cache     *TokenCache
	credStore CredentialStore
	issuer    IssuanceClient
	registry  *SubscriberRegistry

	flight singleflight.Group
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	defaultTimeout time.Duration
	defaultRetries int
	baseBackoff    time.Duration
}

func NewTokenGatewayService(cache *TokenCache, credStore CredentialStore, issuer IssuanceClient, registry *SubscriberRegistry, cfg *config.Config) *TokenGatewayService {
	s := &TokenGatewayService{
		cache:          cache,
		credStore:      credStore,
		issuer:         issuer,
		registry:       registry,
		now:            time.Now,
		defaultTimeout: cfg.Issuer.Timeout(),
		defaultRetries: cfg.Issuer.MaxRetries,
		baseBackoff:    cfg.Issuer.RetryBackoff(),
	}
	if s.defaultTimeout <= 0 {
		s.defaultTimeout = fallbackAcquireTimeout
	}
	if s.defaultRetries <= 0 {
		s.defaultRetries = fallbackMaxRetries
	}
	if s.baseBackoff <= 0 {
		s.baseBackoff = fallbackRetryBackoff
	}
	return s
}

// GetToken returns a usable access token for the configured tenant, issuing
// one if the cache cannot serve. The call never returns a transport error
// directly; failures come back classified inside the result.
func (s *TokenGatewayService) GetToken(ctx context.Context, opts GetTokenOptions) *TokenResult {
	mode := opts.Mode
	if mode == "" {
		mode = domain.AcquireModeSilent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = s.defaultRetries
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	creds, err := s.credStore.LoadCredentials(ctx)
	if err != nil {
		return failure(errors.FromError(err))
	}
	if creds.Empty() {
		log.Printf("[TokenGateway] no credentials configured (mode=%s)", mode)
		return failure(errors.NoCredentials("no credentials configured"))
	}

	key := creds.CacheKey()
	if !opts.ForceRefresh {
		if token := s.cache.Get(key); token != nil {
			return success(token).withTenant(key)
		}
	}

	value, err, shared := s.flight.Do(key, func() (any, error) {
		return s.acquire(ctx, key, creds, opts.ForceRefresh, retries)
	})
	if err != nil {
		return failure(errors.FromError(err)).withTenant(key)
	}
	token := value.(*CachedToken)
	if shared {
		log.Printf("[TokenGateway] coalesced acquisition for %s", key)
	}
	return success(token).withTenant(key)
}

// acquire runs inside the singleflight group: one execution per tenant key at
// a time, its outcome shared by every waiter.
func (s *TokenGatewayService) acquire(ctx context.Context, key string, creds *Credentials, force bool, retries int) (*CachedToken, error) {
	if !force {
		// Double-check: another flight may have landed between our cache
		// miss and joining the group.
		if token := s.cache.Get(key); token != nil {
			return token, nil
		}
		if token := s.cache.Restore(ctx, key); token != nil {
			return token, nil
		}
	}

	policy := &RetryPolicy{MaxAttempts: retries, BaseDelay: s.baseBackoff, Sleep: s.sleep}
	issued, err := policy.Do(ctx, func(ctx context.Context) (*IssuedToken, error) {
		return s.issuer.Issue(ctx, creds)
	})
	if err != nil {
		if errors.IsCode(err, errors.CodeUnauthorized) {
			// Rejected credentials poison the cache; drop whatever is there
			// so nothing keeps serving a token the issuer just disowned.
			s.cache.Evict(key)
			log.Printf("[TokenGateway] issuer rejected credentials for %s, cache evicted", key)
		}
		return nil, err
	}

	now := s.now()
	token := &CachedToken{
		Value:         issued.AccessToken,
		IssuedAt:      now,
		ExpiresAt:     now.Add(time.Duration(issued.ExpiresIn) * time.Second),
		EnvironmentID: creds.EnvironmentID,
		ClientID:      creds.ClientID,
	}
	s.cache.Set(token)
	log.Printf("[TokenGateway] issued token for %s (expires %s)", key, token.ExpiresAt.Format(time.RFC3339))
	return token, nil
}

// Subscribe registers cb for token state changes and immediately invokes it
// with the current state, so subscribers never start blind. The returned
// function unsubscribes; calling it more than once is harmless.
func (s *TokenGatewayService) Subscribe(cb func(TokenEvent)) func() {
	unsubscribe := s.registry.Subscribe(cb)
	cb(s.currentEvent())
	return unsubscribe
}

func (s *TokenGatewayService) currentEvent() TokenEvent {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	creds, err := s.credStore.LoadCredentials(ctx)
	if err != nil || creds.Empty() {
		return TokenEvent{Status: domain.TokenStatusMissing}
	}
	token := s.cache.Get(creds.CacheKey())
	return TokenEvent{
		Status: TokenStatus(token, s.now(), s.cache.ExpiringSoonThreshold()),
		Token:  token,
	}
}

// RefreshIfNeeded acquires a fresh token when the cached one is missing or
// inside the expiring window. Reports whether an acquisition ran. Used by the
// auto-refresher; callers there swallow failures.
func (s *TokenGatewayService) RefreshIfNeeded(ctx context.Context) (*TokenResult, bool) {
	creds, err := s.credStore.LoadCredentials(ctx)
	if err != nil || creds.Empty() {
		return nil, false
	}

	token := s.cache.Get(creds.CacheKey())
	switch {
	case token == nil:
		// Missing entirely; a plain acquisition may still be satisfied from
		// the durable store without bothering the issuer.
		return s.GetToken(ctx, GetTokenOptions{}), true
	case token.ExpiringSoon(s.now(), s.cache.ExpiringSoonThreshold()):
		return s.GetToken(ctx, GetTokenOptions{ForceRefresh: true}), true
	default:
		return nil, false
	}
}

// WarmCache restores the configured tenant's persisted token into memory
// without issuing. Reports whether a usable token was restored. Called once
// at startup so a restart does not cost an issuance.
func (s *TokenGatewayService) WarmCache(ctx context.Context) bool {
	creds, err := s.credStore.LoadCredentials(ctx)
	if err != nil || creds.Empty() {
		return false
	}
	return s.cache.Restore(ctx, creds.CacheKey()) != nil
}

// TenantTokenStatus describes one cached tenant token for inspection. Token
// material is never included, only a masked preview.
type TenantTokenStatus struct {
	TenantKey        string     `json:"tenant_key,omitempty"`
	Status           string     `json:"status"`
	TokenPreview     string     `json:"token_preview,omitempty"`
	IssuedAt         *time.Time `json:"issued_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ExpiresInSeconds int64      `json:"expires_in_seconds,omitempty"`
}

// Status reports the configured tenant's token state without triggering any
// acquisition.
func (s *TokenGatewayService) Status(ctx context.Context) *TenantTokenStatus {
	creds, err := s.credStore.LoadCredentials(ctx)
	if err != nil || creds.Empty() {
		return &TenantTokenStatus{Status: domain.TokenStatusMissing}
	}
	key := creds.CacheKey()
	return s.statusFor(key, s.cache.Get(key))
}

// CacheStatus reports every cached tenant entry.
func (s *TokenGatewayService) CacheStatus() []*TenantTokenStatus {
	entries := s.cache.Entries()
	out := make([]*TenantTokenStatus, 0, len(entries))
	for key, token := range entries {
		out = append(out, s.statusFor(key, token))
	}
	return out
}

// ClearCache evicts every cached token and returns how many were dropped.
func (s *TokenGatewayService) ClearCache() int {
	count := s.cache.Clear()
	log.Printf("[TokenGateway] cache cleared (%d entries)", count)
	return count
}

func (s *TokenGatewayService) statusFor(key string, token *CachedToken) *TenantTokenStatus {
	now := s.now()
	st := &TenantTokenStatus{
		TenantKey: key,
		Status:    TokenStatus(token, now, s.cache.ExpiringSoonThreshold()),
	}
	if token != nil {
		st.TokenPreview = token.Preview()
		issuedAt := token.IssuedAt
		expiresAt := token.ExpiresAt
		st.IssuedAt = &issuedAt
		st.ExpiresAt = &expiresAt
		if remaining := expiresAt.Sub(now); remaining > 0 {
			st.ExpiresInSeconds = int64(remaining.Seconds())
		}
	}
	return st
}

func success(token *CachedToken) *TokenResult {
	expiresAt := token.ExpiresAt
	return &TokenResult{Success: true, Token: token.Value, ExpiresAt: &expiresAt}
}

func failure(ge *errors.GatewayError) *TokenResult {
	return &TokenResult{
		Success:          false,
		Error:            ge,
		NeedsInteraction: ge.Code == errors.CodeNoCredentials || ge.Code == errors.CodeInvalidCredentials,
	}
}
