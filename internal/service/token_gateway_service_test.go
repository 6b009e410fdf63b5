package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/pkg/errors"
)

// issueOutcome scripts one fake issuance result. The last outcome repeats.
type issueOutcome struct {
	token *IssuedToken
	err   error
}

// fakeIssuer is a scripted IssuanceClient. It validates credentials the way
// the real client does (before any "network") and counts only the calls that
// get past validation.
type fakeIssuer struct {
	mu       sync.Mutex
	calls    int
	delay    time.Duration
	outcomes []issueOutcome
}

func (f *fakeIssuer) Issue(ctx context.Context, creds *Credentials) (*IssuedToken, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls++
	idx := f.calls - 1
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	outcome := f.outcomes[idx]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, errors.Timeout("token issuance timed out").WithCause(ctx.Err())
		}
	}
	if outcome.err != nil {
		return nil, outcome.err
	}
	cp := *outcome.token
	return &cp, nil
}

func (f *fakeIssuer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func issuerReturning(outcomes ...issueOutcome) *fakeIssuer {
	return &fakeIssuer{outcomes: outcomes}
}

func issuedOK(value string) issueOutcome {
	return issueOutcome{token: &IssuedToken{AccessToken: value, ExpiresIn: 3600}}
}

// staticCreds is a CredentialStore serving a fixed credential set.
type staticCreds struct{ creds *Credentials }

func (s staticCreds) LoadCredentials(ctx context.Context) (*Credentials, error) {
	if s.creds == nil {
		return nil, nil
	}
	cp := *s.creds
	return &cp, nil
}

func gatewayCreds() *Credentials {
	return &Credentials{EnvironmentID: "env-1", ClientID: "client-1", ClientSecret: "s3cret", Region: domain.RegionUS}
}

func gatewayTestConfig() *config.Config {
	return &config.Config{
		Issuer: config.IssuerConfig{
			TimeoutSeconds:         5,
			MaxRetries:             3,
			RetryBackoffMS:         100,
			DefaultTokenTTLSeconds: 3600,
		},
		Cache: config.CacheConfig{
			ExpiringSoonSeconds:   300,
			PersistTimeoutSeconds: 5,
		},
	}
}

func newGatewayForTest(issuer IssuanceClient, credStore CredentialStore, store TokenStore) (*TokenGatewayService, *TokenCache, *SubscriberRegistry) {
	if store == nil {
		store = newMemStore()
	}
	cfg := gatewayTestConfig()
	registry := NewSubscriberRegistry()
	cache := NewTokenCache(store, registry, nil, cfg)
	gw := NewTokenGatewayService(cache, credStore, issuer, registry, cfg)
	// Tests assert on recorded delays instead of sleeping for real.
	gw.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return gw, cache, registry
}

func TestGetTokenIssuesThenServesFromCache(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-first"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, result.Success)
	require.Equal(t, "tok-first", result.Token)
	require.NotNil(t, result.ExpiresAt)
	require.Equal(t, "env-1:client-1", result.TenantKey)
	require.Equal(t, 1, issuer.callCount())

	// Second call is a pure cache hit: no issuer traffic at all.
	again := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, again.Success)
	require.Equal(t, "tok-first", again.Token)
	require.Equal(t, "env-1:client-1", again.TenantKey)
	require.Equal(t, 1, issuer.callCount())
}

func TestGetTokenCoalescesConcurrentCallers(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-shared"))
	issuer.delay = 50 * time.Millisecond
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	const callers = 5
	results := make([]*TokenResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gw.GetToken(context.Background(), GetTokenOptions{})
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.True(t, result.Success, "caller %d failed: %+v", i, result.Error)
		require.Equal(t, "tok-shared", result.Token)
	}
	require.Equal(t, 1, issuer.callCount())
}

func TestGetTokenNoCredentials(t *testing.T) {
	issuer := issuerReturning(issuedOK("never"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{nil}, nil)

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	require.Equal(t, errors.CodeNoCredentials, result.Error.Code)
	require.True(t, result.NeedsInteraction)
	require.False(t, result.Error.Retryable)
	require.Equal(t, 0, issuer.callCount())
}

func TestGetTokenInvalidCredentialsSkipIssuance(t *testing.T) {
	incomplete := gatewayCreds()
	incomplete.ClientSecret = ""
	issuer := issuerReturning(issuedOK("never"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{incomplete}, nil)

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.False(t, result.Success)
	require.Equal(t, errors.CodeInvalidCredentials, result.Error.Code)
	require.True(t, result.NeedsInteraction)
	require.Equal(t, 0, issuer.callCount())
}

func TestGetTokenRetriesThenSucceeds(t *testing.T) {
	issuer := issuerReturning(
		issueOutcome{err: errors.Server("issuer melted")},
		issueOutcome{err: errors.Network("connection reset")},
		issuedOK("tok-third"),
	)
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	var delays []time.Duration
	gw.sleep = recordingSleep(&delays)

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, result.Success)
	require.Equal(t, "tok-third", result.Token)
	require.Equal(t, 3, issuer.callCount())
	// Exponential backoff off the configured 100ms base.
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestGetTokenServerErrorExhaustsRetries(t *testing.T) {
	issuer := issuerReturning(issueOutcome{err: errors.Server("still down")})
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	result := gw.GetToken(context.Background(), GetTokenOptions{MaxRetries: 3})
	require.False(t, result.Success)
	require.Equal(t, errors.CodeServerError, result.Error.Code)
	require.True(t, result.Error.Retryable)
	require.Equal(t, 3, issuer.callCount())
}

func TestGetTokenUnauthorizedEvictsAndStops(t *testing.T) {
	issuer := issuerReturning(issueOutcome{err: errors.Unauthorized("invalid_client")})
	gw, cache, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	cache.Set(&CachedToken{
		Value:         "tok-stale",
		IssuedAt:      time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
		EnvironmentID: "env-1",
		ClientID:      "client-1",
	})

	result := gw.GetToken(context.Background(), GetTokenOptions{ForceRefresh: true})
	require.False(t, result.Success)
	require.Equal(t, errors.CodeUnauthorized, result.Error.Code)
	require.False(t, result.Error.Retryable)
	require.False(t, result.NeedsInteraction)
	// Terminal: one attempt, and the poisoned cache entry is gone.
	require.Equal(t, 1, issuer.callCount())
	require.Nil(t, cache.Get("env-1:client-1"))
}

func TestGetTokenOverallTimeout(t *testing.T) {
	issuer := issuerReturning(issueOutcome{err: errors.Server("slow meltdown")})
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)
	// Real context-aware sleeping; the 100ms backoff overruns the budget.
	gw.sleep = nil

	result := gw.GetToken(context.Background(), GetTokenOptions{Timeout: 50 * time.Millisecond})
	require.False(t, result.Success)
	require.Equal(t, errors.CodeTimeout, result.Error.Code)
	require.True(t, result.Error.Retryable)
	require.Equal(t, 1, issuer.callCount())
}

func TestGetTokenExpiredCacheReissues(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-new"))
	gw, cache, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	cache.Set(&CachedToken{
		Value:         "tok-old",
		IssuedAt:      time.Now().Add(-2 * time.Hour),
		ExpiresAt:     time.Now().Add(-time.Hour),
		EnvironmentID: "env-1",
		ClientID:      "client-1",
	})

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, result.Success)
	require.Equal(t, "tok-new", result.Token)
	require.Equal(t, 1, issuer.callCount())
}

func TestGetTokenRestoresFromDurableStore(t *testing.T) {
	store := newMemStore()
	durable := &CachedToken{
		Value:         "tok-durable",
		IssuedAt:      time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
		EnvironmentID: "env-1",
		ClientID:      "client-1",
	}
	require.NoError(t, store.SaveToken(context.Background(), "env-1:client-1", durable, time.Hour))

	issuer := issuerReturning(issuedOK("never"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, store)

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, result.Success)
	require.Equal(t, "tok-durable", result.Token)
	require.Equal(t, 0, issuer.callCount())
}

func TestGetTokenForceRefreshBypassesCache(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-old"), issuedOK("tok-new"))
	gw, cache, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	first := gw.GetToken(context.Background(), GetTokenOptions{})
	require.Equal(t, "tok-old", first.Token)

	refreshed := gw.GetToken(context.Background(), GetTokenOptions{ForceRefresh: true})
	require.True(t, refreshed.Success)
	require.Equal(t, "tok-new", refreshed.Token)
	require.Equal(t, 2, issuer.callCount())
	require.Equal(t, "tok-new", cache.Get("env-1:client-1").Value)
}

func TestSubscribeDeliversInitialState(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-abc"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	sink := &eventSink{}
	unsubscribe := gw.Subscribe(sink.record)
	defer unsubscribe()

	// The initial state lands before Subscribe returns.
	statuses := sink.statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, domain.TokenStatusMissing, statuses[0])

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, result.Success)

	statuses = sink.statuses()
	require.Len(t, statuses, 2)
	require.Equal(t, domain.TokenStatusValid, statuses[1])

	last, ok := sink.last()
	require.True(t, ok)
	require.Equal(t, "tok-abc", last.Token.Value)
}

func TestSubscribeUnsubscribeStopsDelivery(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-abc"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	sink := &eventSink{}
	unsubscribe := gw.Subscribe(sink.record)
	unsubscribe()
	unsubscribe() // second call is a no-op

	gw.GetToken(context.Background(), GetTokenOptions{})
	require.Len(t, sink.statuses(), 1) // only the initial snapshot
}

func TestRefreshIfNeededFreshTokenIsNoop(t *testing.T) {
	issuer := issuerReturning(issuedOK("never"))
	gw, cache, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	cache.Set(&CachedToken{
		Value:         "tok-fresh",
		IssuedAt:      time.Now(),
		ExpiresAt:     time.Now().Add(2 * time.Hour),
		EnvironmentID: "env-1",
		ClientID:      "client-1",
	})

	result, ran := gw.RefreshIfNeeded(context.Background())
	require.False(t, ran)
	require.Nil(t, result)
	require.Equal(t, 0, issuer.callCount())
}

func TestRefreshIfNeededRefreshesExpiring(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-renewed"))
	gw, cache, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	// Inside the 300s expiring window.
	cache.Set(&CachedToken{
		Value:         "tok-aging",
		IssuedAt:      time.Now().Add(-time.Hour),
		ExpiresAt:     time.Now().Add(200 * time.Second),
		EnvironmentID: "env-1",
		ClientID:      "client-1",
	})

	result, ran := gw.RefreshIfNeeded(context.Background())
	require.True(t, ran)
	require.True(t, result.Success)
	require.Equal(t, "tok-renewed", result.Token)
	require.Equal(t, 1, issuer.callCount())
	require.Equal(t, "tok-renewed", cache.Get("env-1:client-1").Value)
}

func TestRefreshIfNeededAcquiresWhenMissing(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-cold"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	result, ran := gw.RefreshIfNeeded(context.Background())
	require.True(t, ran)
	require.True(t, result.Success)
	require.Equal(t, "tok-cold", result.Token)
}

func TestRefreshIfNeededNoCredentials(t *testing.T) {
	issuer := issuerReturning(issuedOK("never"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{nil}, nil)

	result, ran := gw.RefreshIfNeeded(context.Background())
	require.False(t, ran)
	require.Nil(t, result)
	require.Equal(t, 0, issuer.callCount())
}

func TestStatusReporting(t *testing.T) {
	issuer := issuerReturning(issuedOK("tok-abcdefghijklmnop"))
	gw, _, _ := newGatewayForTest(issuer, staticCreds{gatewayCreds()}, nil)

	st := gw.Status(context.Background())
	require.Equal(t, domain.TokenStatusMissing, st.Status)
	require.Empty(t, st.TokenPreview)

	result := gw.GetToken(context.Background(), GetTokenOptions{})
	require.True(t, result.Success)

	st = gw.Status(context.Background())
	require.Equal(t, domain.TokenStatusValid, st.Status)
	require.Equal(t, "env-1:client-1", st.TenantKey)
	require.NotContains(t, st.TokenPreview, "abcdefghijklmnop")
	require.NotNil(t, st.ExpiresAt)
	require.Greater(t, st.ExpiresInSeconds, int64(3500))

	entries := gw.CacheStatus()
	require.Len(t, entries, 1)
	require.Equal(t, "env-1:client-1", entries[0].TenantKey)

	require.Equal(t, 1, gw.ClearCache())
	st = gw.Status(context.Background())
	require.Equal(t, domain.TokenStatusMissing, st.Status)
}
