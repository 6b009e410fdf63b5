package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/domain"
	"github.com/Wei-Shaw/tokengate/internal/pkg/errors"
)

// Credentials identifies one tenant to the token issuer. All four fields must
// be present before an issuance request goes out.
type Credentials struct {
	EnvironmentID string `json:"environment_id"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"-"`
	Region        string `json:"region"`
}

// Empty reports whether no credential material is configured at all.
// Partially filled credentials are not empty; they fail Validate instead.
func (c *Credentials) Empty() bool {
	if c == nil {
		return true
	}
	return c.EnvironmentID == "" && c.ClientID == "" && c.ClientSecret == ""
}

// Validate checks completeness without touching the network.
func (c *Credentials) Validate() error {
	if c == nil {
		return errors.InvalidCredentials("credentials are not set")
	}
	var missing []string
	if strings.TrimSpace(c.EnvironmentID) == "" {
		missing = append(missing, "environment_id")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return errors.InvalidCredentials(fmt.Sprintf("incomplete credentials: missing %s", strings.Join(missing, ", ")))
	}
	if !domain.KnownRegion(c.Region) {
		return errors.InvalidCredentials(fmt.Sprintf("unknown region %q", c.Region))
	}
	return nil
}

// CacheKey returns the tenant identity key used for caching and request
// coalescing. Tokens are scoped per environment and client.
func (c *Credentials) CacheKey() string {
	return c.EnvironmentID + ":" + c.ClientID
}

// CachedToken is one issued access token together with its lifetime and the
// tenant it was issued for.
type CachedToken struct {
	Value         string    `json:"value"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	EnvironmentID string    `json:"environment_id"`
	ClientID      string    `json:"client_id"`
}

// Valid reports whether the token is still usable at the given instant.
func (t *CachedToken) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}

// ExpiringSoon reports whether the token expires within the threshold.
func (t *CachedToken) ExpiringSoon(now time.Time, threshold time.Duration) bool {
	if !t.Valid(now) {
		return false
	}
	return !now.Add(threshold).Before(t.ExpiresAt)
}

// MatchesTenant reports whether the token was issued for the given tenant.
// A cached token for a different tenant must be treated as a miss, never
// served across tenants.
func (t *CachedToken) MatchesTenant(environmentID, clientID string) bool {
	return t != nil && t.EnvironmentID == environmentID && t.ClientID == clientID
}

// TenantKey returns the cache key of the tenant this token belongs to,
// matching Credentials.CacheKey for the same tenant.
func (t *CachedToken) TenantKey() string {
	return t.EnvironmentID + ":" + t.ClientID
}

// Preview returns a log-safe abbreviation of the token value.
func (t *CachedToken) Preview() string {
	if t == nil || t.Value == "" {
		return ""
	}
	if len(t.Value) <= 10 {
		return t.Value[:1] + "..."
	}
	return t.Value[:6] + "..." + t.Value[len(t.Value)-4:]
}

// TokenStatus classifies a cached token as valid, expiring or missing.
func TokenStatus(t *CachedToken, now time.Time, threshold time.Duration) string {
	switch {
	case !t.Valid(now):
		return domain.TokenStatusMissing
	case t.ExpiringSoon(now, threshold):
		return domain.TokenStatusExpiring
	default:
		return domain.TokenStatusValid
	}
}

// IssuedToken is the issuer's successful response before caching.
type IssuedToken struct {
	AccessToken string
	ExpiresIn   int64 // seconds; 0 means the issuer did not say
}

// TokenEvent is delivered to subscribers whenever the cached token state
// changes. Token is nil when the cache holds nothing for the tenant.
type TokenEvent struct {
	Status string
	Token  *CachedToken
}

// GetTokenOptions control a single acquisition attempt.
type GetTokenOptions struct {
	// Mode is silent or interactive. Silent never prompts; it reports
	// NeedsInteraction when credentials are absent or unusable.
	Mode         string
	ForceRefresh bool
	// Timeout bounds the whole acquisition including retries. Zero means the
	// configured default.
	Timeout time.Duration
	// MaxRetries caps issuance attempts. Zero means the configured default.
	MaxRetries int
}

// TokenResult is the outcome of one acquisition. Exactly one of Token or
// Error is meaningful, selected by Success.
type TokenResult struct {
	Success          bool                 `json:"success"`
	Token            string               `json:"token,omitempty"`
	ExpiresAt        *time.Time           `json:"expires_at,omitempty"`
	Error            *errors.GatewayError `json:"error,omitempty"`
	NeedsInteraction bool                 `json:"needs_interaction,omitempty"`

	// TenantKey is the resolved tenant identity, set once credentials load.
	// Off the wire; the HTTP layer uses it for log correlation.
	TenantKey string `json:"-"`
}

func (r *TokenResult) withTenant(key string) *TokenResult {
	r.TenantKey = key
	return r
}
