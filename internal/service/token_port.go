package service

import (
	"context"
	"time"
)

// TokenStore persists cached tokens across restarts. Implementations are
// best-effort durable backends; the in-memory cache stays authoritative and
// store failures never fail an acquisition.
type TokenStore interface {
	// SaveToken upserts the token under the tenant key with the given TTL.
	SaveToken(ctx context.Context, key string, token *CachedToken, ttl time.Duration) error
	// LoadToken returns the stored token, or (nil, nil) when the key is
	// absent or the stored entry has already expired.
	LoadToken(ctx context.Context, key string) (*CachedToken, error)
	DeleteToken(ctx context.Context, key string) error
	// PurgeExpired removes entries whose expiry has passed, up to batchSize
	// per call, and reports how many were removed.
	PurgeExpired(ctx context.Context, batchSize int) (int64, error)
}

// CredentialStore supplies the tenant credentials used for issuance.
// LoadCredentials returns (nil, nil) when no credentials are configured.
type CredentialStore interface {
	LoadCredentials(ctx context.Context) (*Credentials, error)
}

// IssuanceClient performs the network exchange with the token issuer.
// Errors are always classified gateway errors.
type IssuanceClient interface {
	Issue(ctx context.Context, creds *Credentials) (*IssuedToken, error)
}

// IssuerProber checks reachability of the configured issuer for diagnostics.
// An unreachable issuer is a successful probe with Reachable=false; the error
// return is reserved for probes that could not run at all.
type IssuerProber interface {
	Probe(ctx context.Context) (*IssuerProbeResult, error)
}

// IssuerProbeResult describes one reachability check against the issuer.
type IssuerProbeResult struct {
	Endpoint   string `json:"endpoint"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}
