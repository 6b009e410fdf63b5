// Package ctxkey defines the typed keys used with context.Value.
package ctxkey

// Key avoids collisions with other packages' string keys (staticcheck SA1029).
type Key string

const (
	// RequestID is the server-generated or client-supplied request id,
	// set by middleware.RequestLogger and carried through service logs.
	RequestID Key = "ctx_request_id"

	// TenantKey identifies the credential pair (environment + client) a
	// request resolved to. Used for per-tenant log correlation.
	TenantKey Key = "ctx_tenant_key"
)
