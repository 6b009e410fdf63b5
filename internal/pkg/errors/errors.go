// Package errors defines the structured error type returned by the token
// gateway. Every failure that reaches a caller is a *GatewayError carrying a
// stable code, an operator-readable message, and a retryable flag; raw
// transport and parse errors stay attached as the cause and never replace
// the classification.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a gateway failure.
type Code string

const (
	CodeNoCredentials      Code = "NO_CREDENTIALS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeTimeout            Code = "TIMEOUT"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeServerError        Code = "SERVER_ERROR"
	CodeUnknown            Code = "UNKNOWN"
)

// GatewayError is the error contract of the gateway facade.
type GatewayError struct {
	// Status is the HTTP status the API surface responds with.
	Status int
	// Code is the stable machine-readable classification.
	Code Code
	// Message is safe to show to an operator.
	Message string
	// Retryable tells the retry policy whether another attempt may succeed.
	Retryable bool
	// Metadata carries optional diagnostic fields (upstream error code,
	// truncated body, attempt count).
	Metadata map[string]string

	cause error
}

func (e *GatewayError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.cause }

// WithCause attaches the underlying error and returns e for chaining.
func (e *GatewayError) WithCause(err error) *GatewayError {
	e.cause = err
	return e
}

// WithMetadata merges md into the error's metadata and returns e.
func (e *GatewayError) WithMetadata(md map[string]string) *GatewayError {
	if len(md) == 0 {
		return e
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]string, len(md))
	}
	for k, v := range md {
		e.Metadata[k] = v
	}
	return e
}

// New builds a GatewayError with an explicit HTTP status. Prefer the
// per-code constructors below.
func New(status int, code Code, message string, retryable bool) *GatewayError {
	return &GatewayError{Status: status, Code: code, Message: message, Retryable: retryable}
}

// NoCredentials means no credentials are configured at all. The caller must
// obtain credentials before any acquisition can succeed.
func NoCredentials(message string) *GatewayError {
	return New(http.StatusBadRequest, CodeNoCredentials, message, false)
}

// InvalidCredentials means the configured credentials are structurally
// unusable (missing fields, unknown region). Detected before any network IO.
func InvalidCredentials(message string) *GatewayError {
	return New(http.StatusBadRequest, CodeInvalidCredentials, message, false)
}

// Unauthorized means the issuer rejected the credentials (401/403).
// Retrying with the same credentials cannot succeed.
func Unauthorized(message string) *GatewayError {
	return New(http.StatusUnauthorized, CodeUnauthorized, message, false)
}

// Timeout means an issuance attempt exceeded its deadline.
func Timeout(message string) *GatewayError {
	return New(http.StatusGatewayTimeout, CodeTimeout, message, true)
}

// Network means the issuer could not be reached (DNS, dial, reset).
func Network(message string) *GatewayError {
	return New(http.StatusBadGateway, CodeNetworkError, message, true)
}

// Server means the issuer answered 5xx or returned an unusable success body.
func Server(message string) *GatewayError {
	return New(http.StatusBadGateway, CodeServerError, message, true)
}

// Unknown covers everything the taxonomy does not name.
func Unknown(message string) *GatewayError {
	return New(http.StatusInternalServerError, CodeUnknown, message, false)
}

// FromError normalizes any error into a *GatewayError. A nil error returns
// nil; an unclassified error becomes UNKNOWN with the original as cause.
func FromError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return Unknown(err.Error()).WithCause(err)
}

// CodeOf extracts the code, or CodeUnknown for unclassified errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}

// IsRetryable reports whether another attempt may succeed. This is the only
// property the retry policy inspects.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return FromError(err).Retryable
}

// IsCode reports whether err classifies as code.
func IsCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
