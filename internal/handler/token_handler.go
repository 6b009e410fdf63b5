package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/pkg/ctxkey"
	"github.com/Wei-Shaw/tokengate/internal/pkg/response"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/gin-gonic/gin"
)

// TokenHandler exposes token acquisition over HTTP.
type TokenHandler struct {
	gateway *service.TokenGatewayService
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(gateway *service.TokenGatewayService) *TokenHandler {
	return &TokenHandler{gateway: gateway}
}

// AcquireRequest is the acquisition request payload. All fields are optional;
// an empty body acquires with the configured defaults.
type AcquireRequest struct {
	Mode         string `json:"mode" binding:"omitempty,oneof=silent interactive"`
	ForceRefresh bool   `json:"force_refresh"`
	TimeoutMS    int    `json:"timeout_ms" binding:"omitempty,min=1,max=300000"`
	MaxRetries   int    `json:"max_retries" binding:"omitempty,min=1,max=10"`
}

// AcquireResponse mirrors the gateway result on the wire. Exactly one of
// Token or Error is set, selected by Success.
type AcquireResponse struct {
	Success          bool                `json:"success"`
	Token            string              `json:"token,omitempty"`
	ExpiresAt        *time.Time          `json:"expires_at,omitempty"`
	NeedsInteraction bool                `json:"needs_interaction"`
	Error            *response.ErrorBody `json:"error,omitempty"`
}

// Acquire returns a usable token, issuing one when the cache cannot serve.
// POST /api/v1/token/acquire
func (h *TokenHandler) Acquire(c *gin.Context) {
	var req AcquireRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request: "+err.Error())
			return
		}
	}

	result := h.gateway.GetToken(c.Request.Context(), service.GetTokenOptions{
		Mode:         req.Mode,
		ForceRefresh: req.ForceRefresh,
		Timeout:      time.Duration(req.TimeoutMS) * time.Millisecond,
		MaxRetries:   req.MaxRetries,
	})
	tagTenant(c, result.TenantKey)

	resp := AcquireResponse{
		Success:          result.Success,
		Token:            result.Token,
		ExpiresAt:        result.ExpiresAt,
		NeedsInteraction: result.NeedsInteraction,
	}
	if result.Success {
		c.JSON(http.StatusOK, resp)
		return
	}

	// The classified error chooses the HTTP status; the envelope shape stays
	// identical so clients parse one thing.
	body := response.BodyFrom(result.Error)
	resp.Error = &body
	c.JSON(result.Error.Status, resp)
}

// Status reports the configured tenant's token state without acquiring.
// The token value itself never appears here, only a masked preview.
// GET /api/v1/token/status
func (h *TokenHandler) Status(c *gin.Context) {
	st := h.gateway.Status(c.Request.Context())
	tagTenant(c, st.TenantKey)
	response.Success(c, st)
}

// tagTenant puts the resolved tenant key on the request context so the access
// log can correlate requests per tenant.
func tagTenant(c *gin.Context, key string) {
	if key == "" {
		return
	}
	ctx := context.WithValue(c.Request.Context(), ctxkey.TenantKey, key)
	c.Request = c.Request.WithContext(ctx)
}
