package admin

import (
	"github.com/Wei-Shaw/tokengate/internal/pkg/response"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/gin-gonic/gin"
)

// CacheHandler exposes the token cache to operators.
type CacheHandler struct {
	gateway *service.TokenGatewayService
}

// NewCacheHandler creates a new CacheHandler
func NewCacheHandler(gateway *service.TokenGatewayService) *CacheHandler {
	return &CacheHandler{gateway: gateway}
}

// Clear drops every cached token from memory and the durable store. The next
// acquisition issues fresh.
// POST /api/v1/admin/cache/clear
func (h *CacheHandler) Clear(c *gin.Context) {
	cleared := h.gateway.ClearCache()
	response.Success(c, gin.H{
		"cleared": cleared,
	})
}

// Status lists every cached tenant entry with its remaining lifetime. Token
// values are masked.
// GET /api/v1/admin/cache/status
func (h *CacheHandler) Status(c *gin.Context) {
	entries := h.gateway.CacheStatus()
	response.Success(c, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}
