package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminSubprotocol is the websocket subprotocol admin clients offer. The
// admin key rides alongside it as "key.<api-key>" because browsers cannot
// set an Authorization header on websocket upgrades.
const AdminSubprotocol = "tokengate-admin"

// AdminAuthMiddleware guards the admin API surface with a static bearer key.
type AdminAuthMiddleware gin.HandlerFunc

func NewAdminAuthMiddleware(cfg *config.Config) AdminAuthMiddleware {
	apiKey := strings.TrimSpace(cfg.Admin.APIKey)
	return func(c *gin.Context) {
		if apiKey == "" {
			response.Error(c, http.StatusForbidden, "admin API disabled: no api key configured")
			c.Abort()
			return
		}
		presented := presentedAdminKey(c)
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			response.Unauthorized(c, "invalid admin api key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func presentedAdminKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if isWebsocketUpgrade(c.Request) {
		for _, proto := range websocketSubprotocols(c.Request) {
			if key, ok := strings.CutPrefix(proto, "key."); ok {
				return key
			}
		}
	}
	return ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func websocketSubprotocols(r *http.Request) []string {
	header := r.Header.Get("Sec-WebSocket-Protocol")
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
