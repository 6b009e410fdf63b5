package server

import (
	"net/http"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/handler"
	middleware2 "github.com/Wei-Shaw/tokengate/internal/server/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires middleware and routes onto the engine.
func SetupRouter(
	r *gin.Engine,
	handlers *handler.Handlers,
	adminAuth middleware2.AdminAuthMiddleware,
	cfg *config.Config,
) *gin.Engine {
	r.Use(middleware2.RequestLogger())
	r.Use(middleware2.Logger())
	r.Use(middleware2.CORS(cfg.CORS))
	r.Use(middleware2.SecurityHeaders())

	registerRoutes(r, handlers, adminAuth, cfg)

	return r
}

// registerRoutes registers all HTTP routes
func registerRoutes(
	r *gin.Engine,
	h *handler.Handlers,
	adminAuth middleware2.AdminAuthMiddleware,
	cfg *config.Config,
) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	token := v1.Group("/token")
	{
		token.POST("/acquire", h.Token.Acquire)
		token.GET("/status", h.Token.Status)
	}

	// The event stream is open on keyless deployments; once an admin key is
	// configured every remote consumer must present it (header or websocket
	// subprotocol).
	events := v1.Group("/token/events")
	if cfg.Admin.APIKey != "" {
		events.Use(gin.HandlerFunc(adminAuth))
	}
	events.GET("/ws", h.Events.Stream)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(gin.HandlerFunc(adminAuth))
	{
		adminGroup.POST("/cache/clear", h.Admin.Cache.Clear)
		adminGroup.GET("/cache/status", h.Admin.Cache.Status)
		adminGroup.GET("/system", h.Admin.System.Snapshot)
		adminGroup.GET("/issuer/probe", h.Admin.Issuer.Probe)
		adminGroup.POST("/refresh/start", h.Admin.Refresh.Start)
		adminGroup.POST("/refresh/stop", h.Admin.Refresh.Stop)
	}
}
