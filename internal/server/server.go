package server

import (
	"log"
	"net/http"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/handler"
	middleware2 "github.com/Wei-Shaw/tokengate/internal/server/middleware"

	"github.com/gin-gonic/gin"
)

// NewEngine builds the gin engine in the configured mode. Recovery is
// installed here; the rest of the middleware chain is applied by SetupRouter.
func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Printf("[Server] invalid trusted_proxies, client IPs will not be resolved through proxies: %v", err)
	}

	return r
}

// NewHTTPServer routes the engine and wraps it in the http.Server.
// Write timeouts stay unset: the websocket event stream holds its connection
// open for the lifetime of the client.
func NewHTTPServer(
	engine *gin.Engine,
	handlers *handler.Handlers,
	adminAuth middleware2.AdminAuthMiddleware,
	cfg *config.Config,
) *http.Server {
	router := SetupRouter(engine, handlers, adminAuth, cfg)
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
}
