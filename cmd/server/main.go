package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wei-Shaw/tokengate/internal/handler"
	"github.com/Wei-Shaw/tokengate/internal/pkg/logger"
)

// Populated at build time via -ldflags.
var (
	Version   = "dev"
	BuildType = "source"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Bootstrap logging covers everything that happens before the config
	// is loaded, config errors included.
	logger.InitBootstrap()

	app, err := initializeApplication(handler.BuildInfo{Version: Version, BuildType: BuildType})
	if err != nil {
		log.Fatalf("[Main] failed to initialize application: %v", err)
	}
	defer app.Cleanup()

	if err := logger.Init(logger.OptionsFromConfig(app.Config.Log)); err != nil {
		log.Fatalf("[Main] failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	log.Printf("[Main] tokengate %s (%s) starting", Version, BuildType)

	// Warm the cache from the persistent store before serving so the first
	// acquire after a restart does not pay an issuance round-trip.
	if app.Config.Cache.WarmOnStart {
		warmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if app.Gateway.WarmCache(warmCtx) {
			log.Printf("[Main] token cache warmed from store")
		}
		cancel()
	}

	app.Refresh.Start()
	app.Maintenance.Start()

	go func() {
		log.Printf("[Main] HTTP server listening on %s", app.Config.Server.Address())
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Main] HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[Main] shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Server.Shutdown(ctx); err != nil {
		log.Printf("[Main] graceful shutdown failed: %v", err)
	}

	log.Printf("[Main] server stopped")
}
