//go:build wireinject
// +build wireinject

package main

import (
	"io"
	"log"
	"net/http"

	"github.com/Wei-Shaw/tokengate/internal/config"
	"github.com/Wei-Shaw/tokengate/internal/handler"
	"github.com/Wei-Shaw/tokengate/internal/repository"
	"github.com/Wei-Shaw/tokengate/internal/server"
	"github.com/Wei-Shaw/tokengate/internal/server/middleware"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// Application bundles everything main needs: the HTTP server, the components
// it starts after boot, and the ordered teardown.
type Application struct {
	Server      *http.Server
	Config      *config.Config
	Gateway     *service.TokenGatewayService
	Refresh     *service.TokenRefreshService
	Maintenance *service.TokenMaintenanceService
	Cleanup     func()
}

func initializeApplication(buildInfo handler.BuildInfo) (*Application, error) {
	wire.Build(
		// Infrastructure layer ProviderSets
		config.ProviderSet,

		// Business layer ProviderSets
		repository.ProviderSet,
		service.ProviderSet,
		middleware.ProviderSet,
		handler.ProviderSet,

		// Server layer ProviderSet
		server.ProviderSet,

		// Cleanup function provider
		provideCleanup,

		// Application struct
		wire.Struct(new(Application), "Server", "Config", "Gateway", "Refresh", "Maintenance", "Cleanup"),
	)
	return nil, nil
}

func provideCleanup(
	rdb *redis.Client,
	store service.TokenStore,
	watch *service.ExpiryWatchService,
	refresh *service.TokenRefreshService,
	maintenance *service.TokenMaintenanceService,
) func() {
	return func() {
		// Cleanup steps in reverse dependency order
		cleanupSteps := []struct {
			name string
			fn   func() error
		}{
			{"TokenRefreshService", func() error {
				refresh.Stop()
				return nil
			}},
			{"TokenMaintenanceService", func() error {
				maintenance.Stop()
				return nil
			}},
			{"ExpiryWatchService", func() error {
				watch.Stop()
				return nil
			}},
			{"TokenStore", func() error {
				if closer, ok := store.(io.Closer); ok {
					return closer.Close()
				}
				return nil
			}},
			{"Redis", func() error {
				if rdb == nil {
					return nil
				}
				return rdb.Close()
			}},
		}

		for _, step := range cleanupSteps {
			if err := step.fn(); err != nil {
				log.Printf("[Cleanup] %s failed: %v", step.name, err)
				// Continue with remaining cleanup steps even if one fails
			} else {
				log.Printf("[Cleanup] %s succeeded", step.name)
			}
		}
	}
}
