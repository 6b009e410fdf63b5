package handler

import (
	"github.com/Wei-Shaw/tokengate/internal/handler/admin"

	"github.com/google/wire"
)

// BuildInfo carries the ldflags build identity from main into the handlers.
type BuildInfo struct {
	Version   string
	BuildType string
}

// AdminHandlers groups the operator-facing handlers.
type AdminHandlers struct {
	Cache   *admin.CacheHandler
	System  *admin.SystemHandler
	Issuer  *admin.IssuerHandler
	Refresh *admin.RefreshHandler
}

// Handlers groups every HTTP handler for router registration.
type Handlers struct {
	Token  *TokenHandler
	Events *EventsHandler
	Admin  *AdminHandlers
}

// ProvideSystemHandler creates admin.SystemHandler with the build identity
func ProvideSystemHandler(buildInfo BuildInfo) *admin.SystemHandler {
	return admin.NewSystemHandler(admin.BuildInfo{
		Version:   buildInfo.Version,
		BuildType: buildInfo.BuildType,
	})
}

// ProvideAdminHandlers creates the AdminHandlers struct
func ProvideAdminHandlers(
	cacheHandler *admin.CacheHandler,
	systemHandler *admin.SystemHandler,
	issuerHandler *admin.IssuerHandler,
	refreshHandler *admin.RefreshHandler,
) *AdminHandlers {
	return &AdminHandlers{
		Cache:   cacheHandler,
		System:  systemHandler,
		Issuer:  issuerHandler,
		Refresh: refreshHandler,
	}
}

// ProvideHandlers creates the Handlers struct
func ProvideHandlers(
	tokenHandler *TokenHandler,
	eventsHandler *EventsHandler,
	adminHandlers *AdminHandlers,
) *Handlers {
	return &Handlers{
		Token:  tokenHandler,
		Events: eventsHandler,
		Admin:  adminHandlers,
	}
}

// ProviderSet is the Wire provider set for all handlers
var ProviderSet = wire.NewSet(
	NewTokenHandler,
	NewEventsHandler,

	admin.NewCacheHandler,
	admin.NewIssuerHandler,
	admin.NewRefreshHandler,
	ProvideSystemHandler,

	ProvideAdminHandlers,
	ProvideHandlers,
)
