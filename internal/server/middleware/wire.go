package middleware

import (
	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for middleware.
var ProviderSet = wire.NewSet(
	NewAdminAuthMiddleware,
)
