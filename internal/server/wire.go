package server

import (
	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the HTTP server layer.
var ProviderSet = wire.NewSet(
	NewEngine,
	NewHTTPServer,
)
