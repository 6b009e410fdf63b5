package config

import "github.com/google/wire"

// ProviderSet exposes configuration loading to the wire graph.
var ProviderSet = wire.NewSet(Load)
