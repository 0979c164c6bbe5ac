// Package injector assembles a ready-to-start runtime from a config.
package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/extension"
)

// RuntimeSet provides everything NewRuntime needs from a Config.
var RuntimeSet = wire.NewSet(ProvideLogger, ProvideBus, extension.NewRuntime)

// ProvideLogger builds the process logger at the configured level.
func ProvideLogger(cfg extension.Config) log.Log {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

func ProvideBus() bus.EventBus {
	return bus.New()
}
