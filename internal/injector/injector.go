//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/packwork/internal/extension"
)

func InitializeRuntime(cfg extension.Config) *extension.Runtime {
	wire.Build(RuntimeSet)
	return nil
}
