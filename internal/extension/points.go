package extension

import (
	"github.com/zeusync/packwork/internal/core/hooks"
	"github.com/zeusync/packwork/internal/core/host"
)

// Host points the extension attaches to.
const (
	InstallFinalization         hooks.Point = host.PointInstallFinalization
	ConstructionJobOffer        hooks.Point = host.PointConstructionJobOffer
	BlueprintDesignation        hooks.Point = host.PointBlueprintDesignation
	GraphicAccessor             hooks.Point = host.PointGraphicAccessor
	ConfigValidation            hooks.Point = host.PointConfigValidation
	ImpliedDefinitionGeneration hooks.Point = host.PointImpliedDefinitionGeneration
)

// Points lists every point in attach order.
func Points() []hooks.Point {
	return []hooks.Point{
		ImpliedDefinitionGeneration,
		ConfigValidation,
		GraphicAccessor,
		BlueprintDesignation,
		ConstructionJobOffer,
		InstallFinalization,
	}
}

// Call argument keys shared with the host.
const (
	ArgAgent        = host.ArgAgent
	ArgConstruction = host.ArgConstruction
	ArgFaction      = host.ArgFaction
	ArgThing        = host.ArgThing
	ArgTask         = host.ArgTask
)
