// Package host describes the simulation the extension runs inside: the
// world values it reads and the services it queries. The extension never
// owns any of these; it holds them only for the duration of one call.
package host

import (
	"fmt"

	"github.com/zeusync/packwork/internal/core/defs"
)

type Position struct {
	X int `yaml:"x" json:"x"`
	Z int `yaml:"z" json:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Z)
}

// Rotation is a cardinal facing.
type Rotation uint8

const (
	North Rotation = iota
	East
	South
	West
)

func (r Rotation) String() string {
	switch r {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return fmt.Sprintf("rotation(%d)", uint8(r))
	}
}

type Faction string

// Thing is a live world entity.
type Thing struct {
	ID  uint64
	Def *defs.Definition
	// Material is the material the thing is made of.
	Material string
	Pos      Position
	Rot      Rotation
	Faction  Faction
	Spawned  bool

	// Inner is the wrapped entity of a packed thing.
	Inner *Thing
	// Held lists the sub-items of a container.
	Held []*Thing
}

func (t *Thing) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", t.Def, t.ID)
}

// IsPacked reports whether t is a packed instance.
func (t *Thing) IsPacked() bool {
	return t.Def != nil && t.Def.Role == defs.RolePacked
}

// InnerIfPacked unwraps a packed thing; anything else is returned as is.
func (t *Thing) InnerIfPacked() *Thing {
	if t != nil && t.IsPacked() && t.Inner != nil {
		return t.Inner
	}
	return t
}

// Construction is a pending raw-material construction of Def at Pos.
type Construction struct {
	ID       uint64
	Def      *defs.Definition
	Material string
	Pos      Position
	Rot      Rotation
	Faction  Faction
}

func (c *Construction) String() string {
	return fmt.Sprintf("construct %s at %s", c.Def, c.Pos)
}

// InstallTask asks agents to carry Target to Pos and unpack it there.
type InstallTask struct {
	ID      string
	Target  *Thing
	Def     *defs.Definition
	Pos     Position
	Rot     Rotation
	Faction Faction
}

// Agent is an actor that can be offered jobs.
type Agent struct {
	Name    string
	Faction Faction
	Pos     Position
}

func (a *Agent) String() string {
	return a.Name
}

// PathMode selects which obstacles a path may pass.
type PathMode uint8

const (
	PathNormal PathMode = iota
	PathPassDoors
)

// Danger is the highest danger level a path may cross.
type Danger uint8

const (
	DangerNone Danger = iota
	DangerSome
	DangerDeadly
)

// JobKind tells construct jobs from install jobs.
type JobKind uint8

const (
	JobConstruct JobKind = iota
	JobInstall
)

func (k JobKind) String() string {
	if k == JobInstall {
		return "install"
	}
	return "construct"
}

// Job is the result of a construction-job offer.
type Job struct {
	Kind         JobKind
	Construction *Construction
	Install      *InstallTask
	// Reservations is how many claims the worker takes on the target.
	Reservations int32
}

// Points the host exposes to extensions.
const (
	PointInstallFinalization         = "install-finalization"
	PointConstructionJobOffer        = "construction-job-offer"
	PointBlueprintDesignation        = "blueprint-designation"
	PointGraphicAccessor             = "graphic-accessor"
	PointConfigValidation            = "config-validation"
	PointImpliedDefinitionGeneration = "implied-definition-generation"
)

// ConfigIssue is one finding of the host's definition validation.
type ConfigIssue struct {
	Def     string
	Code    string
	Message string
}

func (i ConfigIssue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Def, i.Code, i.Message)
}

// Call argument keys.
const (
	ArgAgent        = "agent"
	ArgConstruction = "construction"
	ArgFaction      = "faction"
	ArgThing        = "thing"
	ArgTask         = "task"
)
