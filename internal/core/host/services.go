package host

import "github.com/zeusync/packwork/internal/core/defs"

// SpatialIndex finds live instances by type.
type SpatialIndex interface {
	// InstancesOf lists the spawned instances of def in the index's natural
	// order. The slice is a snapshot.
	InstancesOf(def *defs.Definition) []*Thing
}

// Pathing answers reachability for a concrete agent.
type Pathing interface {
	CanReach(agent *Agent, target *Thing, mode PathMode, danger Danger) bool
}

// Reachability answers map-level connectivity without an agent.
type Reachability interface {
	Connected(from Position, target *Thing) bool
}

type Reservations interface {
	// CanReserve reports whether agent could reserve target now.
	CanReserve(agent *Agent, target *Thing) bool
	// ReservedAgainst reports whether a party in conflict with faction holds
	// a reservation on target.
	ReservedAgainst(target *Thing, faction Faction) bool
}

type Forbiddance interface {
	Forbidden(target *Thing, faction Faction) bool
}

type InstallTasks interface {
	// InstallTaskFor returns the install task targeting t, if any.
	InstallTaskFor(t *Thing) (*InstallTask, bool)
	PlaceInstall(target *Thing, def *defs.Definition, pos Position, rot Rotation, faction Faction) (*InstallTask, error)
	// CancelInstall withdraws an open install task.
	CancelInstall(task *InstallTask) error
}

type Constructions interface {
	CancelConstruction(c *Construction) error
}

// Spawner detaches and re-attaches things.
type Spawner interface {
	Despawn(t *Thing) error
	Spawn(t *Thing, pos Position, rot Rotation) error
}

// World is everything the job redirection policy needs from the host.
type World interface {
	SpatialIndex
	Pathing
	Reachability
	Reservations
	Forbiddance
	InstallTasks
	Constructions
	Spawner
}

// Placer places a proposed construction and returns what the host now holds
// for it: a *Construction, or an *InstallTask when the placement was
// redirected.
type Placer func(c *Construction) (any, error)
