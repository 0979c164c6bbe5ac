// Package world is an in-memory host: a flat map of things with a per-type
// index, reservation and forbiddance tables, pending constructions and
// install tasks. It implements host.World and backs the command and the
// integration tests.
//
// A World is owned by the simulation thread and is not safe for concurrent
// use.
package world

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/internal/core/observability/log"
)

var (
	ErrUnknownThing        = errors.New("thing not in world")
	ErrUnknownConstruction = errors.New("construction not pending")
	ErrAlreadyTargeted     = errors.New("thing already targeted by an install task")
	ErrNotSpawned          = errors.New("thing not spawned")
	ErrAlreadySpawned      = errors.New("thing already spawned")
	ErrUnknownInstall      = errors.New("install task not open")
)

type reservation struct {
	agent   string
	faction host.Faction
}

type World struct {
	nextID uint64

	things  map[uint64]*host.Thing
	byType  map[string][]*host.Thing
	agents  []*host.Agent
	pending []*host.Construction

	installs map[uint64]*host.InstallTask
	reserved map[uint64]reservation
	forbid   map[uint64]map[host.Faction]bool
	blocked  map[uint64]bool
	danger   map[uint64]host.Danger

	log log.Log
}

type Option func(*World)

func WithLogger(l log.Log) Option {
	return func(w *World) { w.log = l }
}

func New(opts ...Option) *World {
	w := &World{
		things:   make(map[uint64]*host.Thing),
		byType:   make(map[string][]*host.Thing),
		installs: make(map[uint64]*host.InstallTask),
		reserved: make(map[uint64]reservation),
		forbid:   make(map[uint64]map[host.Faction]bool),
		blocked:  make(map[uint64]bool),
		danger:   make(map[uint64]host.Danger),
		log:      log.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) id() uint64 {
	w.nextID++
	return w.nextID
}

// Place creates and spawns a thing. A packed definition gets an unspawned
// inner entity of the type it builds.
func (w *World) Place(def *defs.Definition, material string, pos host.Position, rot host.Rotation, faction host.Faction) *host.Thing {
	t := &host.Thing{
		ID:       w.id(),
		Def:      def,
		Material: material,
		Pos:      pos,
		Rot:      rot,
		Faction:  faction,
	}
	if def.Role == defs.RolePacked && def.Builds != nil {
		t.Inner = &host.Thing{ID: w.id(), Def: def.Builds, Material: material, Faction: faction}
	}
	w.things[t.ID] = t
	w.index(t)
	return t
}

func (w *World) index(t *host.Thing) {
	t.Spawned = true
	w.byType[t.Def.Name] = append(w.byType[t.Def.Name], t)
}

func (w *World) unindex(t *host.Thing) {
	t.Spawned = false
	list := w.byType[t.Def.Name]
	for i, cur := range list {
		if cur == t {
			w.byType[t.Def.Name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (w *World) Thing(id uint64) (*host.Thing, bool) {
	t, ok := w.things[id]
	return t, ok
}

// Things lists every known thing, spawned or not, by id.
func (w *World) Things() []*host.Thing {
	out := make([]*host.Thing, 0, len(w.things))
	for id := uint64(1); id <= w.nextID; id++ {
		if t, ok := w.things[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// InstancesOf returns the spawned instances of def in spawn order.
func (w *World) InstancesOf(def *defs.Definition) []*host.Thing {
	if def == nil {
		return nil
	}
	list := w.byType[def.Name]
	out := make([]*host.Thing, len(list))
	copy(out, list)
	return out
}

// AddAgent registers a worker.
func (w *World) AddAgent(a *host.Agent) {
	w.agents = append(w.agents, a)
}

func (w *World) Agents() []*host.Agent {
	out := make([]*host.Agent, len(w.agents))
	copy(out, w.agents)
	return out
}

// Reserve records that agent holds target.
func (w *World) Reserve(target *host.Thing, agent *host.Agent) {
	w.reserved[target.ID] = reservation{agent: agent.Name, faction: agent.Faction}
}

// ReserveFor records a reservation held by a faction without a named agent.
func (w *World) ReserveFor(target *host.Thing, faction host.Faction) {
	w.reserved[target.ID] = reservation{faction: faction}
}

func (w *World) Release(target *host.Thing) {
	delete(w.reserved, target.ID)
}

func (w *World) Forbid(target *host.Thing, faction host.Faction) {
	set, ok := w.forbid[target.ID]
	if !ok {
		set = make(map[host.Faction]bool)
		w.forbid[target.ID] = set
	}
	set[faction] = true
}

// Block makes target unreachable from anywhere.
func (w *World) Block(target *host.Thing) {
	w.blocked[target.ID] = true
}

// SetDanger marks the danger level on the way to target.
func (w *World) SetDanger(target *host.Thing, d host.Danger) {
	w.danger[target.ID] = d
}

func (w *World) CanReach(_ *host.Agent, target *host.Thing, _ host.PathMode, limit host.Danger) bool {
	return target.Spawned && !w.blocked[target.ID] && w.danger[target.ID] <= limit
}

func (w *World) Connected(_ host.Position, target *host.Thing) bool {
	return target.Spawned && !w.blocked[target.ID]
}

func (w *World) CanReserve(agent *host.Agent, target *host.Thing) bool {
	r, held := w.reserved[target.ID]
	return !held || (r.agent != "" && r.agent == agent.Name)
}

func (w *World) ReservedAgainst(target *host.Thing, faction host.Faction) bool {
	r, held := w.reserved[target.ID]
	return held && r.faction != faction
}

func (w *World) Forbidden(target *host.Thing, faction host.Faction) bool {
	return w.forbid[target.ID][faction]
}

// Designate queues a raw-material construction.
func (w *World) Designate(def *defs.Definition, material string, pos host.Position, rot host.Rotation, faction host.Faction) *host.Construction {
	c := &host.Construction{
		ID:       w.id(),
		Def:      def,
		Material: material,
		Pos:      pos,
		Rot:      rot,
		Faction:  faction,
	}
	w.pending = append(w.pending, c)
	return c
}

// Pending lists queued constructions in designation order.
func (w *World) Pending() []*host.Construction {
	out := make([]*host.Construction, len(w.pending))
	copy(out, w.pending)
	return out
}

func (w *World) CancelConstruction(c *host.Construction) error {
	for i, cur := range w.pending {
		if cur == c {
			w.pending = append(w.pending[:i:i], w.pending[i+1:]...)
			w.log.Debug("construction cancelled", log.String("construction", c.String()))
			return nil
		}
	}
	return fmt.Errorf("%s: %w", c, ErrUnknownConstruction)
}

// CompleteConstruction finishes c from raw materials.
func (w *World) CompleteConstruction(c *host.Construction) (*host.Thing, error) {
	if err := w.CancelConstruction(c); err != nil {
		return nil, err
	}
	return w.Place(c.Def, c.Material, c.Pos, c.Rot, c.Faction), nil
}

func (w *World) InstallTaskFor(t *host.Thing) (*host.InstallTask, bool) {
	task, ok := w.installs[t.ID]
	return task, ok
}

func (w *World) PlaceInstall(target *host.Thing, def *defs.Definition, pos host.Position, rot host.Rotation, faction host.Faction) (*host.InstallTask, error) {
	if _, ok := w.things[target.ID]; !ok {
		return nil, fmt.Errorf("%s: %w", target, ErrUnknownThing)
	}
	if _, ok := w.installs[target.ID]; ok {
		return nil, fmt.Errorf("%s: %w", target, ErrAlreadyTargeted)
	}
	task := &host.InstallTask{
		ID:      uuid.NewString(),
		Target:  target,
		Def:     def,
		Pos:     pos,
		Rot:     rot,
		Faction: faction,
	}
	w.installs[target.ID] = task
	return task, nil
}

func (w *World) CancelInstall(task *host.InstallTask) error {
	if open, ok := w.installs[task.Target.ID]; !ok || open != task {
		return fmt.Errorf("install %s: %w", task.ID, ErrUnknownInstall)
	}
	delete(w.installs, task.Target.ID)
	return nil
}

// InstallTasks lists open install tasks ordered by target id.
func (w *World) InstallTasks() []*host.InstallTask {
	out := make([]*host.InstallTask, 0, len(w.installs))
	for _, t := range w.Things() {
		if task, ok := w.installs[t.ID]; ok {
			out = append(out, task)
		}
	}
	return out
}

// CompleteInstall unpacks the task's target at the task position and
// returns the solid entity.
func (w *World) CompleteInstall(task *host.InstallTask) (*host.Thing, error) {
	packed := task.Target
	if _, ok := w.installs[packed.ID]; !ok {
		return nil, fmt.Errorf("install %s: %w", task.ID, ErrUnknownThing)
	}
	delete(w.installs, packed.ID)
	delete(w.reserved, packed.ID)
	if packed.Spawned {
		w.unindex(packed)
	}
	delete(w.things, packed.ID)

	solid := packed.Inner
	if solid == nil {
		solid = &host.Thing{ID: w.id(), Def: task.Def, Material: packed.Material}
	}
	solid.Pos, solid.Rot, solid.Faction = task.Pos, task.Rot, task.Faction
	w.things[solid.ID] = solid
	w.index(solid)
	return solid, nil
}

func (w *World) Despawn(t *host.Thing) error {
	if _, ok := w.things[t.ID]; !ok {
		return fmt.Errorf("%s: %w", t, ErrUnknownThing)
	}
	if !t.Spawned {
		return fmt.Errorf("%s: %w", t, ErrNotSpawned)
	}
	w.unindex(t)
	return nil
}

func (w *World) Spawn(t *host.Thing, pos host.Position, rot host.Rotation) error {
	if _, ok := w.things[t.ID]; !ok {
		return fmt.Errorf("%s: %w", t, ErrUnknownThing)
	}
	if t.Spawned {
		return fmt.Errorf("%s: %w", t, ErrAlreadySpawned)
	}
	t.Pos, t.Rot = pos, rot
	w.index(t)
	return nil
}

var _ host.World = (*World)(nil)
