// Package generator derives packed-form and blueprint definitions from the
// base types in the definition registry.
//
// A base type is packable once it carries a packed form: a derived
// definition that never spawns naturally, holds a short id of its own and is
// registered under PackedName(base). The generator also gives the base type a
// display category and a mass stat when it lacks them.
package generator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/pkg/sequence"
)

const (
	EventPackedAdded   = "def.packed.added"
	EventPackedRemoved = "def.packed.removed"

	PackedPrefix    = "Packed_"
	BlueprintPrefix = "Blueprint_"

	// MassFactor scales the summed material mass of a cost list.
	MassFactor = 0.1

	eventSource = "generator"
)

var (
	ErrNotEligible = errors.New("type is not eligible for packing")
	ErrGenerate    = errors.New("packed definition generation failed")
)

// PackedName is the registry name of base's packed form.
func PackedName(base string) string { return PackedPrefix + base }

// BlueprintName is the registry name of base's synthesized blueprint.
func BlueprintName(base string) string { return BlueprintPrefix + base }

// Eligible reports whether def may receive a packed form: a claimable
// building with visual data that is not natural terrain and not already
// packable.
func Eligible(def *defs.Definition) bool {
	return def.Role == defs.RoleBase &&
		def.Building &&
		def.Claimable &&
		def.Graphic != "" &&
		!def.NaturalTerrain &&
		!def.Packable()
}

// Change is the payload of the added and removed events.
type Change struct {
	Base    string
	Packed  string
	ShortID uint16
}

// Result summarises a GenerateAll pass.
type Result struct {
	Generated []string
	Removed   []string
	// Unknown lists excluded names that match no registered type.
	Unknown []string
}

type Generator struct {
	registry   *defs.Registry
	pool       *defs.ShortIDPool
	categories *defs.Categories
	bus        bus.EventBus
	log        log.Log
}

type Option func(*Generator)

func WithLogger(l log.Log) Option {
	return func(g *Generator) { g.log = l }
}

func WithBus(b bus.EventBus) Option {
	return func(g *Generator) { g.bus = b }
}

func New(registry *defs.Registry, pool *defs.ShortIDPool, categories *defs.Categories, opts ...Option) *Generator {
	g := &Generator{
		registry:   registry,
		pool:       pool,
		categories: categories,
		log:        log.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeneratePackedAndBlueprint creates and registers the packed form of base,
// synthesizing its blueprint first when it has none. On error nothing is
// left registered and base is unchanged.
func (g *Generator) GeneratePackedAndBlueprint(base *defs.Definition) (*defs.Definition, error) {
	if base == nil || base.Name == "" {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, defs.ErrEmptyName)
	}
	if base.Packable() {
		return nil, fmt.Errorf("%s: %w: already packable", base.Name, ErrNotEligible)
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	blueprint, created, err := g.blueprintFor(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", base.Name, ErrGenerate, err)
	}
	if created {
		undo = append(undo, func() {
			g.registry.Remove(blueprint.Name)
			g.pool.Release(blueprint)
			base.Blueprint = nil
		})
	}

	packed := newPacked(base, blueprint)
	if err = packed.ResolveReferences(g.registry); err != nil {
		rollback()
		return nil, fmt.Errorf("%s: %w: %w", base.Name, ErrGenerate, err)
	}
	packed.PostLoad()

	id, err := g.pool.Assign(packed)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("%s: %w: %w", base.Name, ErrGenerate, err)
	}
	undo = append(undo, func() { g.pool.Release(packed) })

	// The pool only hands out free ids; a live holder means the pool and the
	// registry disagree.
	if holder, taken := g.registry.ByShortID(packed.Kind, id); taken {
		rollback()
		return nil, fmt.Errorf("%s: %w: id %d already held by %s: %w",
			base.Name, ErrGenerate, id, holder.Name, defs.ErrIDCollision)
	}

	if err = g.registry.Add(packed); err != nil {
		rollback()
		return nil, fmt.Errorf("%s: %w: %w", base.Name, ErrGenerate, err)
	}

	base.PackedForm = packed
	g.assignCategory(base)
	g.deriveMass(base)

	g.log.Debug("packed definition generated",
		log.String("base", base.Name),
		log.String("packed", packed.Name),
		log.Uint16("short_id", id),
		log.Bool("blueprint_created", created),
	)
	g.publish(EventPackedAdded, Change{Base: base.Name, Packed: packed.Name, ShortID: id})
	return packed, nil
}

// blueprintFor returns base's blueprint, registering a synthesized one when
// base has none. created reports whether a new definition was registered.
func (g *Generator) blueprintFor(base *defs.Definition) (*defs.Definition, bool, error) {
	if base.Blueprint != nil {
		return base.Blueprint, false, nil
	}
	if existing, ok := g.registry.Get(BlueprintName(base.Name)); ok && existing.Builds == base {
		base.Blueprint = existing
		return existing, false, nil
	}

	bp := &defs.Definition{
		Name:    BlueprintName(base.Name),
		Label:   base.Label + " (blueprint)",
		Kind:    base.Kind,
		Role:    defs.RoleBlueprint,
		Graphic: base.Graphic,
		Costs:   slices.Clone(base.Costs),
		Builds:  base,
	}
	bp.PostLoad()
	if _, err := g.pool.Assign(bp); err != nil {
		return nil, false, err
	}
	if err := g.registry.Add(bp); err != nil {
		g.pool.Release(bp)
		return nil, false, err
	}
	base.Blueprint = bp
	return bp, true, nil
}

func newPacked(base, blueprint *defs.Definition) *defs.Definition {
	label := base.Label
	if label == "" {
		label = base.Name
	}
	return &defs.Definition{
		Name:        PackedName(base.Name),
		Label:       label + " (packed)",
		Kind:        base.Kind,
		Role:        defs.RolePacked,
		Blueprint:   blueprint,
		Builds:      base,
		SpawnWeight: 0,
	}
}

// assignCategory lists base under its designation group's category, or Misc.
// Natural terrain variants and types that already have a category are left
// alone.
func (g *Generator) assignCategory(base *defs.Definition) {
	if base.Category != "" || base.NaturalTerrain {
		return
	}
	category := defs.MiscCategory
	if base.Group != "" {
		if _, ok := g.categories.Get(base.Group); ok {
			category = base.Group
		}
	}
	base.Category = category
	g.categories.AddMember(category, base.Name)
}

// deriveMass sets Mass to MassFactor times the total material mass of the
// cost list, or DefaultUnitMass when there are no costs. An explicit stat is
// kept.
func (g *Generator) deriveMass(base *defs.Definition) {
	if _, ok := base.Stat(defs.StatMass); ok {
		return
	}
	if len(base.Costs) == 0 {
		base.SetStat(defs.StatMass, defs.DefaultUnitMass)
		return
	}
	var total float64
	for _, c := range base.Costs {
		total += float64(c.Count) * g.materialMass(c)
	}
	base.SetStat(defs.StatMass, MassFactor*total)
}

func (g *Generator) materialMass(c defs.Cost) float64 {
	if c.Material != nil {
		return c.Material.UnitMass()
	}
	if m, ok := g.registry.Get(c.MaterialName); ok {
		return m.UnitMass()
	}
	return defs.DefaultUnitMass
}

// RemovePackedFor deregisters base's packed form and clears the reference.
// It reports whether a definition was removed; a missing one is not an
// error. Live instances of the removed type stay in the world untouched.
func (g *Generator) RemovePackedFor(base *defs.Definition) bool {
	if base == nil {
		return false
	}
	packed, ok := g.registry.Remove(PackedName(base.Name))
	if !ok {
		return false
	}
	id := packed.ShortID
	g.pool.Release(packed)
	if base.PackedForm == packed {
		base.PackedForm = nil
	}

	g.log.Debug("packed definition removed",
		log.String("base", base.Name),
		log.String("packed", packed.Name),
		log.Uint16("short_id", id),
	)
	g.publish(EventPackedRemoved, Change{Base: base.Name, Packed: packed.Name, ShortID: id})
	return true
}

// GenerateAll packs every eligible type in registration order, then removes
// the packed forms of the excluded types. The first generation error stops
// the pass and is returned; it must be treated as fatal.
func (g *Generator) GenerateAll(excluded []string) (Result, error) {
	var res Result

	eligible := sequence.From(g.registry.All()).Filter(Eligible).Collect()
	for _, base := range eligible {
		packed, err := g.GeneratePackedAndBlueprint(base)
		if err != nil {
			g.log.Error("startup generation halted", log.String("base", base.Name), log.Error(err))
			return res, err
		}
		res.Generated = append(res.Generated, packed.Name)
	}

	for _, name := range excluded {
		base, ok := g.registry.Get(name)
		if !ok {
			res.Unknown = append(res.Unknown, name)
			g.log.Warn("excluded type is not registered", log.String("name", name))
			continue
		}
		if g.RemovePackedFor(base) {
			res.Removed = append(res.Removed, PackedName(name))
		}
	}

	g.log.Info("packed definitions generated",
		log.Int("generated", len(res.Generated)),
		log.Int("removed", len(res.Removed)),
		log.Strings("unknown", res.Unknown),
	)
	return res, nil
}

func (g *Generator) publish(eventType string, data any) {
	if g.bus == nil {
		return
	}
	if err := g.bus.Publish(bus.NewEvent(eventType, eventSource, data, nil)); err != nil {
		g.log.Warn("event delivery failed", log.String("event", eventType), log.Error(err))
	}
}
