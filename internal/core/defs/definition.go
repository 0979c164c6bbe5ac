// Package defs holds the entity-type definitions the extension reads and
// patches, plus the process-wide tables they live in: the definition
// registry, the short identifier pool and the display category table.
//
// All tables are owned by the simulation thread. They carry no locks; each
// mutating call either completes or leaves the table untouched, and the
// invariants are checked on every mutation instead.
package defs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind is the identifier space a definition draws its short id from.
type Kind string

const (
	KindThing Kind = "thing"
)

// Role tells base types apart from the definitions derived from them.
type Role uint8

const (
	RoleBase Role = iota
	RoleMaterial
	RoleBlueprint
	RolePacked
)

func (r Role) String() string {
	switch r {
	case RoleBase:
		return "base"
	case RoleMaterial:
		return "material"
	case RoleBlueprint:
		return "blueprint"
	case RolePacked:
		return "packed"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole maps a role name back to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "base":
		return RoleBase, nil
	case "material":
		return RoleMaterial, nil
	case "blueprint":
		return RoleBlueprint, nil
	case "packed":
		return RolePacked, nil
	default:
		return RoleBase, fmt.Errorf("unknown role %q", s)
	}
}

func (r *Role) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseRole(value.Value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) MarshalYAML() (any, error) {
	return r.String(), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

const (
	StatMass = "Mass"

	// DefaultUnitMass is used for a material that declares no mass stat.
	DefaultUnitMass = 1.0
)

// Cost is one line of a construction cost list.
type Cost struct {
	MaterialName string      `yaml:"material" json:"material"`
	Count        int         `yaml:"count" json:"count"`
	Material     *Definition `yaml:"-" json:"-"`
}

// Definition describes one buildable (or derived) entity kind.
type Definition struct {
	Name        string `yaml:"name" json:"name"`
	Label       string `yaml:"label,omitempty" json:"label,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        Kind   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Role        Role   `yaml:"role,omitempty" json:"role,omitempty"`
	ShortID     uint16 `yaml:"short_id,omitempty" json:"short_id,omitempty"`

	// Building marks a type the host can construct from a blueprint.
	Building  bool `yaml:"building,omitempty" json:"building,omitempty"`
	Claimable bool `yaml:"claimable,omitempty" json:"claimable,omitempty"`
	// Container marks types whose instances hold sub-items.
	Container bool `yaml:"container,omitempty" json:"container,omitempty"`
	// NaturalTerrain marks natural rock and smoothed-terrain variants.
	NaturalTerrain bool `yaml:"natural_terrain,omitempty" json:"natural_terrain,omitempty"`

	// Graphic is the visual asset path; empty means no visual data.
	Graphic string `yaml:"graphic,omitempty" json:"graphic,omitempty"`
	// Group is the designation group used to pick a display category.
	Group string `yaml:"group,omitempty" json:"group,omitempty"`
	// Category is the display category; empty means the type is not listed.
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	Costs       []Cost             `yaml:"costs,omitempty" json:"costs,omitempty"`
	Stats       map[string]float64 `yaml:"stats,omitempty" json:"stats,omitempty"`
	SpawnWeight float64            `yaml:"spawn_weight,omitempty" json:"spawn_weight,omitempty"`

	Blueprint  *Definition `yaml:"-" json:"-"`
	PackedForm *Definition `yaml:"-" json:"-"`
	// Builds points a derived definition back at its base type.
	Builds *Definition `yaml:"-" json:"-"`

	resolved   bool
	postLoaded bool
}

func (d *Definition) String() string {
	if d == nil {
		return "<nil>"
	}
	return d.Name
}

// Packable reports whether the type already has a packed form.
func (d *Definition) Packable() bool {
	return d.PackedForm != nil
}

// Stat returns a stat value and whether it is set explicitly.
func (d *Definition) Stat(name string) (float64, bool) {
	v, ok := d.Stats[name]
	return v, ok
}

// SetStat sets a stat, allocating the table on first use.
func (d *Definition) SetStat(name string, v float64) {
	if d.Stats == nil {
		d.Stats = make(map[string]float64)
	}
	d.Stats[name] = v
}

// UnitMass is the mass of one unit, falling back to DefaultUnitMass.
func (d *Definition) UnitMass() float64 {
	if v, ok := d.Stat(StatMass); ok {
		return v
	}
	return DefaultUnitMass
}

// Resolved reports whether ResolveReferences completed.
func (d *Definition) Resolved() bool { return d.resolved }

// PostLoaded reports whether PostLoad ran.
func (d *Definition) PostLoaded() bool { return d.postLoaded }

// ResolveReferences binds cost materials by name. Every material must already
// be registered.
func (d *Definition) ResolveReferences(reg *Registry) error {
	for i := range d.Costs {
		c := &d.Costs[i]
		if c.Material != nil {
			continue
		}
		m, ok := reg.Get(c.MaterialName)
		if !ok {
			return fmt.Errorf("%s: cost material %q: %w", d.Name, c.MaterialName, ErrUnresolved)
		}
		c.Material = m
	}
	d.resolved = true
	return nil
}

// PostLoad fills defaults the host expects on every definition.
func (d *Definition) PostLoad() {
	if d.Kind == "" {
		d.Kind = KindThing
	}
	if d.Label == "" {
		d.Label = d.Name
	}
	d.postLoaded = true
}
