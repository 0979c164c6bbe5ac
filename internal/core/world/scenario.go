package world

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/host"
)

// Scenario describes a starting world in JSON or YAML. Loading happens in two
// steps: Define registers the base definitions before packed forms are
// generated, Populate places things once they have been.
type Scenario struct {
	Definitions   []*defs.Definition     `json:"definitions" yaml:"definitions"`
	Categories    []string               `json:"categories,omitempty" yaml:"categories,omitempty"`
	Agents        []ScenarioAgent        `json:"agents,omitempty" yaml:"agents,omitempty"`
	Things        []ScenarioThing        `json:"things,omitempty" yaml:"things,omitempty"`
	Constructions []ScenarioConstruction `json:"constructions,omitempty" yaml:"constructions,omitempty"`
}

type ScenarioAgent struct {
	Name    string        `json:"name" yaml:"name"`
	Faction host.Faction  `json:"faction" yaml:"faction"`
	Pos     host.Position `json:"pos" yaml:"pos"`
}

type ScenarioThing struct {
	// Def names the definition to place. PackedOf names a base type whose
	// packed form to place instead.
	Def      string        `json:"def,omitempty" yaml:"def,omitempty"`
	PackedOf string        `json:"packed_of,omitempty" yaml:"packed_of,omitempty"`
	Material string        `json:"material,omitempty" yaml:"material,omitempty"`
	Pos      host.Position `json:"pos" yaml:"pos"`
	Rot      host.Rotation `json:"rot,omitempty" yaml:"rot,omitempty"`
	Faction  host.Faction  `json:"faction,omitempty" yaml:"faction,omitempty"`

	ReservedBy   string         `json:"reserved_by,omitempty" yaml:"reserved_by,omitempty"`
	ReservedFor  host.Faction   `json:"reserved_for,omitempty" yaml:"reserved_for,omitempty"`
	ForbiddenFor []host.Faction `json:"forbidden_for,omitempty" yaml:"forbidden_for,omitempty"`
	Unreachable  bool           `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`
	Danger       host.Danger    `json:"danger,omitempty" yaml:"danger,omitempty"`
}

type ScenarioConstruction struct {
	Def      string        `json:"def" yaml:"def"`
	Material string        `json:"material,omitempty" yaml:"material,omitempty"`
	Pos      host.Position `json:"pos" yaml:"pos"`
	Rot      host.Rotation `json:"rot,omitempty" yaml:"rot,omitempty"`
	Faction  host.Faction  `json:"faction,omitempty" yaml:"faction,omitempty"`
}

// LoadScenarioJSON loads a scenario from a JSON reader.
func LoadScenarioJSON(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarioYAML loads a scenario from a YAML reader.
func LoadScenarioYAML(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Define registers the scenario's definitions, claims or assigns their short
// ids and resolves cost references. Materials must be listed before the
// types that use them.
func (s *Scenario) Define(reg *defs.Registry, pool *defs.ShortIDPool, cats *defs.Categories) error {
	for _, name := range s.Categories {
		cats.Ensure(name)
	}
	for _, d := range s.Definitions {
		d.PostLoad()
		if d.ShortID != 0 {
			if err := pool.Claim(d); err != nil {
				return err
			}
		} else if _, err := pool.Assign(d); err != nil {
			return err
		}
		if err := reg.Add(d); err != nil {
			pool.Release(d)
			return err
		}
		if d.Category != "" {
			cats.AddMember(d.Category, d.Name)
		}
	}
	for _, d := range s.Definitions {
		if err := d.ResolveReferences(reg); err != nil {
			return err
		}
	}
	return nil
}

// Populate places agents, things and constructions into w.
func (s *Scenario) Populate(w *World, reg *defs.Registry) error {
	for _, a := range s.Agents {
		w.AddAgent(&host.Agent{Name: a.Name, Faction: a.Faction, Pos: a.Pos})
	}
	agents := make(map[string]*host.Agent)
	for _, a := range w.Agents() {
		agents[a.Name] = a
	}

	for i, st := range s.Things {
		def, err := st.definition(reg)
		if err != nil {
			return fmt.Errorf("thing %d: %w", i, err)
		}
		t := w.Place(def, st.Material, st.Pos, st.Rot, st.Faction)
		if st.ReservedBy != "" {
			a, ok := agents[st.ReservedBy]
			if !ok {
				return fmt.Errorf("thing %d: unknown agent %q", i, st.ReservedBy)
			}
			w.Reserve(t, a)
		} else if st.ReservedFor != "" {
			w.ReserveFor(t, st.ReservedFor)
		}
		for _, f := range st.ForbiddenFor {
			w.Forbid(t, f)
		}
		if st.Unreachable {
			w.Block(t)
		}
		if st.Danger != host.DangerNone {
			w.SetDanger(t, st.Danger)
		}
	}

	for i, sc := range s.Constructions {
		def, ok := reg.Get(sc.Def)
		if !ok {
			return fmt.Errorf("construction %d: %s: %w", i, sc.Def, defs.ErrNotRegistered)
		}
		w.Designate(def, sc.Material, sc.Pos, sc.Rot, sc.Faction)
	}
	return nil
}

func (st ScenarioThing) definition(reg *defs.Registry) (*defs.Definition, error) {
	if st.PackedOf != "" {
		base, ok := reg.Get(st.PackedOf)
		if !ok {
			return nil, fmt.Errorf("%s: %w", st.PackedOf, defs.ErrNotRegistered)
		}
		if base.PackedForm == nil {
			return nil, fmt.Errorf("%s has no packed form: %w", st.PackedOf, defs.ErrNotRegistered)
		}
		return base.PackedForm, nil
	}
	def, ok := reg.Get(st.Def)
	if !ok {
		return nil, fmt.Errorf("%s: %w", st.Def, defs.ErrNotRegistered)
	}
	return def, nil
}
