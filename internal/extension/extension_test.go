package extension

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/generator"
	"github.com/zeusync/packwork/internal/core/hooks"
	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/redirect"
	"github.com/zeusync/packwork/internal/core/world"
)

const colony = `
categories: [Furniture]
definitions:
  - {name: Steel, role: material, stats: {Mass: 0.5}, description: metal}
  - name: Bed
    building: true
    claimable: true
    graphic: Things/Bed
    group: Furniture
    costs: [{material: Steel, count: 10}]
  - {name: Table, building: true, claimable: true, graphic: Things/Table}
  - {name: Granite, building: true, claimable: true, graphic: Things/Rock, natural_terrain: true}
agents:
  - {name: Ann, faction: player}
things:
  - {packed_of: Bed, material: Steel, pos: {x: 1, z: 0}, reserved_for: raiders}
  - {packed_of: Bed, material: Steel, pos: {x: 2, z: 0}, unreachable: true}
  - {packed_of: Bed, material: Steel, pos: {x: 3, z: 0}}
constructions:
  - {def: Bed, material: Steel, pos: {x: 10, z: 10}, rot: 1, faction: player}
`

func start(t *testing.T, cfg Config, scenario string) *Runtime {
	t.Helper()
	sc, err := world.LoadScenarioYAML(strings.NewReader(scenario))
	require.NoError(t, err)
	r := NewRuntime(cfg, log.Nop(), bus.New())
	require.NoError(t, r.Start(sc))
	return r
}

func colonyConfig() Config {
	cfg := DefaultConfig()
	cfg.Excluded = []string{"Table"}
	return cfg
}

func TestStartupGeneration(t *testing.T) {
	r := start(t, colonyConfig(), colony)

	bed := r.Defs.MustGet("Bed")
	require.NotNil(t, bed.PackedForm)
	assert.Equal(t, "Packed_Bed", bed.PackedForm.Name)
	assert.Equal(t, "Furniture", bed.Category)
	mass, _ := bed.Stat(defs.StatMass)
	assert.InDelta(t, 0.5, mass, 1e-9)

	assert.Nil(t, r.Defs.MustGet("Table").PackedForm, "excluded")
	_, ok := r.Defs.Get("Packed_Table")
	assert.False(t, ok)
	assert.Nil(t, r.Defs.MustGet("Granite").PackedForm)

	// the startup pass runs once
	res, err := r.Extension.GenerateAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Packed_Bed", "Packed_Table"}, res.Generated)
	assert.Equal(t, []string{"Packed_Table"}, res.Removed)
}

func TestJobOfferRedirectsAndReinstalls(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	var applied []redirect.Decision
	_, _ = r.Bus.Subscribe(redirect.EventApplied, func(e bus.Event) error {
		applied = append(applied, e.Data().(redirect.Decision))
		return nil
	})

	packed := r.World.InstancesOf(r.Defs.MustGet("Packed_Bed"))
	require.Len(t, packed, 3)

	report, err := r.Sim.Tick()
	require.NoError(t, err)
	assert.Equal(t, 0, report.Constructed)
	assert.Equal(t, 1, report.Installed)
	require.Len(t, applied, 1)
	assert.Same(t, packed[2], applied[0].Candidate)

	bed := r.Defs.MustGet("Bed")
	solid := r.World.InstancesOf(bed)
	require.Len(t, solid, 1)
	assert.Equal(t, host.Position{X: 10, Z: 10}, solid[0].Pos)
	assert.Equal(t, host.East, solid[0].Rot)
	assert.Empty(t, r.World.Pending())
	assert.Len(t, r.World.InstancesOf(bed.PackedForm), 2)

	_, err = r.Sim.Run(t.Context(), 499)
	require.NoError(t, err)
	assert.False(t, solid[0].Spawned, "detached after the reinstall delay")

	_, err = r.Sim.Run(t.Context(), 500)
	require.NoError(t, err)
	assert.True(t, solid[0].Spawned)
	assert.Equal(t, host.Position{X: 10, Z: 10}, solid[0].Pos)
	assert.Equal(t, host.East, solid[0].Rot)
}

func TestNoCandidateBuildsFromMaterials(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	table := r.Defs.MustGet("Table")
	c := r.World.Designate(table, "Steel", host.Position{X: 4}, host.North, "player")

	job, err := r.Sim.OfferJob(r.World.Agents()[0], c)
	require.NoError(t, err)
	assert.Equal(t, host.JobConstruct, job.Kind)
	assert.Equal(t, int32(2), job.Reservations, "reservation literal bumped")
}

func TestRedirectDisabled(t *testing.T) {
	cfg := colonyConfig()
	cfg.Redirect = false
	r := start(t, cfg, colony)

	report, err := r.Sim.Tick()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Constructed)
	assert.Zero(t, report.Installed)
	assert.Len(t, r.World.InstancesOf(r.Defs.MustGet("Packed_Bed")), 3)
}

func TestDesignation(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	bed := r.Defs.MustGet("Bed")

	out, err := r.Sim.Designate(bed, "Steel", host.Position{X: 20}, host.North, "player")
	require.NoError(t, err)
	task, ok := out.(*host.InstallTask)
	require.True(t, ok, "placement redirected to the free packed bed")
	assert.Equal(t, host.Position{X: 20}, task.Pos)

	out, err = r.Sim.Designate(bed, "Steel", host.Position{X: 30}, host.North, "player")
	require.NoError(t, err)
	_, ok = out.(*host.Construction)
	assert.True(t, ok, "no free packed bed left")

	// the category comparison is gone, so uncategorised terrain can be designated
	out, err = r.Sim.Designate(r.Defs.MustGet("Granite"), "", host.Position{X: 40}, host.North, "player")
	require.NoError(t, err)
	assert.IsType(t, &host.Construction{}, out)
}

func TestDesignationRunsPolicyOnce(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	counts := map[string]int{}
	for _, typ := range []string{redirect.EventApplied, redirect.EventFallback} {
		_, _ = r.Bus.Subscribe(typ, func(e bus.Event) error {
			counts[e.Type()]++
			return nil
		})
	}
	bed := r.Defs.MustGet("Bed")
	packed := r.World.InstancesOf(bed.PackedForm)
	for _, p := range packed {
		r.World.Forbid(p, "player")
	}

	out, err := r.Sim.Designate(bed, "Steel", host.Position{X: 20}, host.North, "player")
	require.NoError(t, err)
	assert.IsType(t, &host.Construction{}, out)
	assert.Equal(t, map[string]int{redirect.EventFallback: 1}, counts)

	// a free bed again: one redirect and nothing else
	free := r.World.Place(bed.PackedForm, "Steel", host.Position{X: 5}, host.North, "player")
	out, err = r.Sim.Designate(bed, "Steel", host.Position{X: 21}, host.North, "player")
	require.NoError(t, err)
	task, ok := out.(*host.InstallTask)
	require.True(t, ok)
	assert.Same(t, free, task.Target)
	assert.Equal(t, map[string]int{redirect.EventFallback: 1, redirect.EventApplied: 1}, counts)

	// the wrapper still runs the policy when called on its own
	c := &host.Construction{Def: bed, Material: "Steel", Pos: host.Position{X: 22}, Faction: "player"}
	_, err = r.Extension.Wrap(r.Sim.PlaceRaw())(c)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[redirect.EventFallback])
}

func TestGraphicAccessor(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	packed := r.World.InstancesOf(r.Defs.MustGet("Packed_Bed"))[0]

	g, err := r.Sim.Graphic(packed)
	require.NoError(t, err)
	assert.Equal(t, "Things/Bed", g)

	solid := r.World.Place(r.Defs.MustGet("Table"), "Steel", host.Position{}, host.North, "player")
	g, err = r.Sim.Graphic(solid)
	require.NoError(t, err)
	assert.Equal(t, "Things/Table", g)
}

func TestConfigValidationDropsBenignPackedIssues(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	issues, err := r.Sim.Validate()
	require.NoError(t, err)

	byDef := map[string][]string{}
	for _, i := range issues {
		byDef[i.Def] = append(byDef[i.Def], i.Code)
	}
	assert.NotContains(t, byDef, "Packed_Bed")
	assert.Equal(t, []string{IssueMissingDescription}, byDef["Bed"])
}

func TestFaultingHandlerFallsBackToHost(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	c := r.World.Pending()[0]

	// no agent argument: the redirect handler fails and the host continues
	call := hooks.NewCall(map[string]any{host.ArgConstruction: c})
	require.NoError(t, r.Hooks.Invoke(ConstructionJobOffer, call))
	job, ok := hooks.ResultAs[host.Job](call)
	require.True(t, ok)
	assert.Equal(t, host.JobConstruct, job.Kind)
	assert.Equal(t, uint64(1), r.Hooks.Stats(ConstructionJobOffer).Faults)
	assert.Len(t, r.World.Pending(), 1)
}

func TestStartupFailureIsFatal(t *testing.T) {
	// a definition already holding the derived name makes generation fail
	broken := strings.Replace(colony, "definitions:\n", "definitions:\n  - {name: Packed_Bed}\n", 1)
	sc, err := world.LoadScenarioYAML(strings.NewReader(broken))
	require.NoError(t, err)

	r := NewRuntime(colonyConfig(), log.Nop(), bus.New())
	err = r.Start(sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartup)
	assert.ErrorIs(t, err, generator.ErrGenerate)
	assert.Empty(t, r.World.Things(), "world not populated")
	assert.Nil(t, r.Defs.MustGet("Bed").PackedForm)
}

func TestAttachTwice(t *testing.T) {
	r := start(t, colonyConfig(), colony)
	assert.ErrorIs(t, r.Extension.Attach(), ErrAttached)

	r.Extension.Detach()
	_, err := r.Hooks.Before(ConstructionJobOffer, "other", true, func(*hooks.Call) (bool, error) { return false, nil })
	assert.NoError(t, err, "veto slot freed by detach")
}
