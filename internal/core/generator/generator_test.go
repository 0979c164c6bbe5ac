package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/events/bus"
)

type fixture struct {
	reg  *defs.Registry
	pool *defs.ShortIDPool
	cats *defs.Categories
	gen  *Generator
	bus  bus.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:  defs.NewRegistry(),
		pool: defs.NewShortIDPool(),
		cats: defs.NewCategories("Furniture"),
		bus:  bus.New(),
	}
	f.gen = New(f.reg, f.pool, f.cats, WithBus(f.bus))

	steel := &defs.Definition{Name: "Steel", Kind: defs.KindThing, Role: defs.RoleMaterial}
	steel.SetStat(defs.StatMass, 0.5)
	wood := &defs.Definition{Name: "Wood", Kind: defs.KindThing, Role: defs.RoleMaterial}
	f.add(t, steel, wood)
	return f
}

func (f *fixture) add(t *testing.T, list ...*defs.Definition) {
	t.Helper()
	for _, d := range list {
		d.PostLoad()
		_, err := f.pool.Assign(d)
		require.NoError(t, err)
		require.NoError(t, f.reg.Add(d))
	}
}

func building(name string) *defs.Definition {
	return &defs.Definition{
		Name:      name,
		Kind:      defs.KindThing,
		Building:  true,
		Claimable: true,
		Graphic:   "Things/" + name,
	}
}

func TestGeneratePackedAndBlueprint(t *testing.T) {
	f := newFixture(t)
	var added []Change
	_, _ = f.bus.Subscribe(EventPackedAdded, func(e bus.Event) error {
		added = append(added, e.Data().(Change))
		return nil
	})

	bed := building("Bed")
	bed.Group = "Furniture"
	bed.Costs = []defs.Cost{{MaterialName: "Steel", Count: 10}, {MaterialName: "Wood", Count: 5}}
	f.add(t, bed)
	require.NoError(t, bed.ResolveReferences(f.reg))

	packed, err := f.gen.GeneratePackedAndBlueprint(bed)
	require.NoError(t, err)

	assert.Equal(t, "Packed_Bed", packed.Name)
	assert.Equal(t, defs.RolePacked, packed.Role)
	assert.Zero(t, packed.SpawnWeight)
	assert.NotZero(t, packed.ShortID)
	assert.True(t, packed.Resolved())
	assert.True(t, packed.PostLoaded())
	assert.Same(t, packed, bed.PackedForm)
	assert.Same(t, bed, packed.Builds)

	got, ok := f.reg.Get("Packed_Bed")
	require.True(t, ok)
	assert.Same(t, packed, got)
	owner, ok := f.pool.Owner(defs.KindThing, packed.ShortID)
	require.True(t, ok)
	assert.Equal(t, "Packed_Bed", owner)

	require.NotNil(t, bed.Blueprint)
	assert.Equal(t, "Blueprint_Bed", bed.Blueprint.Name)
	_, ok = f.reg.Get("Blueprint_Bed")
	assert.True(t, ok)

	assert.Equal(t, "Furniture", bed.Category)
	cat, _ := f.cats.Get("Furniture")
	assert.Equal(t, []string{"Bed"}, cat.Members)

	mass, ok := bed.Stat(defs.StatMass)
	require.True(t, ok)
	assert.InDelta(t, 0.1*(10*0.5+5*1.0), mass, 1e-9)

	require.Len(t, added, 1)
	assert.Equal(t, Change{Base: "Bed", Packed: "Packed_Bed", ShortID: packed.ShortID}, added[0])
}

func TestGenerateKeepsExistingBlueprintCategoryAndMass(t *testing.T) {
	f := newFixture(t)
	bp := &defs.Definition{Name: "Blueprint_Lamp", Kind: defs.KindThing, Role: defs.RoleBlueprint}
	lamp := building("Lamp")
	lamp.Blueprint = bp
	lamp.Category = "Lighting"
	lamp.SetStat(defs.StatMass, 3)
	f.add(t, bp, lamp)
	before := f.reg.Len()

	_, err := f.gen.GeneratePackedAndBlueprint(lamp)
	require.NoError(t, err)

	assert.Same(t, bp, lamp.Blueprint)
	assert.Equal(t, before+1, f.reg.Len())
	assert.Equal(t, "Lighting", lamp.Category)
	mass, _ := lamp.Stat(defs.StatMass)
	assert.Equal(t, 3.0, mass)
}

func TestGenerateFallsBackToMiscAndUnitMass(t *testing.T) {
	f := newFixture(t)
	shelf := building("Shelf")
	shelf.Group = "Storage"
	f.add(t, shelf)

	_, err := f.gen.GeneratePackedAndBlueprint(shelf)
	require.NoError(t, err)
	assert.Equal(t, defs.MiscCategory, shelf.Category)
	mass, _ := shelf.Stat(defs.StatMass)
	assert.Equal(t, defs.DefaultUnitMass, mass)

	// regenerating does not list Shelf twice
	f.gen.RemovePackedFor(shelf)
	shelf.Category = ""
	_, err = f.gen.GeneratePackedAndBlueprint(shelf)
	require.NoError(t, err)
	misc, _ := f.cats.Get(defs.MiscCategory)
	assert.Equal(t, []string{"Shelf"}, misc.Members)
}

func TestNaturalTerrainGetsNoCategory(t *testing.T) {
	f := newFixture(t)
	rock := building("SmoothedGranite")
	rock.NaturalTerrain = true
	f.add(t, rock)

	_, err := f.gen.GeneratePackedAndBlueprint(rock)
	require.NoError(t, err)
	assert.Empty(t, rock.Category)
}

func TestRemoveThenRegenerate(t *testing.T) {
	f := newFixture(t)
	var removed []Change
	_, _ = f.bus.Subscribe(EventPackedRemoved, func(e bus.Event) error {
		removed = append(removed, e.Data().(Change))
		return nil
	})
	bed := building("Bed")
	f.add(t, bed)

	first, err := f.gen.GeneratePackedAndBlueprint(bed)
	require.NoError(t, err)
	firstID := first.ShortID
	count := f.reg.Len()

	assert.True(t, f.gen.RemovePackedFor(bed))
	assert.Nil(t, bed.PackedForm)
	_, ok := f.reg.Get("Packed_Bed")
	assert.False(t, ok)
	_, ok = f.pool.Owner(defs.KindThing, firstID)
	assert.False(t, ok)
	require.Len(t, removed, 1)
	assert.Equal(t, firstID, removed[0].ShortID)

	assert.False(t, f.gen.RemovePackedFor(bed), "second removal is a no-op")
	assert.Len(t, removed, 1)

	second, err := f.gen.GeneratePackedAndBlueprint(bed)
	require.NoError(t, err)
	assert.Equal(t, "Packed_Bed", second.Name)
	assert.NotZero(t, second.ShortID)
	assert.Equal(t, count, f.reg.Len())

	names := map[string]int{}
	for _, d := range f.reg.All() {
		names[d.Name]++
	}
	assert.Equal(t, 1, names["Packed_Bed"])
	assert.Equal(t, 1, names["Blueprint_Bed"])
}

func TestGenerateRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	bed := building("Bed")
	f.add(t, bed)
	// a stale registration under the derived name makes the add fail
	require.NoError(t, f.reg.Add(&defs.Definition{Name: "Packed_Bed", Kind: defs.KindThing}))
	before := f.reg.Len()
	poolBefore := f.pool.Len(defs.KindThing)

	_, err := f.gen.GeneratePackedAndBlueprint(bed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerate)
	assert.ErrorIs(t, err, defs.ErrDuplicateName)

	assert.Nil(t, bed.PackedForm)
	assert.Nil(t, bed.Blueprint)
	assert.Empty(t, bed.Category)
	_, hasMass := bed.Stat(defs.StatMass)
	assert.False(t, hasMass)
	assert.Equal(t, before, f.reg.Len())
	assert.Equal(t, poolBefore, f.pool.Len(defs.KindThing))
	_, ok := f.reg.Get("Blueprint_Bed")
	assert.False(t, ok)
}

func TestGenerateRejectsPackable(t *testing.T) {
	f := newFixture(t)
	bed := building("Bed")
	f.add(t, bed)
	_, err := f.gen.GeneratePackedAndBlueprint(bed)
	require.NoError(t, err)

	_, err = f.gen.GeneratePackedAndBlueprint(bed)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestEligible(t *testing.T) {
	cases := map[string]struct {
		edit func(*defs.Definition)
		want bool
	}{
		"building":      {func(*defs.Definition) {}, true},
		"not claimable": {func(d *defs.Definition) { d.Claimable = false }, false},
		"no graphic":    {func(d *defs.Definition) { d.Graphic = "" }, false},
		"terrain":       {func(d *defs.Definition) { d.NaturalTerrain = true }, false},
		"not building":  {func(d *defs.Definition) { d.Building = false }, false},
		"packable":      {func(d *defs.Definition) { d.PackedForm = &defs.Definition{} }, false},
		"derived":       {func(d *defs.Definition) { d.Role = defs.RolePacked }, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := building("X")
			tc.edit(d)
			assert.Equal(t, tc.want, Eligible(d))
		})
	}
}

func TestGenerateAll(t *testing.T) {
	f := newFixture(t)
	rock := building("Granite")
	rock.NaturalTerrain = true
	wall := building("Wall")
	wall.Claimable = false
	f.add(t, building("Bed"), building("Table"), rock, wall, building("Chair"))

	res, err := f.gen.GenerateAll([]string{"Table", "Ghost"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Packed_Bed", "Packed_Table", "Packed_Chair"}, res.Generated)
	assert.Equal(t, []string{"Packed_Table"}, res.Removed)
	assert.Equal(t, []string{"Ghost"}, res.Unknown)

	_, ok := f.reg.Get("Packed_Table")
	assert.False(t, ok)
	assert.Nil(t, f.reg.MustGet("Table").PackedForm)
	assert.NotNil(t, f.reg.MustGet("Bed").PackedForm)
	assert.Nil(t, f.reg.MustGet("Granite").PackedForm)
	assert.Nil(t, f.reg.MustGet("Wall").PackedForm)

	// unique ids across everything the pass issued
	seen := map[uint16]string{}
	for _, d := range f.reg.All() {
		if prev, dup := seen[d.ShortID]; dup {
			t.Fatalf("%s and %s share id %d", prev, d.Name, d.ShortID)
		}
		seen[d.ShortID] = d.Name
	}
}
