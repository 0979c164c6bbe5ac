package defs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRegistryAddRemove(t *testing.T) {
	reg := NewRegistry()
	bed := &Definition{Name: "Bed", Kind: KindThing}
	require.NoError(t, reg.Add(bed))
	assert.ErrorIs(t, reg.Add(&Definition{Name: "Bed"}), ErrDuplicateName)
	assert.ErrorIs(t, reg.Add(&Definition{}), ErrEmptyName)
	assert.ErrorIs(t, reg.Add(nil), ErrEmptyName)

	got, ok := reg.Get("Bed")
	require.True(t, ok)
	assert.Same(t, bed, got)

	removed, ok := reg.Remove("Bed")
	assert.True(t, ok)
	assert.Same(t, bed, removed)
	_, ok = reg.Remove("Bed")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestRegistryKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"C", "A", "B"} {
		require.NoError(t, reg.Add(&Definition{Name: name}))
	}
	reg.Remove("A")
	require.NoError(t, reg.Add(&Definition{Name: "A"}))

	var names []string
	for _, d := range reg.All() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"C", "B", "A"}, names)
}

func TestRegistryRejectsLiveIDCollision(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&Definition{Name: "A", Kind: KindThing, ShortID: 7}))
	err := reg.Add(&Definition{Name: "B", Kind: KindThing, ShortID: 7})
	assert.ErrorIs(t, err, ErrIDCollision)
	_, ok := reg.Get("B")
	assert.False(t, ok)
}

func TestShortIDPoolIsStableAndUnique(t *testing.T) {
	pool := NewShortIDPool()
	seen := make(map[uint16]string)
	for i := 0; i < 500; i++ {
		def := &Definition{Name: fmt.Sprintf("Packed_%d", i), Kind: KindThing}
		id, err := pool.Assign(def)
		require.NoError(t, err)
		require.NotZero(t, id)
		require.Equal(t, id, def.ShortID)
		if prev, dup := seen[id]; dup {
			t.Fatalf("id %d issued twice: %s and %s", id, prev, def.Name)
		}
		seen[id] = def.Name
	}

	// a fresh pool seeds the same name to the same slot
	other := NewShortIDPool()
	def := &Definition{Name: "Packed_0", Kind: KindThing}
	id, err := other.Assign(def)
	require.NoError(t, err)
	assert.Equal(t, "Packed_0", seen[id])
}

func TestShortIDPoolRejectsReassign(t *testing.T) {
	pool := NewShortIDPool()
	def := &Definition{Name: "Packed_Bed", Kind: KindThing}
	_, err := pool.Assign(def)
	require.NoError(t, err)

	_, err = pool.Assign(def)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
	assert.Equal(t, 1, pool.Len(KindThing))
}

func TestShortIDPoolReleaseAndClaim(t *testing.T) {
	pool := NewShortIDPool()
	a := &Definition{Name: "A", Kind: KindThing, ShortID: 10}
	require.NoError(t, pool.Claim(a))
	assert.ErrorIs(t, pool.Claim(&Definition{Name: "B", Kind: KindThing, ShortID: 10}), ErrIDCollision)

	pool.Release(a)
	assert.Zero(t, a.ShortID)
	_, taken := pool.Owner(KindThing, 10)
	assert.False(t, taken)
	require.NoError(t, pool.Claim(&Definition{Name: "B", Kind: KindThing, ShortID: 10}))
}

func TestShortIDPoolKindsAreSeparate(t *testing.T) {
	pool := NewShortIDPool()
	a := &Definition{Name: "X", Kind: KindThing}
	b := &Definition{Name: "X", Kind: Kind("terrain")}
	idA, err := pool.Assign(a)
	require.NoError(t, err)
	idB, err := pool.Assign(b)
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
}

func TestCategoriesAddMemberOnce(t *testing.T) {
	cats := NewCategories("Furniture")
	assert.True(t, cats.AddMember("Furniture", "Bed"))
	assert.False(t, cats.AddMember("Furniture", "Bed"))
	cat, ok := cats.Get("Furniture")
	require.True(t, ok)
	assert.Equal(t, []string{"Bed"}, cat.Members)
	assert.Equal(t, []string{MiscCategory, "Furniture"}, cats.Names())
}

func TestResolveReferences(t *testing.T) {
	reg := NewRegistry()
	steel := &Definition{Name: "Steel", Role: RoleMaterial}
	require.NoError(t, reg.Add(steel))

	bed := &Definition{Name: "Bed", Costs: []Cost{{MaterialName: "Steel", Count: 10}}}
	require.NoError(t, bed.ResolveReferences(reg))
	assert.Same(t, steel, bed.Costs[0].Material)
	assert.True(t, bed.Resolved())

	broken := &Definition{Name: "Broken", Costs: []Cost{{MaterialName: "Unobtainium", Count: 1}}}
	assert.ErrorIs(t, broken.ResolveReferences(reg), ErrUnresolved)
	assert.False(t, broken.Resolved())
}

func TestDefinitionYAML(t *testing.T) {
	src := `
name: Steel
role: material
stats:
  Mass: 0.5
`
	var def Definition
	require.NoError(t, yaml.Unmarshal([]byte(src), &def))
	assert.Equal(t, RoleMaterial, def.Role)
	assert.Equal(t, 0.5, def.UnitMass())

	assert.Equal(t, DefaultUnitMass, (&Definition{}).UnitMass())

	var bad Definition
	assert.Error(t, yaml.Unmarshal([]byte("name: X\nrole: wizard\n"), &bad))
}
