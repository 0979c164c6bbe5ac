package redirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/host"
)

func TestFinalizeInstallDetachesThenReattaches(t *testing.T) {
	s := newSetup()
	packed := s.packedAt(1, "Steel")
	c := s.construction()
	d, err := s.policy.Redirect(Request{Construction: c, Requester: ForAgent(s.ann)})
	require.NoError(t, err)
	require.True(t, d.Redirected)

	solid, err := s.world.CompleteInstall(d.Task)
	require.NoError(t, err)
	require.Same(t, packed.Inner, solid)

	var done []Finalized
	_, _ = s.bus.Subscribe(EventInstallDone, func(e bus.Event) error {
		done = append(done, e.Data().(Finalized))
		return nil
	})

	f := s.policy.FinalizeInstall(solid)
	assert.Same(t, solid, f.Thing)
	assert.Equal(t, uint64(DefaultReinstallGap), f.DetachAt)
	require.Len(t, done, 1)

	s.sched.Advance(DefaultReinstallGap - 1)
	assert.True(t, solid.Spawned, "detached early")

	s.sched.Tick()
	assert.False(t, solid.Spawned)
	assert.Empty(t, s.world.InstancesOf(s.base))

	s.sched.Advance(DefaultReinstallGap)
	assert.True(t, solid.Spawned)
	assert.Equal(t, c.Pos, solid.Pos)
	assert.Equal(t, c.Rot, solid.Rot)
	assert.Equal(t, []*host.Thing{solid}, s.world.InstancesOf(s.base))
	assert.Zero(t, s.sched.Pending())
}

func TestFinalizeInstallPurgesStaleSubItems(t *testing.T) {
	s := newSetup(WithReinstallDelay(10))
	shelfDef := &defs.Definition{Name: "Shelf", Kind: defs.KindThing, Building: true, Container: true}
	shelf := s.world.Place(shelfDef, "Steel", host.Position{}, host.North, "player")

	spawnedInner := s.world.Place(s.base, "Steel", host.Position{X: 7}, host.North, "player")
	stale := &host.Thing{Def: s.packed, Inner: spawnedInner}
	fresh := &host.Thing{Def: s.packed, Inner: &host.Thing{Def: s.base}}
	loose := &host.Thing{Def: &defs.Definition{Name: "Steel"}}
	shelf.Held = []*host.Thing{stale, fresh, loose}

	f := s.policy.FinalizeInstall(shelf)
	assert.Equal(t, 1, f.Purged)
	assert.Equal(t, []*host.Thing{fresh, loose}, shelf.Held)
	assert.Equal(t, uint64(10), f.DetachAt)
}

func TestFinalizeInstallUnwrapsPacked(t *testing.T) {
	s := newSetup()
	packed := s.packedAt(1, "Steel")
	f := s.policy.FinalizeInstall(packed)
	assert.Same(t, packed.Inner, f.Thing)

	// the inner entity is not spawned, so the detach phase does nothing
	s.sched.Advance(2 * DefaultReinstallGap)
	assert.False(t, packed.Inner.Spawned)
	assert.Zero(t, s.sched.Pending())
}
