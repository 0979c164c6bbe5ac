package redirect

import (
	"slices"

	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/internal/core/observability/log"
)

// Finalized is the payload of the install finalization event.
type Finalized struct {
	Thing  *host.Thing
	Purged int
	// DetachAt is the tick the detach phase is due.
	DetachAt uint64
}

// FinalizeInstall runs once an install turned into a solid entity. A
// container drops held sub-items that are stale packed references, i.e.
// whose unpacked entity is already spawned in the world. The entity is then
// detached and re-attached through the scheduler so the host rebuilds its
// cached visuals.
func (p *Policy) FinalizeInstall(created *host.Thing) Finalized {
	thing := created.InnerIfPacked()
	if thing == nil {
		return Finalized{}
	}

	purged := 0
	if thing.Def != nil && thing.Def.Container {
		before := len(thing.Held)
		thing.Held = slices.DeleteFunc(thing.Held, func(held *host.Thing) bool {
			return held.InnerIfPacked().Spawned
		})
		purged = before - len(thing.Held)
	}

	due := p.scheduleReinstall(thing)

	f := Finalized{Thing: thing, Purged: purged, DetachAt: due}
	p.log.Debug("install finalized",
		log.String("thing", thing.String()),
		log.Int("purged", purged),
		log.Uint64("detach_at", due),
	)
	p.publish(EventInstallDone, f)
	return f
}

// scheduleReinstall queues the detach phase; the detach queues the reattach
// at the same position and rotation.
func (p *Policy) scheduleReinstall(thing *host.Thing) uint64 {
	return p.scheduler.Schedule(p.delay, "detach "+thing.String(), func() {
		if !thing.Spawned {
			return
		}
		pos, rot := thing.Pos, thing.Rot
		if err := p.world.Despawn(thing); err != nil {
			p.log.Warn("detach after install failed", log.String("thing", thing.String()), log.Error(err))
			return
		}
		p.scheduler.Schedule(p.delay, "reattach "+thing.String(), func() {
			if err := p.world.Spawn(thing, pos, rot); err != nil {
				p.log.Warn("reattach after install failed", log.String("thing", thing.String()), log.Error(err))
			}
		})
	})
}
