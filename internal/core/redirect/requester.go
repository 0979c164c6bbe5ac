package redirect

import (
	"fmt"

	"github.com/zeusync/packwork/internal/core/host"
)

// Requester is the party a candidate must be usable by. The two call sites
// differ only in which Requester they pass.
type Requester interface {
	Faction() host.Faction
	// CanUse reports whether the requester could claim target for a
	// construction at site.
	CanUse(world host.World, target *host.Thing, site host.Position) bool
	String() string
}

// AgentRequester is a concrete worker being offered a job. Candidates must
// be reachable by path within the danger limit and reservable by the agent.
type AgentRequester struct {
	Agent  *host.Agent
	Mode   host.PathMode
	Danger host.Danger
}

// ForAgent builds the requester used at the job offer point.
func ForAgent(agent *host.Agent) AgentRequester {
	return AgentRequester{Agent: agent, Mode: host.PathPassDoors, Danger: host.DangerSome}
}

func (r AgentRequester) Faction() host.Faction {
	return r.Agent.Faction
}

func (r AgentRequester) CanUse(world host.World, target *host.Thing, _ host.Position) bool {
	return world.CanReach(r.Agent, target, r.Mode, r.Danger) &&
		world.CanReserve(r.Agent, target)
}

func (r AgentRequester) String() string {
	return fmt.Sprintf("agent %s", r.Agent)
}

// FactionRequester stands for a faction before any agent commits. Candidates
// must be connected to the construction site and free of conflicting
// reservations.
type FactionRequester struct {
	Of host.Faction
}

func (r FactionRequester) Faction() host.Faction {
	return r.Of
}

func (r FactionRequester) CanUse(world host.World, target *host.Thing, site host.Position) bool {
	return world.Connected(site, target) &&
		!world.ReservedAgainst(target, r.Of)
}

func (r FactionRequester) String() string {
	return fmt.Sprintf("faction %s", r.Of)
}
