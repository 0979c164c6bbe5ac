// Package sim is the reference host loop. It installs the host's points on a
// hooks registry, dispatches every host decision through them and advances
// the world and the deferred action scheduler one tick at a time.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/hooks"
	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/patch"
	"github.com/zeusync/packwork/internal/core/scheduler"
	"github.com/zeusync/packwork/internal/core/world"
)

var (
	ErrNotDesignatable = errors.New("type has no designation category")
	ErrNoPlacer        = errors.New("no placement call bound")
	ErrNoAgent         = errors.New("no agent for faction")
)

// TickReport summarises one tick.
type TickReport struct {
	Tick        uint64
	Constructed int
	Installed   int
	Deferred    int
}

type Sim struct {
	world  *world.World
	hooks  *hooks.Registry
	sched  *scheduler.Scheduler
	defs   *defs.Registry
	log    log.Log
	placer map[patch.MemberRef]host.Placer
}

type Option func(*Sim)

func WithLogger(l log.Log) Option {
	return func(s *Sim) { s.log = l }
}

func New(w *world.World, registry *hooks.Registry, sched *scheduler.Scheduler, definitions *defs.Registry, opts ...Option) *Sim {
	s := &Sim{
		world:  w,
		hooks:  registry,
		sched:  sched,
		defs:   definitions,
		log:    log.Nop(),
		placer: make(map[patch.MemberRef]host.Placer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.placer[PlaceBlueprint] = s.placeRaw
	return s
}

func (s *Sim) World() *world.World { return s.world }

// Bind makes member callable from the designation body.
func (s *Sim) Bind(member string, p host.Placer) {
	s.placer[patch.ParseMember(member)] = p
}

// PlaceRaw is the host's own placement.
func (s *Sim) PlaceRaw() host.Placer { return s.placeRaw }

func (s *Sim) placeRaw(c *host.Construction) (any, error) {
	return s.world.Designate(c.Def, c.Material, c.Pos, c.Rot, c.Faction), nil
}

// Install instruments and installs every host point. Extensions must have
// registered their rewrites before.
func (s *Sim) Install() error {
	points := []struct {
		point    hooks.Point
		listing  string
		original hooks.Original
	}{
		{host.PointImpliedDefinitionGeneration, impliedListing, func(*hooks.Call) error { return nil }},
		{host.PointConfigValidation, validationListing, s.validate},
		{host.PointGraphicAccessor, graphicListing, s.graphic},
		{host.PointBlueprintDesignation, designationListing, s.designate},
		{host.PointConstructionJobOffer, jobOfferListing, s.offerJob},
		{host.PointInstallFinalization, installListing, s.finalizeInstall},
	}
	for _, p := range points {
		body, err := patch.Parse(p.listing)
		if err != nil {
			return fmt.Errorf("%s: %w", p.point, err)
		}
		if _, err = s.hooks.Install(p.point, body, p.original); err != nil {
			return err
		}
	}
	return nil
}

// GenerateImpliedDefs runs the host's implied definition pass.
func (s *Sim) GenerateImpliedDefs() error {
	return s.hooks.Invoke(host.PointImpliedDefinitionGeneration, hooks.NewCall(nil))
}

// Validate runs the host's definition checks and returns what is left after
// the handlers.
func (s *Sim) Validate() ([]host.ConfigIssue, error) {
	c := hooks.NewCall(nil)
	if err := s.hooks.Invoke(host.PointConfigValidation, c); err != nil {
		return nil, err
	}
	issues, _ := hooks.ResultAs[[]host.ConfigIssue](c)
	return issues, nil
}

func (s *Sim) validate(c *hooks.Call) error {
	var issues []host.ConfigIssue
	for _, d := range s.defs.All() {
		if d.Role == defs.RoleBlueprint {
			continue
		}
		if d.Description == "" {
			issues = append(issues, host.ConfigIssue{Def: d.Name, Code: "missing-description", Message: "no description"})
		}
		if !d.Building && d.Role != defs.RoleMaterial && d.SpawnWeight == 0 {
			issues = append(issues, host.ConfigIssue{Def: d.Name, Code: "zero-spawn-weight", Message: "item never spawns"})
		}
	}
	c.Result = issues
	return nil
}

// Graphic resolves the graphic drawn for t.
func (s *Sim) Graphic(t *host.Thing) (string, error) {
	c := hooks.NewCall(map[string]any{host.ArgThing: t})
	if err := s.hooks.Invoke(host.PointGraphicAccessor, c); err != nil {
		return "", err
	}
	g, _ := hooks.ResultAs[string](c)
	return g, nil
}

func (s *Sim) graphic(c *hooks.Call) error {
	t, ok := hooks.Arg[*host.Thing](c, host.ArgThing)
	if !ok || t == nil || t.Def == nil {
		return fmt.Errorf("graphic: missing %s", host.ArgThing)
	}
	c.Result = t.Def.Graphic
	return nil
}

// Designate asks the host to place a construction. The result is the
// pending *host.Construction, or an *host.InstallTask when the placement was
// redirected.
func (s *Sim) Designate(def *defs.Definition, material string, pos host.Position, rot host.Rotation, faction host.Faction) (any, error) {
	proposed := &host.Construction{Def: def, Material: material, Pos: pos, Rot: rot, Faction: faction}
	c := hooks.NewCall(map[string]any{host.ArgConstruction: proposed, host.ArgFaction: faction})
	if err := s.hooks.Invoke(host.PointBlueprintDesignation, c); err != nil {
		return nil, err
	}
	return c.Result, nil
}

func (s *Sim) designate(c *hooks.Call) error {
	proposed, ok := hooks.Arg[*host.Construction](c, host.ArgConstruction)
	if !ok {
		return fmt.Errorf("designate: missing %s", host.ArgConstruction)
	}
	if categoryGated(c.Body) && proposed.Def.Category == "" {
		return fmt.Errorf("%s: %w", proposed.Def, ErrNotDesignatable)
	}
	member, ok := placementCall(c.Body, func(m patch.MemberRef) bool {
		_, bound := s.placer[m]
		return bound
	})
	if !ok {
		return ErrNoPlacer
	}
	out, err := s.placer[member](proposed)
	if err != nil {
		return err
	}
	c.Result = out
	return nil
}

// OfferJob offers the construction to agent and returns the job the agent
// takes.
func (s *Sim) OfferJob(agent *host.Agent, construction *host.Construction) (host.Job, error) {
	c := hooks.NewCall(map[string]any{host.ArgAgent: agent, host.ArgConstruction: construction})
	if err := s.hooks.Invoke(host.PointConstructionJobOffer, c); err != nil {
		return host.Job{}, err
	}
	job, _ := hooks.ResultAs[host.Job](c)
	return job, nil
}

func (s *Sim) offerJob(c *hooks.Call) error {
	construction, ok := hooks.Arg[*host.Construction](c, host.ArgConstruction)
	if !ok {
		return fmt.Errorf("offer: missing %s", host.ArgConstruction)
	}
	c.Result = host.Job{
		Kind:         host.JobConstruct,
		Construction: construction,
		Reservations: reservationCount(c.Body),
	}
	return nil
}

// FinalizeInstall turns an install task into a solid entity.
func (s *Sim) FinalizeInstall(task *host.InstallTask) (*host.Thing, error) {
	c := hooks.NewCall(map[string]any{host.ArgTask: task})
	if err := s.hooks.Invoke(host.PointInstallFinalization, c); err != nil {
		return nil, err
	}
	t, _ := hooks.ResultAs[*host.Thing](c)
	return t, nil
}

func (s *Sim) finalizeInstall(c *hooks.Call) error {
	task, ok := hooks.Arg[*host.InstallTask](c, host.ArgTask)
	if !ok {
		return fmt.Errorf("install: missing %s", host.ArgTask)
	}
	solid, err := s.world.CompleteInstall(task)
	if err != nil {
		return err
	}
	c.Result = solid
	return nil
}

// Tick offers every pending construction to an agent of its faction,
// completes the resulting work and open install tasks, then advances the
// scheduler.
func (s *Sim) Tick() (TickReport, error) {
	var report TickReport
	var errs []error

	for _, construction := range s.world.Pending() {
		agent, ok := s.agentFor(construction.Faction)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w: %s", construction, ErrNoAgent, construction.Faction))
			continue
		}
		job, err := s.OfferJob(agent, construction)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if job.Kind == host.JobConstruct {
			if _, err = s.world.CompleteConstruction(construction); err != nil {
				errs = append(errs, err)
				continue
			}
			report.Constructed++
		}
	}

	for _, task := range s.world.InstallTasks() {
		if _, err := s.FinalizeInstall(task); err != nil {
			errs = append(errs, err)
			continue
		}
		report.Installed++
	}

	report.Deferred = s.sched.Tick()
	report.Tick = s.sched.Now()
	return report, errors.Join(errs...)
}

// Run ticks n times or until ctx is done. Tick errors are logged; the loop
// keeps going.
func (s *Sim) Run(ctx context.Context, n uint64) (uint64, error) {
	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		report, err := s.Tick()
		if err != nil {
			s.log.Warn("tick finished with errors", log.Uint64("tick", report.Tick), log.Error(err))
		}
		if report.Constructed+report.Installed+report.Deferred > 0 {
			s.log.Debug("tick",
				log.Uint64("tick", report.Tick),
				log.Int("constructed", report.Constructed),
				log.Int("installed", report.Installed),
				log.Int("deferred", report.Deferred),
			)
		}
	}
	return n, nil
}

func (s *Sim) agentFor(faction host.Faction) (*host.Agent, bool) {
	for _, a := range s.world.Agents() {
		if a.Faction == faction {
			return a, true
		}
	}
	return nil, false
}
