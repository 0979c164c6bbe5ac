package extension

import (
	"fmt"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/generator"
	"github.com/zeusync/packwork/internal/core/hooks"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/redirect"
	"github.com/zeusync/packwork/internal/core/scheduler"
	"github.com/zeusync/packwork/internal/core/sim"
	"github.com/zeusync/packwork/internal/core/world"
)

// Runtime is a reference host with the extension attached.
type Runtime struct {
	Config     Config
	Bus        bus.EventBus
	Defs       *defs.Registry
	Pool       *defs.ShortIDPool
	Categories *defs.Categories
	Hooks      *hooks.Registry
	Scheduler  *scheduler.Scheduler
	World      *world.World
	Generator  *generator.Generator
	Policy     *redirect.Policy
	Extension  *Extension
	Sim        *sim.Sim
}

func NewRuntime(cfg Config, logger log.Log, b bus.EventBus) *Runtime {
	r := &Runtime{
		Config:     cfg,
		Bus:        b,
		Defs:       defs.NewRegistry(),
		Pool:       defs.NewShortIDPool(),
		Categories: defs.NewCategories(),
		Hooks:      hooks.NewRegistry(hooks.WithLogger(logger.With(log.String("component", "hooks"))), hooks.WithBus(b)),
		Scheduler:  scheduler.New(scheduler.WithLogger(logger.With(log.String("component", "scheduler")))),
		World:      world.New(world.WithLogger(logger.With(log.String("component", "world")))),
	}
	r.Generator = generator.New(r.Defs, r.Pool, r.Categories,
		generator.WithLogger(logger.With(log.String("component", "generator"))),
		generator.WithBus(b),
	)
	r.Policy = redirect.New(r.World, r.Scheduler,
		redirect.WithLogger(logger.With(log.String("component", "redirect"))),
		redirect.WithBus(b),
		redirect.WithReinstallDelay(cfg.ReinstallDelay),
		redirect.WithDisabled(!cfg.Redirect),
	)
	r.Extension = New(cfg, r.Hooks, r.Defs, r.Generator, r.Policy, WithLogger(logger))
	r.Sim = sim.New(r.World, r.Hooks, r.Scheduler, r.Defs, sim.WithLogger(logger.With(log.String("component", "sim"))))
	return r
}

// Start loads the scenario, attaches the extension, installs the host
// points, runs startup generation and populates the world. A startup
// generation failure is returned and the world stays empty.
func (r *Runtime) Start(sc *world.Scenario) error {
	if err := r.Config.Validate(); err != nil {
		return err
	}
	if err := sc.Define(r.Defs, r.Pool, r.Categories); err != nil {
		return fmt.Errorf("define scenario: %w", err)
	}
	if err := r.Extension.Attach(); err != nil {
		return err
	}
	r.Sim.Bind(r.Config.Patch.WrapperCall, r.Extension.Wrap(r.Sim.PlaceRaw()))
	if err := r.Sim.Install(); err != nil {
		return fmt.Errorf("install points: %w", err)
	}
	if err := r.Sim.GenerateImpliedDefs(); err != nil {
		return err
	}
	if err := r.Extension.StartupErr(); err != nil {
		return err
	}
	if err := sc.Populate(r.World, r.Defs); err != nil {
		return fmt.Errorf("populate scenario: %w", err)
	}
	return nil
}
