// Package extension wires the packed-reuse behaviour into a host: it
// registers the handlers and rewrite rules on the host's points and owns the
// startup generation pass.
package extension

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/generator"
	"github.com/zeusync/packwork/internal/core/hooks"
	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/redirect"
)

const owner = "packwork"

var (
	ErrAttached    = errors.New("extension already attached")
	ErrStartup     = errors.New("startup generation failed")
	ErrBadArgument = errors.New("bad call argument")
)

// Issue codes the host raises against every generated packed definition
// that do not apply to derived definitions.
const (
	IssueZeroSpawnWeight    = "zero-spawn-weight"
	IssueMissingDescription = "missing-description"
)

type Extension struct {
	cfg       Config
	hooks     *hooks.Registry
	defs      *defs.Registry
	generator *generator.Generator
	policy    *redirect.Policy
	log       log.Log

	mu         sync.Mutex
	ids        []string
	generated  bool
	startupErr error
	result     generator.Result
	// designated is the proposal the designation hook already ran the
	// policy for; the retargeted placement call of that same designation
	// places it without asking again.
	designated *host.Construction
}

type Option func(*Extension)

func WithLogger(l log.Log) Option {
	return func(e *Extension) { e.log = l }
}

func New(cfg Config, registry *hooks.Registry, definitions *defs.Registry, gen *generator.Generator, policy *redirect.Policy, opts ...Option) *Extension {
	e := &Extension{
		cfg:       cfg,
		hooks:     registry,
		defs:      definitions,
		generator: gen,
		policy:    policy,
		log:       log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extension) Config() Config {
	return e.cfg
}

// Attach registers every handler and rewrite. It must run before the host
// installs its points, or the rewrites are rejected.
func (e *Extension) Attach() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.ids) > 0 {
		return ErrAttached
	}

	regs := []hooks.Registration{
		{Point: ImpliedDefinitionGeneration, Phase: hooks.PhaseAfter, After: e.onImpliedDefinitions},
		{Point: ConfigValidation, Phase: hooks.PhaseAfter, After: e.onConfigValidation},
		{Point: GraphicAccessor, Phase: hooks.PhaseBefore, Veto: true, Before: e.onGraphic},
		{Point: BlueprintDesignation, Phase: hooks.PhaseBefore, Veto: true, Before: e.onDesignation},
		{Point: ConstructionJobOffer, Phase: hooks.PhaseBefore, Veto: true, Before: e.onJobOffer},
		{Point: InstallFinalization, Phase: hooks.PhaseAfter, After: e.onInstallFinalized},
	}
	rules := e.cfg.Rules()
	for _, p := range Points() {
		if r, ok := rules[p]; ok {
			regs = append(regs, hooks.Registration{Point: p, Phase: hooks.PhaseRewrite, Rules: r})
		}
	}

	ids := make([]string, 0, len(regs))
	for _, reg := range regs {
		reg.Owner = owner
		id, err := e.hooks.Register(reg)
		if err != nil {
			for _, done := range ids {
				e.hooks.Unregister(done)
			}
			return fmt.Errorf("attach %s/%s: %w", reg.Point, reg.Phase, err)
		}
		ids = append(ids, id)
	}
	e.ids = ids

	e.log.Info("extension attached",
		log.Int("registrations", len(ids)),
		log.Bool("redirect", e.cfg.Redirect),
		log.Strings("excluded", e.cfg.Excluded),
	)
	return nil
}

// Detach removes the before and after handlers. Installed rewrites stay in
// the host's bodies.
func (e *Extension) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.ids {
		e.hooks.Unregister(id)
	}
	e.ids = nil
}

// GenerateAll is the startup call: it packs every eligible type and applies
// the exclusion list. It runs once; later calls return the first outcome.
func (e *Extension) GenerateAll() (generator.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generated {
		return e.result, e.startupErr
	}
	e.generated = true
	res, err := e.generator.GenerateAll(e.cfg.Excluded)
	e.result = res
	if err != nil {
		e.startupErr = fmt.Errorf("%w: %w", ErrStartup, err)
	}
	return e.result, e.startupErr
}

// StartupErr is the error of the startup pass, if it ran and failed. The
// host must not start a world when it is set.
func (e *Extension) StartupErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startupErr
}

// Wrap returns the redirect-aware replacement for the host's placement call.
// It places an install task when a packed instance is available and falls
// through to place otherwise.
func (e *Extension) Wrap(place host.Placer) host.Placer {
	return func(c *host.Construction) (any, error) {
		if e.takeDesignated(c) {
			return place(c)
		}
		d, err := e.policy.Redirect(redirect.Request{
			Construction: c,
			Requester:    redirect.FactionRequester{Of: c.Faction},
			Proposed:     true,
		})
		if err != nil {
			e.log.Warn("redirect-aware placement failed; placing normally",
				log.String("construction", c.String()),
				log.Error(err),
			)
		}
		if err == nil && d.Redirected {
			return d.Task, nil
		}
		return place(c)
	}
}

func (e *Extension) markDesignated(c *host.Construction) {
	e.mu.Lock()
	e.designated = c
	e.mu.Unlock()
}

func (e *Extension) takeDesignated(c *host.Construction) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c == nil || e.designated != c {
		return false
	}
	e.designated = nil
	return true
}

func (e *Extension) onImpliedDefinitions(*hooks.Call) error {
	_, err := e.GenerateAll()
	return err
}

func (e *Extension) onConfigValidation(c *hooks.Call) error {
	issues, ok := hooks.ResultAs[[]host.ConfigIssue](c)
	if !ok {
		return nil
	}
	kept := slices.DeleteFunc(slices.Clone(issues), e.benign)
	if dropped := len(issues) - len(kept); dropped > 0 {
		e.log.Debug("dropped benign issues on packed definitions", log.Int("dropped", dropped))
	}
	c.Result = kept
	return nil
}

func (e *Extension) benign(issue host.ConfigIssue) bool {
	if issue.Code != IssueZeroSpawnWeight && issue.Code != IssueMissingDescription {
		return false
	}
	def, ok := e.defs.Get(issue.Def)
	return ok && def.Role == defs.RolePacked && def.Builds != nil && def.Builds.PackedForm == def
}

func (e *Extension) onGraphic(c *hooks.Call) (bool, error) {
	thing, ok := hooks.Arg[*host.Thing](c, ArgThing)
	if !ok || thing == nil || !thing.IsPacked() {
		return false, nil
	}
	if thing.Def.Graphic != "" || thing.Def.Builds == nil || thing.Def.Builds.Graphic == "" {
		return false, nil
	}
	c.Result = thing.Def.Builds.Graphic
	return true, nil
}

func (e *Extension) onDesignation(c *hooks.Call) (bool, error) {
	construction, ok := hooks.Arg[*host.Construction](c, ArgConstruction)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrBadArgument, ArgConstruction)
	}
	if !e.cfg.Redirect {
		e.markDesignated(construction)
		return false, nil
	}
	faction, ok := hooks.Arg[host.Faction](c, ArgFaction)
	if !ok {
		faction = construction.Faction
	}
	d, err := e.policy.Redirect(redirect.Request{
		Construction: construction,
		Requester:    redirect.FactionRequester{Of: faction},
		Proposed:     true,
	})
	if err != nil || !d.Redirected {
		e.markDesignated(construction)
		return false, err
	}
	c.Result = d.Task
	return true, nil
}

func (e *Extension) onJobOffer(c *hooks.Call) (bool, error) {
	if !e.cfg.Redirect {
		return false, nil
	}
	agent, ok := hooks.Arg[*host.Agent](c, ArgAgent)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrBadArgument, ArgAgent)
	}
	construction, ok := hooks.Arg[*host.Construction](c, ArgConstruction)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrBadArgument, ArgConstruction)
	}
	d, err := e.policy.Redirect(redirect.Request{
		Construction: construction,
		Requester:    redirect.ForAgent(agent),
	})
	if err != nil || !d.Redirected {
		return false, err
	}
	c.Result = host.Job{Kind: host.JobInstall, Install: d.Task}
	return true, nil
}

func (e *Extension) onInstallFinalized(c *hooks.Call) error {
	created, ok := hooks.ResultAs[*host.Thing](c)
	if !ok || created == nil {
		return nil
	}
	e.policy.FinalizeInstall(created)
	return nil
}
