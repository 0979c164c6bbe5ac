// Package redirect decides when a pending construction can reuse an existing
// packed instance instead of consuming raw materials, and carries out the
// swap: an install task for the chosen instance is placed and only then is
// the construction cancelled, so a refused swap leaves the construction in
// place.
//
// Selection is first-fit over the spatial index's natural order. No ranking
// by distance is attempted.
package redirect

import (
	"errors"
	"fmt"

	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/scheduler"
	"github.com/zeusync/packwork/pkg/sequence"
)

const (
	EventApplied        = "redirect.applied"
	EventFallback       = "redirect.fallback"
	EventInstallDone    = "install.finalized"
	DefaultReinstallGap = 500

	eventSource = "redirect"
)

var (
	ErrNoConstruction = errors.New("no pending construction")
	ErrNoRequester    = errors.New("no requester")
)

// Request asks for a packed candidate on behalf of Requester.
type Request struct {
	Construction *host.Construction
	Requester    Requester
	// Proposed marks a construction the host has not placed yet; there is
	// nothing to cancel, skipping the placement is enough.
	Proposed bool
}

func (r Request) validate() error {
	if r.Construction == nil || r.Construction.Def == nil {
		return ErrNoConstruction
	}
	if r.Requester == nil {
		return ErrNoRequester
	}
	return nil
}

// Decision is the outcome of one redirection attempt. A zero Decision means
// the host keeps its default path.
type Decision struct {
	Redirected bool
	Candidate  *host.Thing
	Task       *host.InstallTask
	// Reason explains a fallback.
	Reason string
}

// Fallback reasons.
const (
	ReasonDisabled    = "disabled"
	ReasonNotPackable = "type has no packed form"
	ReasonNoCandidate = "no eligible packed instance"
)

type Policy struct {
	world     host.World
	scheduler *scheduler.Scheduler
	bus       bus.EventBus
	log       log.Log
	delay     uint64
	disabled  bool
}

type Option func(*Policy)

func WithLogger(l log.Log) Option {
	return func(p *Policy) { p.log = l }
}

func WithBus(b bus.EventBus) Option {
	return func(p *Policy) { p.bus = b }
}

// WithReinstallDelay sets the tick gap of the detach and reattach phases
// after an install.
func WithReinstallDelay(ticks uint64) Option {
	return func(p *Policy) { p.delay = ticks }
}

// WithDisabled turns redirection off; install finalization still runs.
func WithDisabled(disabled bool) Option {
	return func(p *Policy) { p.disabled = disabled }
}

func New(world host.World, sched *scheduler.Scheduler, opts ...Option) *Policy {
	p := &Policy{
		world:     world,
		scheduler: sched,
		log:       log.Nop(),
		delay:     DefaultReinstallGap,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FindCandidate returns the first packed instance of the construction's type
// that every filter accepts. It only queries the world.
func (p *Policy) FindCandidate(req Request) (*host.Thing, bool) {
	c := req.Construction
	packed := c.Def.PackedForm
	if packed == nil {
		return nil, false
	}
	faction := req.Requester.Faction()

	return sequence.From(p.world.InstancesOf(packed)).
		Filter(func(t *host.Thing) bool { return t.Spawned && t.Material == c.Material }).
		Filter(func(t *host.Thing) bool { return !p.world.Forbidden(t, faction) }).
		Filter(func(t *host.Thing) bool { return req.Requester.CanUse(p.world, t, c.Pos) }).
		Filter(func(t *host.Thing) bool {
			_, targeted := p.world.InstallTaskFor(t)
			return !targeted
		}).
		First()
}

// Redirect replaces the pending construction with an install task for the
// first eligible candidate. A Decision with Redirected false tells the host
// to continue on its default path. An error means the world rejected the
// swap; callers fall back to the default path as well.
func (p *Policy) Redirect(req Request) (Decision, error) {
	if err := req.validate(); err != nil {
		return Decision{}, err
	}
	c := req.Construction

	if p.disabled {
		return p.fallback(req, ReasonDisabled), nil
	}
	if c.Def.PackedForm == nil {
		return p.fallback(req, ReasonNotPackable), nil
	}
	candidate, ok := p.FindCandidate(req)
	if !ok {
		return p.fallback(req, ReasonNoCandidate), nil
	}

	task, err := p.world.PlaceInstall(candidate, c.Def, c.Pos, c.Rot, c.Faction)
	if err != nil {
		return Decision{}, fmt.Errorf("install %s at %s: %w", candidate, c.Pos, err)
	}
	if !req.Proposed {
		if err = p.world.CancelConstruction(c); err != nil {
			if undo := p.world.CancelInstall(task); undo != nil {
				err = errors.Join(err, fmt.Errorf("withdraw install %s: %w", task.ID, undo))
			}
			return Decision{}, fmt.Errorf("cancel %s: %w", c, err)
		}
	}

	d := Decision{Redirected: true, Candidate: candidate, Task: task}
	p.log.Info("construction redirected to packed instance",
		log.String("requester", req.Requester.String()),
		log.String("type", c.Def.Name),
		log.String("candidate", candidate.String()),
		log.String("position", c.Pos.String()),
		log.String("task", task.ID),
	)
	p.publish(EventApplied, d)
	return d, nil
}

func (p *Policy) fallback(req Request, reason string) Decision {
	d := Decision{Reason: reason}
	p.log.Debug("construction not redirected",
		log.String("requester", req.Requester.String()),
		log.String("type", req.Construction.Def.Name),
		log.String("reason", reason),
	)
	p.publish(EventFallback, d)
	return d
}

func (p *Policy) publish(eventType string, data any) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(bus.NewEvent(eventType, eventSource, data, nil)); err != nil {
		p.log.Warn("event delivery failed", log.String("event", eventType), log.Error(err))
	}
}
