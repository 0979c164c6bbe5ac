// Package hooks is the interception registry: handlers are attached to named
// extension points in three phases.
//
// Rewrite handlers run once, when the host installs the point, and produce
// the instrumented body. Before handlers run in registration order on every
// call; the point's single vetoing handler may skip the original body and
// the after handlers, substituting its own result. After handlers run in
// registration order once the original returned. A before or after handler
// that fails (error or panic) is logged and treated as if it had not run, so
// a broken handler can never abort the host's tick.
package hooks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/internal/core/patch"
)

const (
	EventFault         = "hook.fault"
	EventPatchMismatch = "hook.patch_mismatch"

	eventSource = "hooks"
)

type entry struct {
	id  string
	reg Registration
}

type pointState struct {
	before  []entry
	after   []entry
	rewrite []entry
	vetoID  string
	method  *Method
	stats   Stats
}

// Registry holds the registrations for every point.
type Registry struct {
	mu     sync.RWMutex
	points map[Point]*pointState
	byID   map[string]Point
	bus    bus.EventBus
	log    log.Log
}

type Option func(*Registry)

func WithLogger(l log.Log) Option {
	return func(r *Registry) { r.log = l }
}

func WithBus(b bus.EventBus) Option {
	return func(r *Registry) { r.bus = b }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		points: make(map[Point]*pointState),
		byID:   make(map[string]Point),
		log:    log.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) state(p Point) *pointState {
	st, ok := r.points[p]
	if !ok {
		st = &pointState{}
		r.points[p] = st
	}
	return st
}

// Register attaches a handler and returns its registration id.
func (r *Registry) Register(reg Registration) (string, error) {
	if err := reg.validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(reg.Point)
	id := uuid.NewString()
	e := entry{id: id, reg: reg}

	switch reg.Phase {
	case PhaseBefore:
		if reg.Veto {
			if st.vetoID != "" {
				return "", fmt.Errorf("%s: %w", reg.Point, ErrVetoTaken)
			}
			st.vetoID = id
		}
		st.before = append(st.before, e)
	case PhaseAfter:
		st.after = append(st.after, e)
	case PhaseRewrite:
		if st.method != nil {
			return "", fmt.Errorf("%s: rewrite after install: %w", reg.Point, ErrAlreadyInstalled)
		}
		st.rewrite = append(st.rewrite, e)
	}
	r.byID[id] = reg.Point

	r.log.Debug("hook registered",
		log.String("point", string(reg.Point)),
		log.String("phase", reg.Phase.String()),
		log.String("owner", reg.Owner),
		log.String("id", id),
	)
	return id, nil
}

// Before is a shorthand for registering a before handler.
func (r *Registry) Before(p Point, owner string, veto bool, fn BeforeFunc) (string, error) {
	return r.Register(Registration{Point: p, Phase: PhaseBefore, Owner: owner, Veto: veto, Before: fn})
}

// After is a shorthand for registering an after handler.
func (r *Registry) After(p Point, owner string, fn AfterFunc) (string, error) {
	return r.Register(Registration{Point: p, Phase: PhaseAfter, Owner: owner, After: fn})
}

// Rewrite is a shorthand for registering rewrite rules.
func (r *Registry) Rewrite(p Point, owner string, rules ...patch.Rule) (string, error) {
	return r.Register(Registration{Point: p, Phase: PhaseRewrite, Owner: owner, Rules: rules})
}

// Unregister removes a before or after handler. Rewrites are baked into the
// instrumented body once installed and stay. It reports whether anything was
// removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return false
	}
	st := r.points[p]
	removed := false
	st.before, removed = without(st.before, id)
	if !removed {
		st.after, removed = without(st.after, id)
	}
	if !removed && st.method == nil {
		st.rewrite, removed = without(st.rewrite, id)
	}
	if removed {
		delete(r.byID, id)
		if st.vetoID == id {
			st.vetoID = ""
		}
	}
	return removed
}

func without(list []entry, id string) ([]entry, bool) {
	for i, e := range list {
		if e.id == id {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}

// Install instruments body with the point's rewrite handlers, applied in
// registration order, and binds the host's original. It is called once per
// point, at load time.
func (r *Registry) Install(p Point, body []patch.Instruction, original Original) (*Method, error) {
	r.mu.Lock()
	st := r.state(p)
	if st.method != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", p, ErrAlreadyInstalled)
	}

	type mismatch struct{ owner, rule string }
	var missed []mismatch
	instrumented := body
	for _, e := range st.rewrite {
		var report patch.Report
		instrumented, report = patch.Apply(instrumented, e.reg.Rules...)
		for _, rule := range report.Missed() {
			missed = append(missed, mismatch{owner: e.reg.Owner, rule: rule})
		}
	}

	m := &Method{point: p, body: instrumented, original: original, registry: r}
	st.method = m
	r.mu.Unlock()

	for _, mm := range missed {
		r.log.Warn("patch pattern not found; leaving body unchanged",
			log.String("point", string(p)),
			log.String("owner", mm.owner),
			log.String("rule", mm.rule),
		)
		r.publish(EventPatchMismatch, map[string]any{"point": string(p), "rule": mm.rule})
	}
	return m, nil
}

// Method returns the installed handle for p.
func (r *Registry) Method(p Point) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.points[p]
	if !ok || st.method == nil {
		return nil, false
	}
	return st.method, true
}

// Invoke dispatches a call through an installed point.
func (r *Registry) Invoke(p Point, c *Call) error {
	m, ok := r.Method(p)
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotInstalled)
	}
	return m.Invoke(c)
}

// Stats returns the dispatch counters for p.
func (r *Registry) Stats(p Point) Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.points[p]; ok {
		return st.stats
	}
	return Stats{}
}

// Points lists every point with at least one registration or install.
func (r *Registry) Points() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Point, 0, len(r.points))
	for p := range r.points {
		out = append(out, p)
	}
	return out
}

func (r *Registry) handlers(p Point) (before, after []entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := r.points[p]
	before = append([]entry(nil), st.before...)
	after = append([]entry(nil), st.after...)
	return before, after
}

func (r *Registry) count(p Point, fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.state(p).stats)
	r.mu.Unlock()
}

func (r *Registry) fault(p Point, e entry, err error) {
	r.count(p, func(s *Stats) { s.Faults++ })
	r.log.Error("hook handler failed; continuing without it",
		log.String("point", string(p)),
		log.String("phase", e.reg.Phase.String()),
		log.String("owner", e.reg.Owner),
		log.Error(err),
	)
	r.publish(EventFault, Fault{Point: p, Phase: e.reg.Phase, Owner: e.reg.Owner, Err: err})
}

func (r *Registry) publish(eventType string, data any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(bus.NewEvent(eventType, eventSource, data, nil)); err != nil {
		r.log.Warn("event delivery failed", log.String("event", eventType), log.Error(err))
	}
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = fmt.Errorf("%w: %w", ErrHandlerPanic, e)
				return
			}
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()
	return fn()
}

// IsHandlerPanic reports whether err came from a recovered panic.
func IsHandlerPanic(err error) bool {
	return errors.Is(err, ErrHandlerPanic)
}
