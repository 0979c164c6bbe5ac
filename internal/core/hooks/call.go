package hooks

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/packwork/internal/core/patch"
)

// Point names a location in host control flow. The registry treats it as an
// opaque key.
type Point string

// Phase is how a handler intervenes at a point.
type Phase uint8

const (
	// PhaseBefore runs ahead of the original body and may skip it.
	PhaseBefore Phase = iota
	// PhaseAfter runs once the original body returned.
	PhaseAfter
	// PhaseRewrite rewrites the instrumented body once, at install time.
	PhaseRewrite
)

func (p Phase) String() string {
	switch p {
	case PhaseBefore:
		return "before"
	case PhaseAfter:
		return "after"
	case PhaseRewrite:
		return "rewrite"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Call is one invocation of an installed point. Args are the host's inputs;
// Result is the original's return value, or the value substituted by a
// skipping before handler. After handlers may adjust Result.
type Call struct {
	Point   Point
	Args    map[string]any
	Result  any
	Body    []patch.Instruction
	Skipped bool
}

// NewCall builds a call with the given arguments.
func NewCall(args map[string]any) *Call {
	if args == nil {
		args = make(map[string]any)
	}
	return &Call{Args: args}
}

// Arg fetches a typed argument.
func Arg[T any](c *Call, key string) (T, bool) {
	v, ok := c.Args[key].(T)
	return v, ok
}

// ResultAs fetches the typed result.
func ResultAs[T any](c *Call) (T, bool) {
	v, ok := c.Result.(T)
	return v, ok
}

type (
	// BeforeFunc may ask to skip the original body by returning true; a
	// skipping handler sets Call.Result to the value the host should see.
	BeforeFunc func(c *Call) (skip bool, err error)
	// AfterFunc observes the finished call.
	AfterFunc func(c *Call) error
	// Original is the host's own body for a point.
	Original func(c *Call) error
)

// Registration attaches one handler to one point.
type Registration struct {
	Point Point
	Phase Phase
	// Owner names the registrant in logs and fault events.
	Owner string
	// Veto allows a before handler to skip the original body. At most one
	// vetoing handler may exist per point.
	Veto bool

	Before BeforeFunc
	After  AfterFunc
	Rules  []patch.Rule
}

func (r Registration) validate() error {
	if r.Point == "" {
		return ErrNoPoint
	}
	switch r.Phase {
	case PhaseBefore:
		if r.Before == nil {
			return fmt.Errorf("%s/%s: %w", r.Point, r.Phase, ErrNoHandler)
		}
	case PhaseAfter:
		if r.After == nil {
			return fmt.Errorf("%s/%s: %w", r.Point, r.Phase, ErrNoHandler)
		}
	case PhaseRewrite:
		if len(r.Rules) == 0 {
			return fmt.Errorf("%s/%s: %w", r.Point, r.Phase, ErrNoHandler)
		}
	default:
		return fmt.Errorf("%s: %w: %d", r.Point, ErrUnknownPhase, r.Phase)
	}
	return nil
}

// Fault is published when a handler fails at dispatch time.
type Fault struct {
	Point Point
	Phase Phase
	Owner string
	Err   error
}

// MarshalJSON writes the phase by name and the error as its message.
func (f Fault) MarshalJSON() ([]byte, error) {
	out := struct {
		Point Point  `json:"point"`
		Phase string `json:"phase"`
		Owner string `json:"owner"`
		Error string `json:"error,omitempty"`
		Panic bool   `json:"panic,omitempty"`
	}{Point: f.Point, Phase: f.Phase.String(), Owner: f.Owner}
	if f.Err != nil {
		out.Error = f.Err.Error()
		out.Panic = IsHandlerPanic(f.Err)
	}
	return json.Marshal(out)
}

// Stats counts dispatch outcomes for one point.
type Stats struct {
	Calls  uint64
	Skips  uint64
	Faults uint64
}
