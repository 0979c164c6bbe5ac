// Package scheduler runs single-shot callbacks after a number of simulation
// ticks. It is driven by the host tick loop and never starts goroutines:
// callbacks run inside Tick on the caller's thread. There is no
// cancellation; once scheduled, an action runs unless the scheduler is
// dropped with the simulation.
package scheduler

import (
	"fmt"

	"github.com/zeusync/packwork/internal/core/observability/log"
	"github.com/zeusync/packwork/pkg/sequence"
)

// Action is a deferred callback.
type Action func()

type pending struct {
	due    uint64
	seq    uint64
	label  string
	action Action
}

// Scheduler is a tick-counted queue of deferred actions, ordered by due tick
// and then by scheduling order.
type Scheduler struct {
	now   uint64
	seq   uint64
	queue *sequence.Heap[pending]
	log   log.Log
}

type Option func(*Scheduler)

func WithLogger(l log.Log) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithStartTick starts the clock at tick instead of 0.
func WithStartTick(tick uint64) Option {
	return func(s *Scheduler) { s.now = tick }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		queue: sequence.NewHeap(func(a, b pending) bool {
			if a.due != b.due {
				return a.due < b.due
			}
			return a.seq < b.seq
		}),
		log: log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule queues action to run once delay ticks from now, and returns the
// due tick. A nil action is dropped.
func (s *Scheduler) Schedule(delay uint64, label string, action Action) uint64 {
	due := s.now + delay
	if action == nil {
		s.log.Warn("dropping nil deferred action", log.String("label", label))
		return due
	}
	s.seq++
	s.queue.Push(pending{due: due, seq: s.seq, label: label, action: action})
	s.log.Debug("deferred action scheduled",
		log.String("label", label),
		log.Uint64("now", s.now),
		log.Uint64("due", due),
	)
	return due
}

// Tick advances the clock by one and runs every action now due, including
// actions scheduled by those actions with a zero delay. It returns the
// number of actions run.
func (s *Scheduler) Tick() int {
	s.now++
	ran := 0
	for {
		next, ok := s.queue.Peek()
		if !ok || next.due > s.now {
			return ran
		}
		_, _ = s.queue.Pop()
		s.run(next)
		ran++
	}
}

// Advance ticks n times.
func (s *Scheduler) Advance(n uint64) int {
	ran := 0
	for i := uint64(0); i < n; i++ {
		ran += s.Tick()
	}
	return ran
}

// Now is the current tick.
func (s *Scheduler) Now() uint64 {
	return s.now
}

// Pending counts queued actions.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

func (s *Scheduler) run(p pending) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("deferred action panicked",
				log.String("label", p.label),
				log.Uint64("tick", s.now),
				log.Error(fmt.Errorf("panic: %v", r)),
			)
		}
	}()
	p.action()
}
