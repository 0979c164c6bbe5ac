package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduleRunsAfterDelayExactlyOnce(t *testing.T) {
	s := New()
	calls := 0
	var ranAt uint64
	due := s.Schedule(500, "respawn", func() {
		calls++
		ranAt = s.Now()
	})
	assert.Equal(t, uint64(500), due)

	s.Advance(499)
	assert.Zero(t, calls, "ran before its delay")

	s.Tick()
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(500), ranAt)

	s.Advance(1000)
	assert.Equal(t, 1, calls)
	assert.Zero(t, s.Pending())
}

func TestFIFOByDueTick(t *testing.T) {
	s := New()
	var order []string
	s.Schedule(10, "late", func() { order = append(order, "late") })
	s.Schedule(5, "early-a", func() { order = append(order, "early-a") })
	s.Schedule(5, "early-b", func() { order = append(order, "early-b") })

	s.Advance(10)
	assert.Equal(t, []string{"early-a", "early-b", "late"}, order)
}

func TestChainedSchedule(t *testing.T) {
	s := New(WithStartTick(100))
	var detachedAt, attachedAt uint64
	s.Schedule(500, "detach", func() {
		detachedAt = s.Now()
		s.Schedule(500, "attach", func() { attachedAt = s.Now() })
	})

	s.Advance(500)
	assert.Equal(t, uint64(600), detachedAt)
	assert.Zero(t, attachedAt)
	require.Equal(t, 1, s.Pending())

	s.Advance(500)
	assert.Equal(t, uint64(1100), attachedAt)
}

func TestZeroDelayRunsOnNextTick(t *testing.T) {
	s := New()
	ran := false
	s.Schedule(0, "now", func() { ran = true })
	assert.False(t, ran)
	assert.Equal(t, 1, s.Tick())
	assert.True(t, ran)
}

func TestPanickingActionDoesNotStopTick(t *testing.T) {
	s := New()
	ran := false
	s.Schedule(1, "boom", func() { panic("boom") })
	s.Schedule(1, "after", func() { ran = true })

	assert.NotPanics(t, func() { s.Tick() })
	assert.True(t, ran)
}

func TestNilActionIsDropped(t *testing.T) {
	s := New()
	s.Schedule(1, "nil", nil)
	assert.Zero(t, s.Pending())
}
