package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("def.packed.added", func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("def.packed.added", "generator", "Packed_Bed", nil)))
	require.NotNil(t, got)
	assert.Equal(t, "Packed_Bed", got.Data())
	assert.Equal(t, "generator", got.Source())
}

func TestDeliveryOrderAndWildcard(t *testing.T) {
	b := New()
	var order []string
	_, _ = b.Subscribe(Wildcard, func(Event) error { order = append(order, "wild"); return nil })
	_, _ = b.Subscribe("x", func(Event) error { order = append(order, "first"); return nil })
	_, _ = b.Subscribe("x", func(Event) error { order = append(order, "second"); return nil })

	require.NoError(t, b.Publish(NewEvent("x", "t", nil, nil)))
	assert.Equal(t, []string{"first", "second", "wild"}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "t", nil, nil))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	count := 0
	sub, err := b.Subscribe("x", func(Event) error { count++; return nil })
	require.NoError(t, err)

	_ = b.Publish(NewEvent("x", "t", nil, nil))
	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, b.Unsubscribe(nil))
	_ = b.Publish(NewEvent("x", "t", nil, nil))

	assert.Equal(t, 1, count)
	assert.False(t, sub.IsActive())
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(e Event) error { return nil })
	_ = b.Publish(NewEvent("e", "s", nil, nil))
	assert.Zero(t, b.GetMetrics().Published)

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil, nil))
	m := b.GetMetrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, 1, obs.publishCount)
	assert.Equal(t, 1, obs.deliveredCount)

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "s", nil, nil))
	assert.Equal(t, 1, obs.publishCount)
}

func TestPublishRejectsNil(t *testing.T) {
	assert.Error(t, New().Publish(nil))
	_, err := New().Subscribe("x", nil)
	assert.Error(t, err)
}
