package composer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/config"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComposer(t *testing.T, opts ...func(*config.Config)) *Composer {
	cfg := config.Default()
	cfg.PollInterval = time.Millisecond
	for _, o := range opts {
		o(cfg)
	}
	c := New(cfg, WithSeed(1))
	t.Cleanup(func() {
		_, _ = c.FinishComposing()
	})
	return c
}

func next(t *testing.T, c *Composer) *model.Measure {
	var m *model.Measure
	require.Eventually(t, func() bool {
		var err error
		m, err = c.WriteNextMeasure()
		return err == nil
	}, 5*time.Second, time.Millisecond)
	return m
}

func TestNotStarted(t *testing.T) {
	assert := assert.New(t)
	c := newComposer(t)
	_, err := c.WriteNextMeasure()
	assert.ErrorIs(err, ErrNotStarted)
	_, err = c.ReceiveInput("restart")
	assert.ErrorIs(err, ErrNotStarted)
	_, err = c.FinishComposing()
	assert.ErrorIs(err, ErrNotStarted)
	_, ok := c.Kind()
	assert.False(ok)
}

func TestBeginAndConsume(t *testing.T) {
	assert := assert.New(t)
	c := newComposer(t)

	first, err := c.BeginComposing(strategy.Chorale)
	require.NoError(t, err)
	assert.Equal("key: C major; chord: C", first.Annotation)
	kind, ok := c.Kind()
	assert.True(ok)
	assert.Equal(strategy.Chorale, kind)

	for i := 0; i < 40; i++ {
		m := next(t, c)
		assert.Contains(m.Annotation, "chord: ")
		assert.Len(m.PitchesAt(model.Piano, model.NewFraction(0, 1)), 4)
	}

	snap, err := c.FinishComposing()
	require.NoError(t, err)
	assert.Equal(41, snap.Played)
	assert.Equal("chorale", snap.Strategy)
	assert.GreaterOrEqual(len(snap.Sections), 5)

	_, err = c.WriteNextMeasure()
	assert.ErrorIs(err, ErrNotStarted)
	assert.Len(c.History(), 1)
}

func TestNotReadyWhileHealthy(t *testing.T) {
	c := newComposer(t, func(cfg *config.Config) {
		cfg.PollInterval = time.Hour
	})
	_, err := c.BeginComposing(strategy.Chorale)
	require.NoError(t, err)

	// the first tick only plans, then the worker sleeps
	_, err = c.WriteNextMeasure()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.NotErrorIs(t, err, ErrStalled)
}

func TestLookaheadIsBounded(t *testing.T) {
	c := newComposer(t)
	_, err := c.BeginComposing(strategy.Polyphony)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Pending() == 16
	}, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 16, c.Pending())

	// consuming wakes the worker, which refills once a section fits
	for i := 0; i < 9; i++ {
		next(t, c)
	}
	require.Eventually(t, func() bool {
		return c.Pending() == 15
	}, 5*time.Second, time.Millisecond)
}

func TestStallSurfacesFault(t *testing.T) {
	assert := assert.New(t)
	c := newComposer(t)
	boom := errors.New("boom")
	var ticks atomic.Int32
	c.iterate = func(s *strategy.Strategy, comp *composition.Incomplete) (bool, error) {
		if ticks.Add(1) > 4 {
			return false, boom
		}
		return s.Iterate(comp)
	}

	_, err := c.BeginComposing(strategy.Chorale)
	require.NoError(t, err)

	// one planning tick and three bars happen before the fault
	var got int
	require.Eventually(t, func() bool {
		_, err = c.WriteNextMeasure()
		if err == nil {
			got++
		}
		return errors.Is(err, ErrStalled)
	}, 5*time.Second, time.Millisecond)
	assert.ErrorIs(err, boom)
	assert.Equal(3, got)

	_, err = c.WriteNextMeasure()
	assert.ErrorIs(err, ErrStalled)
}

func TestStallRecoversPanic(t *testing.T) {
	c := newComposer(t)
	c.iterate = func(*strategy.Strategy, *composition.Incomplete) (bool, error) {
		panic("voice crossed")
	}
	_, err := c.BeginComposing(strategy.Modulating)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err = c.WriteNextMeasure()
		return errors.Is(err, ErrStalled)
	}, 5*time.Second, time.Millisecond)
	assert.Contains(t, err.Error(), "voice crossed")
}

func TestReceiveInput(t *testing.T) {
	assert := assert.New(t)
	c := newComposer(t)
	_, err := c.BeginComposing(strategy.Chorale)
	require.NoError(t, err)
	firstID, _ := c.ID()

	_, err = c.ReceiveInput("compose harder")
	assert.ErrorIs(err, ErrUnknownCommand)
	id, _ := c.ID()
	assert.Equal(firstID, id)
	assert.Empty(c.History())

	m, err := c.ReceiveInput("  RESTART ")
	require.NoError(t, err)
	assert.NotNil(m)
	kind, _ := c.Kind()
	assert.Equal(strategy.Chorale, kind)
	id, _ = c.ID()
	assert.NotEqual(firstID, id)
	require.Len(t, c.History(), 1)
	assert.Equal(firstID, c.History()[0].ID)

	for i := 0; i < 10; i++ {
		before, _ := c.Kind()
		_, err := c.ReceiveInput("Switch")
		require.NoError(t, err)
		after, _ := c.Kind()
		assert.NotEqual(before, after)
	}
	assert.Len(c.History(), 11)
	next(t, c)
}
