// Package composer runs one composition at a time in the background and
// hands finished measures to a player.
package composer

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/config"
	"github.com/jsphweid/harmonia/logger"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/strategy"
)

var (
	ErrNotReady       = errors.New("composer: no measure ready yet")
	ErrStalled        = errors.New("composer: composition stalled")
	ErrUnknownCommand = errors.New("composer: unknown command")
	ErrNotStarted     = errors.New("composer: not composing")
)

type iterateFunc func(s *strategy.Strategy, c *composition.Incomplete) (bool, error)

type Composer struct {
	cfg   *config.Config
	ready chan struct{}

	mu      sync.Mutex
	rng     *rand.Rand
	current *session
	history []composition.Composition

	// replaced in tests to inject faults
	iterate iterateFunc
}

type Option func(*Composer)

// WithSeed makes strategy choices and every composition reproducible.
func WithSeed(seed int64) Option {
	return func(c *Composer) {
		c.rng = rand.New(rand.NewSource(seed))
	}
}

func New(cfg *config.Config, opts ...Option) *Composer {
	c := &Composer{
		cfg:   cfg,
		ready: make(chan struct{}, 1),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.iterate = (*strategy.Strategy).Iterate
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready receives a value whenever the worker made progress. It never blocks
// the worker, so several events may collapse into one.
func (c *Composer) Ready() <-chan struct{} {
	return c.ready
}

// BeginComposing starts a fresh composition and returns its first measure.
// A composition already running is finished and kept in History.
func (c *Composer) BeginComposing(kind strategy.Kind) (*model.Measure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retire()
	return c.start(kind)
}

func (c *Composer) start(kind strategy.Kind) (*model.Measure, error) {
	st, err := strategy.New(kind, c.cfg, rand.New(rand.NewSource(c.rng.Int63())))
	if err != nil {
		return nil, err
	}
	first, err := st.FirstMeasure()
	if err != nil {
		return nil, err
	}
	comp := composition.NewIncomplete(kind.String())
	_ = comp.Do(func(comp *composition.Incomplete) error {
		comp.Played(first)
		return nil
	})

	s := newSession(st, comp)
	c.current = s
	go s.run(c.iterate, c.ready, c.cfg.PollInterval)

	logger.Info("composition started", logger.Fields{
		"composition_id": comp.ID,
		"strategy":       kind.String(),
		"key":            st.Home().String(),
	})
	return first, nil
}

// retire stops the running composition, if any, and records its snapshot.
func (c *Composer) retire() (composition.Composition, bool) {
	if c.current == nil {
		return composition.Composition{}, false
	}
	snap := c.current.finish()
	c.current = nil
	c.history = append(c.history, snap)
	logger.Info("composition finished", logger.Fields{
		"composition_id": snap.ID,
		"strategy":       snap.Strategy,
		"measures":       len(snap.Measures),
	})
	return snap, true
}

// WriteNextMeasure hands over the oldest queued measure. Measures queued
// before a fault are still handed over; after that ErrStalled wraps the
// fault.
func (c *Composer) WriteNextMeasure() (*model.Measure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNotStarted
	}
	s := c.current
	if m, ok := s.comp.Dequeue(); ok {
		s.signal()
		return m, nil
	}
	if err := s.err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStalled, err)
	}
	return nil, ErrNotReady
}

// ReceiveInput handles "restart" (same strategy) and "switch" (a different
// one), case-insensitively. Both finish the current composition first.
func (c *Composer) ReceiveInput(cmd string) (*model.Measure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNotStarted
	}

	var kind strategy.Kind
	switch strings.ToLower(strings.TrimSpace(cmd)) {
	case "restart":
		kind = c.current.strategy.Kind()
	case "switch":
		kind = c.other(c.current.strategy.Kind())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	c.retire()
	return c.start(kind)
}

func (c *Composer) other(cur strategy.Kind) strategy.Kind {
	kinds := strategy.Kinds()
	for {
		if k := kinds[c.rng.Intn(len(kinds))]; k != cur {
			return k
		}
	}
}

// FinishComposing stops the worker and returns everything written.
func (c *Composer) FinishComposing() (composition.Composition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.retire()
	if !ok {
		return composition.Composition{}, ErrNotStarted
	}
	return snap, nil
}

// History lists finished compositions, oldest first.
func (c *Composer) History() []composition.Composition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]composition.Composition(nil), c.history...)
}

func (c *Composer) Kind() (strategy.Kind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0, false
	}
	return c.current.strategy.Kind(), true
}

// ID is the running composition's id.
func (c *Composer) ID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", false
	}
	return c.current.comp.ID, true
}

// Pending is the number of measures composed but not yet handed over.
func (c *Composer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.comp.Pending()
}
