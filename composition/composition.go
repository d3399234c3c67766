package composition

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jsphweid/harmonia/model"
)

// Stage is one unit of composing work. A stage computes everything it needs
// before touching the composition so a failed stage leaves it unchanged.
type Stage func(c *Incomplete) error

// Incomplete is a composition still being written. Measures move from
// future to past strictly in FIFO order, and only fully composed measures
// enter future.
//
// The accessors without their own locking (Written, FutureLen, Enqueue, ...)
// are meant for code running inside Do.
type Incomplete struct {
	ID       string
	Strategy string
	Started  time.Time

	mu       sync.Mutex
	past     []*model.Measure
	future   []*model.Measure
	analysis Analysis
}

func NewIncomplete(strategy string) *Incomplete {
	return &Incomplete{
		ID:       uuid.New().String(),
		Strategy: strategy,
		Started:  time.Now(),
	}
}

// Do runs fn with exclusive access to the composition.
func (c *Incomplete) Do(fn func(c *Incomplete) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c)
}

// Apply runs a single stage atomically.
func (c *Incomplete) Apply(stage Stage) error {
	return c.Do(func(c *Incomplete) error {
		return stage(c)
	})
}

func (c *Incomplete) Written() int {
	return len(c.past) + len(c.future)
}

func (c *Incomplete) FutureLen() int {
	return len(c.future)
}

func (c *Incomplete) Future() []*model.Measure {
	return c.future
}

// LastMeasure is the most recently written measure, queued or played.
func (c *Incomplete) LastMeasure() *model.Measure {
	if len(c.future) > 0 {
		return c.future[len(c.future)-1]
	}
	if len(c.past) > 0 {
		return c.past[len(c.past)-1]
	}
	return nil
}

func (c *Incomplete) Enqueue(m *model.Measure) {
	c.future = append(c.future, m)
}

// Played appends a measure that went straight to the listener, such as
// the synchronously composed opening bar.
func (c *Incomplete) Played(m *model.Measure) {
	c.past = append(c.past, m)
}

func (c *Incomplete) Analysis() *Analysis {
	return &c.analysis
}

// Dequeue moves the oldest queued measure into the past and returns it.
func (c *Incomplete) Dequeue() (*model.Measure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.future) == 0 {
		return nil, false
	}
	m := c.future[0]
	c.future[0] = nil
	c.future = c.future[1:]
	c.past = append(c.past, m)
	return m, true
}

// Pending is FutureLen under the lock, for callers outside Do.
func (c *Incomplete) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.future)
}

// Snapshot freezes the composition into an immutable Composition.
func (c *Incomplete) Snapshot() Composition {
	c.mu.Lock()
	defer c.mu.Unlock()

	comp := Composition{
		ID:       c.ID,
		Strategy: c.Strategy,
		Started:  c.Started,
		Finished: time.Now(),
		Played:   len(c.past),
	}
	for _, m := range c.past {
		comp.Measures = append(comp.Measures, *m.Clone())
	}
	for _, m := range c.future {
		comp.Measures = append(comp.Measures, *m.Clone())
	}
	for _, s := range c.analysis.sections {
		comp.Sections = append(comp.Sections, summarize(s))
	}
	return comp
}
