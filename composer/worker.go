package composer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/logger"
	"github.com/jsphweid/harmonia/strategy"
)

// session is one composition and the goroutine writing it.
type session struct {
	strategy *strategy.Strategy
	comp     *composition.Incomplete

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	fault error
}

func newSession(st *strategy.Strategy, comp *composition.Incomplete) *session {
	return &session{
		strategy: st,
		comp:     comp,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *session) run(iterate iterateFunc, ready chan<- struct{}, interval time.Duration) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		pause, err := s.tick(iterate)
		if err != nil {
			s.mu.Lock()
			s.fault = err
			s.mu.Unlock()
			logger.Error("composition stalled", err, logger.Fields{
				"composition_id": s.comp.ID,
				"strategy":       s.strategy.Kind().String(),
				"pending":        s.comp.Pending(),
			})
			return
		}

		if pause {
			// nothing to do until a measure is consumed
			select {
			case <-s.wake:
			case <-s.stop:
				return
			}
			continue
		}

		select {
		case ready <- struct{}{}:
		default:
		}
		if interval > 0 {
			select {
			case <-s.stop:
				return
			case <-time.After(interval):
			}
		}
	}
}

func (s *session) tick(iterate iterateFunc) (pause bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in composing stage: %v", r)
		}
	}()
	return iterate(s.strategy, s.comp)
}

// signal wakes a paused worker. It never blocks.
func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

// finish stops the worker, waits for it to exit and snapshots the result.
func (s *session) finish() composition.Composition {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return s.comp.Snapshot()
}
