// Package strategy decides, one tick at a time, what a composition needs
// next: a new harmonic section, the next realized bar, or a pass over bars
// already queued. Nothing is remembered between ticks; every decision is
// recomputed from the composition.
package strategy

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/config"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/jsphweid/harmonia/progression"
)

type Kind int

const (
	Chorale Kind = iota
	Polyphony
	Modulating
)

var kindNames = []string{"chorale", "polyphony", "modulating"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func Kinds() []Kind {
	return []Kind{Chorale, Polyphony, Modulating}
}

func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", config.ErrInvalid, s)
}

type State int

const (
	Backoff State = iota
	PlanSection
	RealizeBar
	PostProcess
	Done
)

func (s State) String() string {
	switch s {
	case Backoff:
		return "backoff"
	case PlanSection:
		return "plan-section"
	case RealizeBar:
		return "realize-bar"
	case PostProcess:
		return "post-process"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the result of one Advance. Stage is nil exactly when there is
// nothing to do until a measure is consumed.
type Outcome struct {
	State State
	Stage composition.Stage
}

type Strategy struct {
	kind  Kind
	rng   *rand.Rand
	home  pitch.Key
	first chord.Spec

	sectionSize  int
	maxKeyChange int
	bassMin      pitch.AbsolutePitch
	bassMax      pitch.AbsolutePitch
	voices       int
	beats        int
	beatUnit     model.Fraction
}

func New(kind Kind, cfg *config.Config, rng *rand.Rand) (*Strategy, error) {
	home, err := pitch.ParseKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	home = progression.Standard(home).Key
	first, err := chord.InKey(home, 1, chord.None)
	if err != nil {
		return nil, err
	}
	return &Strategy{
		kind:         kind,
		rng:          rng,
		home:         home,
		first:        first,
		sectionSize:  cfg.SectionSize,
		maxKeyChange: cfg.MaxKeyChange,
		bassMin:      pitch.AbsolutePitch(cfg.BassMin),
		bassMax:      pitch.AbsolutePitch(cfg.BassMax),
		voices:       cfg.Voices,
		beats:        cfg.Beats,
		beatUnit:     model.NewFraction(1, cfg.BeatUnit),
	}, nil
}

func (s *Strategy) Kind() Kind {
	return s.kind
}

func (s *Strategy) Home() pitch.Key {
	return s.home
}

// Advance picks the next stage from the composition's counters. It must run
// with the composition locked, i.e. inside Incomplete.Do.
func (s *Strategy) Advance(c *composition.Incomplete) Outcome {
	written := c.Written()
	future := c.FutureLen()

	lastEnd := 0
	if last := c.Analysis().Last(); last != nil {
		lastEnd = last.End()
	}
	measuresWithoutSection := written - lastEnd
	missing := -measuresWithoutSection

	switch {
	case future > 2*s.sectionSize:
		return Outcome{State: Backoff}
	case missing <= 0 && future <= s.sectionSize:
		return Outcome{State: PlanSection, Stage: s.planSection}
	case missing <= 0:
		if stage := s.postProcess(c); stage != nil {
			return Outcome{State: PostProcess, Stage: stage}
		}
		return Outcome{State: Done}
	default:
		return Outcome{State: RealizeBar, Stage: s.realizeBar}
	}
}

// Iterate advances once and applies the resulting stage while holding the
// composition lock. pause reports that there was nothing to do.
func (s *Strategy) Iterate(c *composition.Incomplete) (pause bool, err error) {
	err = c.Do(func(c *composition.Incomplete) error {
		out := s.Advance(c)
		if out.Stage == nil {
			pause = true
			return nil
		}
		return out.Stage(c)
	})
	return pause, err
}

func (s *Strategy) instrument() model.Instrument {
	if s.kind == Polyphony {
		return model.Strings
	}
	return model.Piano
}

func keyNames(keys []pitch.Key) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return strings.Join(names, "/")
}
