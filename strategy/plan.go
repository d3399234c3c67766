package strategy

import (
	"errors"
	"fmt"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/logger"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/jsphweid/harmonia/progression"
)

// planSection fills a whole new section and appends it to the analysis.
func (s *Strategy) planSection(c *composition.Incomplete) error {
	analysis := c.Analysis()
	sec := composition.NewSection(c.Written()+1, s.sectionSize)

	key := s.home
	seed := s.first
	// an empty composition opens on the first chord itself
	opening := c.Written() == 0 && analysis.Len() == 0
	if prev := analysis.Last(); prev != nil {
		if k, ok := prev.LastKey(); ok {
			key = k
		}
		if last, ok := prev.Last(); ok {
			seed = last
		}
	}

	var err error
	switch {
	case opening:
		err = s.walk(sec, sec.Start, seed, progression.Standard(key), key, true)
	case s.kind == Modulating && analysis.Len()%2 == 1:
		err = s.modulate(sec, seed, key, s.destination(key))
	default:
		err = s.walk(sec, sec.Start, seed, progression.Standard(key), key, false)
	}
	if err != nil {
		return err
	}
	if !sec.Full() {
		return fmt.Errorf("section at measure %d left measures unplanned", sec.Start)
	}
	analysis.Append(sec)

	last, _ := sec.LastKey()
	logger.Debug("planned section", logger.Fields{
		"strategy":      s.kind.String(),
		"section_start": sec.Start,
		"size":          sec.Size,
		"key":           last.String(),
	})
	return nil
}

// walk assigns measures from..End of sec by a random walk over p starting
// after seed. With includeSeed the seed itself takes the first slot.
func (s *Strategy) walk(sec *composition.Section, from int, seed chord.Spec, p *progression.KeyProgression, key pitch.Key, includeSeed bool) error {
	cur := seed
	for i := from; i <= sec.End(); i++ {
		if !(includeSeed && i == from) {
			next, err := p.Next(s.rng, cur)
			if err != nil {
				return fmt.Errorf("could not plan measure %d: %w", i, err)
			}
			cur = next
		}
		if err := sec.Set(i, cur, key); err != nil {
			return err
		}
	}
	return nil
}

// destination alternates away from and back to the home key so repeated
// modulations stay close to it.
func (s *Strategy) destination(from pitch.Key) pitch.Key {
	switch {
	case from.Equal(s.home.Dominant()):
		return from.Subdominant()
	case from.Equal(s.home.Subdominant()):
		return from.Dominant()
	case s.rng.Intn(2) == 0:
		return from.Dominant()
	default:
		return from.Subdominant()
	}
}

// modulate splices a cadential key change into the start of sec and walks
// the destination key for the rest. When no cadence fits the budget the
// section stays in the from-key.
func (s *Strategy) modulate(sec *composition.Section, seed chord.Spec, from, to pitch.Key) error {
	fromProg := progression.Standard(from)
	toProg := progression.Standard(to)
	kc := progression.NewKeyChange(fromProg, toProg)

	path, err := kc.ProgressFrom(seed, 1, s.maxKeyChange)
	if errors.Is(err, progression.ErrNoPath) {
		logger.Warn("key change not possible, keeping key", logger.Fields{
			"from":          from.String(),
			"to":            to.String(),
			"seed":          seed.Name(),
			"max_chords":    s.maxKeyChange,
			"section_start": sec.Start,
		})
		sec.Remark = fmt.Sprintf("no modulation to %s within %d chords", to, s.maxKeyChange)
		return s.walk(sec, sec.Start, seed, fromProg, from, false)
	}
	if err != nil {
		return err
	}

	// path[0] is the seed, already sounding in the previous section
	i := sec.Start
	for _, spec := range path[1:] {
		if i > sec.End() {
			break
		}
		n, _ := kc.Node(spec)
		if err := sec.Set(i, spec, pivotKeys(n, from, to)...); err != nil {
			return err
		}
		i++
	}
	sec.Remark = fmt.Sprintf("modulating from %s to %s", from, to)
	return s.walk(sec, i, path[len(path)-1], toProg, to, false)
}

// pivotKeys lists the keys a key-change chord belongs to, from-key first.
func pivotKeys(n *progression.Node, from, to pitch.Key) []pitch.Key {
	var keys []pitch.Key
	if n.InFrom {
		keys = append(keys, from)
	}
	if n.InTo || !n.InFrom {
		keys = append(keys, to)
	}
	return keys
}
