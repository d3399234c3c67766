package strategy

import (
	"fmt"

	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/jsphweid/harmonia/util"
)

const (
	melodyLow  pitch.AbsolutePitch = 67
	melodyHigh pitch.AbsolutePitch = 84
	melodyLeap                     = 4
)

// postProcess returns the melody pass when some queued bar still lacks a
// melody, or nil.
func (s *Strategy) postProcess(c *composition.Incomplete) composition.Stage {
	if s.kind != Modulating {
		return nil
	}
	for _, m := range c.Future() {
		if !m.Has(model.Melody) {
			return s.writeMelody
		}
	}
	return nil
}

// writeMelody adds one chord tone per beat to every queued bar without a
// melody, moving by small steps from the previous melody note.
func (s *Strategy) writeMelody(c *composition.Incomplete) error {
	last := (melodyLow + melodyHigh) / 2

	written := make(map[*model.Measure][]model.TimedNote)
	for _, m := range c.Future() {
		if m.Has(model.Melody) {
			notes := m.Notes[model.Melody]
			last = notes[len(notes)-1].Pitch
			continue
		}
		harmony := m.PitchesAt(model.Piano, downbeat)
		if len(harmony) == 0 {
			return fmt.Errorf("measure %q has no harmony to write a melody over", m.Annotation)
		}
		candidates := chordTones(harmony)

		var notes []model.TimedNote
		for b := 0; b < m.Beats; b++ {
			p := s.step(candidates, last)
			notes = append(notes, model.TimedNote{
				Pitch:    p,
				Offset:   m.BeatUnit.Mul(b),
				Duration: m.BeatUnit,
				Dynamic:  1,
			})
			last = p
		}
		written[m] = notes
	}

	for m, notes := range written {
		if err := m.Add(model.Melody, notes...); err != nil {
			return err
		}
	}
	return nil
}

// chordTones lists every pitch in the melody register whose class sounds in
// harmony.
func chordTones(harmony []pitch.AbsolutePitch) []pitch.AbsolutePitch {
	classes := make(map[pitch.PitchClass]bool)
	for _, p := range harmony {
		classes[p.Class()] = true
	}
	var res []pitch.AbsolutePitch
	for p := melodyLow; p <= melodyHigh; p++ {
		if classes[p.Class()] {
			res = append(res, p)
		}
	}
	return res
}

// step picks a random candidate within a small leap of last that is not
// last itself, falling back to the nearest candidate.
func (s *Strategy) step(candidates []pitch.AbsolutePitch, last pitch.AbsolutePitch) pitch.AbsolutePitch {
	var near []pitch.AbsolutePitch
	for _, p := range candidates {
		if p != last && util.Abs(int(p-last)) <= melodyLeap {
			near = append(near, p)
		}
	}
	if len(near) > 0 {
		return near[s.rng.Intn(len(near))]
	}
	best := candidates[0]
	for _, p := range candidates[1:] {
		if util.Abs(int(p-last)) < util.Abs(int(best-last)) {
			best = p
		}
	}
	return best
}
