package strategy

import (
	"fmt"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/jsphweid/harmonia/voicelead"
)

var downbeat = model.NewFraction(0, 1)

// FirstMeasure voices the opening chord from scratch. The composer plays it
// immediately, before any section exists.
func (s *Strategy) FirstMeasure() (*model.Measure, error) {
	voicing, err := voicelead.Initial(s.first, s.bassMin, s.voices)
	if err != nil {
		return nil, err
	}
	m, err := model.NewMeasure(s.beats, s.beatUnit)
	if err != nil {
		return nil, err
	}
	if err := m.Add(s.instrument(), s.chordNotes(m, voicing, nil)...); err != nil {
		return nil, err
	}
	m.Annotate("key: %s; chord: %s", s.home, s.first.Name())
	return m, nil
}

// realizeBar voices the chord planned for the next unwritten measure,
// leading from whatever the previous measure sounded.
func (s *Strategy) realizeBar(c *composition.Incomplete) error {
	i := c.Written() + 1
	sec := c.Analysis().Find(i)
	if sec == nil {
		return fmt.Errorf("no section covers measure %d", i)
	}
	spec, ok := sec.ChordAt(i)
	if !ok {
		return fmt.Errorf("measure %d has no planned chord", i)
	}

	inst := s.instrument()
	prevMeasure := c.LastMeasure()
	var prev []pitch.AbsolutePitch
	if prevMeasure != nil {
		prev = prevMeasure.PitchesAt(inst, downbeat)
	}

	var voicing chord.Chord
	var err error
	switch {
	case len(prev) == 0:
		voicing, err = voicelead.Initial(spec, s.bassMin, s.voices)
	case s.kind == Polyphony:
		voicing, err = voicelead.VoiceLeadPolyphony(chord.New(prev...), spec)
	default:
		voicing, err = voicelead.VoiceLead(s.rng, chord.New(prev...), spec, s.bassMin, s.bassMax)
	}
	if err != nil {
		return fmt.Errorf("could not voice measure %d (%s): %w", i, spec.Name(), err)
	}

	// polyphony holds common tones across the bar line, but only a measure
	// nobody has consumed yet may still be changed to tie out
	var held map[pitch.AbsolutePitch]bool
	if s.kind == Polyphony && len(prev) > 0 && c.FutureLen() > 0 {
		held = make(map[pitch.AbsolutePitch]bool)
		for _, p := range prev {
			if voicing.Contains(p) {
				held[p] = true
			}
		}
	}

	m, err := model.NewMeasure(s.beats, s.beatUnit)
	if err != nil {
		return err
	}
	if err := m.Add(inst, s.chordNotes(m, voicing, held)...); err != nil {
		return err
	}
	m.Annotate("key: %s; chord: %s", keyNames(sec.KeysAt(i)), spec.Name())
	if i == sec.Start && sec.Remark != "" {
		m.Annotate("%s", sec.Remark)
	}

	if len(held) > 0 {
		notes := prevMeasure.Notes[inst]
		for j := range notes {
			if held[notes[j].Pitch] {
				notes[j].TieOut = true
			}
		}
	}
	c.Enqueue(m)
	return nil
}

func (s *Strategy) chordNotes(m *model.Measure, voicing chord.Chord, held map[pitch.AbsolutePitch]bool) []model.TimedNote {
	notes := make([]model.TimedNote, 0, voicing.Len())
	for _, p := range voicing.Pitches() {
		notes = append(notes, model.TimedNote{
			Pitch:    p,
			Offset:   downbeat,
			Duration: m.Length(),
			TieIn:    held[p],
		})
	}
	return notes
}
