package composition

import (
	"fmt"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/pitch"
)

// Section is one harmonic planning pass over a fixed span of measures.
// Indices are 1-based measure numbers within the whole composition.
type Section struct {
	Start int
	Size  int
	// Remark is copied into the annotation of the section's first measure.
	Remark string

	keys   map[int][]pitch.Key
	chords map[int]chord.Spec
}

func NewSection(start, size int) *Section {
	return &Section{
		Start:  start,
		Size:   size,
		keys:   make(map[int][]pitch.Key),
		chords: make(map[int]chord.Spec),
	}
}

func (s *Section) End() int {
	return s.Start + s.Size - 1
}

func (s *Section) Covers(i int) bool {
	return i >= s.Start && i <= s.End()
}

// Set assigns the chord and active keys of measure i.
func (s *Section) Set(i int, spec chord.Spec, keys ...pitch.Key) error {
	if !s.Covers(i) {
		return fmt.Errorf("composition: measure %d outside section %d-%d", i, s.Start, s.End())
	}
	if _, ok := s.chords[i]; ok {
		return fmt.Errorf("composition: measure %d already has a chord", i)
	}
	s.chords[i] = spec
	s.keys[i] = append([]pitch.Key(nil), keys...)
	return nil
}

func (s *Section) ChordAt(i int) (chord.Spec, bool) {
	c, ok := s.chords[i]
	return c, ok
}

func (s *Section) KeysAt(i int) []pitch.Key {
	return s.keys[i]
}

func (s *Section) Full() bool {
	return len(s.chords) == s.Size
}

// Last returns the chord of the highest assigned measure.
func (s *Section) Last() (chord.Spec, bool) {
	for i := s.End(); i >= s.Start; i-- {
		if c, ok := s.chords[i]; ok {
			return c, true
		}
	}
	return chord.Spec{}, false
}

// LastKey is the last key listed for the highest assigned measure, which
// is the destination key after a modulation.
func (s *Section) LastKey() (pitch.Key, bool) {
	for i := s.End(); i >= s.Start; i-- {
		if keys := s.keys[i]; len(keys) > 0 {
			return keys[len(keys)-1], true
		}
	}
	return pitch.Key{}, false
}

// Analysis is the ordered record of sections planned so far. It only grows.
type Analysis struct {
	sections []*Section
}

func (a *Analysis) Append(s *Section) {
	a.sections = append(a.sections, s)
}

func (a *Analysis) Last() *Section {
	if len(a.sections) == 0 {
		return nil
	}
	return a.sections[len(a.sections)-1]
}

func (a *Analysis) Len() int {
	return len(a.sections)
}

func (a *Analysis) Sections() []*Section {
	return append([]*Section(nil), a.sections...)
}

// Find returns the section covering measure i.
func (a *Analysis) Find(i int) *Section {
	for j := len(a.sections) - 1; j >= 0; j-- {
		if a.sections[j].Covers(i) {
			return a.sections[j]
		}
	}
	return nil
}
