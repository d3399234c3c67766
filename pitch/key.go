package pitch

import (
	"fmt"
	"strings"
)

// Scale is an ordered pattern of seven step sizes summing to an octave.
type Scale struct {
	Name  string
	Steps [7]int
}

var (
	Major         = Scale{Name: "major", Steps: [7]int{2, 2, 1, 2, 2, 2, 1}}
	NaturalMinor  = Scale{Name: "natural minor", Steps: [7]int{2, 1, 2, 2, 1, 2, 2}}
	HarmonicMinor = Scale{Name: "minor", Steps: [7]int{2, 1, 2, 2, 1, 3, 1}}
)

// scale names accepted by ParseKey; a plain minor key is harmonic minor
var scales = map[string]Scale{
	"major":          Major,
	"minor":          HarmonicMinor,
	"harmonic minor": HarmonicMinor,
	"natural minor":  NaturalMinor,
}

// Minor reports whether the scale has a minor third.
func (s Scale) Minor() bool {
	return s.Steps[0]+s.Steps[1] == 3
}

// Offset returns the semitones from the tonic to degree d, where d may
// exceed 7 for compound intervals.
func (s Scale) Offset(d int) int {
	var total int
	for i := 0; i < d-1; i++ {
		total += s.Steps[i%7]
	}
	return total
}

// Key is a tonic plus a scale. Keys are values and never change once built.
type Key struct {
	Tonic Note
	Scale Scale
}

func MajorKey(tonic Note) Key {
	return Key{Tonic: tonic, Scale: Major}
}

func MinorKey(tonic Note) Key {
	return Key{Tonic: tonic, Scale: HarmonicMinor}
}

// NewKey spells the key on pc with whichever enharmonic tonic gives the
// fewest accidentals across the scale.
func NewKey(pc PitchClass, scale Scale) Key {
	var best Key
	bestCost := -1
	for l := C; l <= B; l++ {
		tonic := spell(l, pc)
		if tonic.Accidental > 1 || tonic.Accidental < -1 {
			continue
		}
		k := Key{Tonic: tonic, Scale: scale}
		var cost int
		for d := 1; d <= 7; d++ {
			n := k.note(d)
			if n.Accidental < 0 {
				cost -= n.Accidental
			} else {
				cost += n.Accidental
			}
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = k, cost
		}
	}
	return best
}

func (k Key) note(d int) Note {
	l := Letter((int(k.Tonic.Letter) + d - 1) % 7)
	return spell(l, NewPitchClass(int(k.Tonic.Class())+k.Scale.Offset(d)))
}

// Degree returns the spelled note on scale degree d (1..7).
func (k Key) Degree(d int) (Note, error) {
	if d < 1 || d > 7 {
		return Note{}, fmt.Errorf("%w: %d", ErrInvalidDegree, d)
	}
	return k.note(d), nil
}

// Offset is the semitone distance from the tonic to degree d.
func (k Key) Offset(d int) int {
	return k.Scale.Offset(d)
}

func (k Key) Contains(pc PitchClass) bool {
	for d := 1; d <= 7; d++ {
		if k.note(d).Class() == pc {
			return true
		}
	}
	return false
}

func (k Key) Dominant() Key {
	return NewKey(NewPitchClass(int(k.Tonic.Class())+7), k.Scale)
}

func (k Key) Subdominant() Key {
	return NewKey(NewPitchClass(int(k.Tonic.Class())+5), k.Scale)
}

func (k Key) Equal(other Key) bool {
	return k.Tonic.Class() == other.Tonic.Class() && k.Scale.Steps == other.Scale.Steps
}

func (k Key) String() string {
	return k.Tonic.String() + " " + k.Scale.Name
}

// ParseKey accepts strings like "C major", "f# minor" or a bare tonic,
// which means major.
func ParseKey(s string) (Key, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Key{}, fmt.Errorf("%w: empty key", ErrInvalidNote)
	}
	tonic, err := ParseNote(fields[0])
	if err != nil {
		return Key{}, err
	}
	if len(fields) == 1 {
		return MajorKey(tonic), nil
	}
	name := strings.ToLower(strings.Join(fields[1:], " "))
	if sc, ok := scales[name]; ok {
		return Key{Tonic: tonic, Scale: sc}, nil
	}
	return Key{}, fmt.Errorf("%w: unknown scale %q", ErrInvalidNote, name)
}
