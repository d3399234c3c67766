package pitch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidNote   = errors.New("pitch: invalid note")
	ErrInvalidDegree = errors.New("pitch: scale degree must be between 1 and 7")
)

type Letter int

const (
	C Letter = iota
	D
	E
	F
	G
	A
	B
)

var letterNames = "CDEFGAB"

// semitones above C for each natural letter
var naturals = [7]int{0, 2, 4, 5, 7, 9, 11}

func (l Letter) String() string {
	return string(letterNames[l])
}

func (l Letter) natural() int {
	return naturals[l]
}

// PitchClass is a pitch reduced modulo the octave, 0 = C.
type PitchClass int

func NewPitchClass(n int) PitchClass {
	return PitchClass(mod12(n))
}

// Interval returns the upward distance from pc to other in [0,12).
func (pc PitchClass) Interval(other PitchClass) int {
	return mod12(int(other) - int(pc))
}

// AbsolutePitch uses MIDI numbering, 60 = C4.
type AbsolutePitch int

const MiddleC AbsolutePitch = 60

func (p AbsolutePitch) Class() PitchClass {
	return NewPitchClass(int(p))
}

func (p AbsolutePitch) Transpose(semitones int) AbsolutePitch {
	return p + AbsolutePitch(semitones)
}

func (p AbsolutePitch) Octave() int {
	return int(p)/12 - 1
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name spells p with sharps and its octave, e.g. "C4" for 60.
func (p AbsolutePitch) Name() string {
	return fmt.Sprintf("%s%d", sharpNames[p.Class()], p.Octave())
}

// Note is a spelled pitch class: a letter plus an accidental in
// semitones (-2 double flat .. +2 double sharp).
type Note struct {
	Letter     Letter
	Accidental int
}

func (n Note) Class() PitchClass {
	return NewPitchClass(n.Letter.natural() + n.Accidental)
}

func (n Note) String() string {
	var acc string
	switch {
	case n.Accidental > 0:
		acc = strings.Repeat("#", n.Accidental)
	case n.Accidental < 0:
		acc = strings.Repeat("b", -n.Accidental)
	}
	return n.Letter.String() + acc
}

// spell returns the note with letter l that sounds pc.
func spell(l Letter, pc PitchClass) Note {
	acc := mod12(int(pc) - l.natural())
	if acc > 6 {
		acc -= 12
	}
	return Note{Letter: l, Accidental: acc}
}

func ParseNote(s string) (Note, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Note{}, fmt.Errorf("%w: empty", ErrInvalidNote)
	}
	idx := strings.IndexByte(letterNames, strings.ToUpper(s[:1])[0])
	if idx < 0 {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidNote, s)
	}
	n := Note{Letter: Letter(idx)}
	for _, r := range s[1:] {
		switch r {
		case '#':
			n.Accidental++
		case 'b':
			n.Accidental--
		default:
			return Note{}, fmt.Errorf("%w: %q", ErrInvalidNote, s)
		}
	}
	if n.Accidental > 2 || n.Accidental < -2 {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidNote, s)
	}
	return n, nil
}

func MustParseNote(s string) Note {
	n, err := ParseNote(s)
	if err != nil {
		panic(err)
	}
	return n
}

func mod12(n int) int {
	return ((n % 12) + 12) % 12
}
