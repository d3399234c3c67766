package chord

import (
	"fmt"

	"github.com/jsphweid/harmonia/pitch"
)

type Quality int

const (
	Major Quality = iota
	Minor
	Augmented
	Diminished
)

func (q Quality) String() string {
	switch q {
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Augmented:
		return "augmented"
	case Diminished:
		return "diminished"
	}
	return "unknown"
}

func (q Quality) triad() [3]int {
	switch q {
	case Minor:
		return [3]int{0, 3, 7}
	case Augmented:
		return [3]int{0, 4, 8}
	case Diminished:
		return [3]int{0, 3, 6}
	}
	return [3]int{0, 4, 7}
}

type Extension int

const (
	None Extension = iota
	Seventh
	Ninth
	Eleventh
	Thirteenth
)

const (
	DiminishedSeventh = 9
	MinorSeventh      = 10
	MajorSeventh      = 11
)

// Spec describes a chord without register. Seventh is the size of the
// seventh above the root in semitones and only matters when Extension is
// not None. Degree is the scale degree the chord was derived from, 0 when
// it was built by hand.
type Spec struct {
	Tonic     pitch.Note
	Quality   Quality
	Extension Extension
	Seventh   int
	Inversion int
	Degree    int
}

// InKey derives the diatonic chord on degree by stacking scale thirds.
func InKey(k pitch.Key, degree int, ext Extension) (Spec, error) {
	tonic, err := k.Degree(degree)
	if err != nil {
		return Spec{}, err
	}
	root := k.Offset(degree)
	third := k.Offset(degree+2) - root
	fifth := k.Offset(degree+4) - root

	var q Quality
	switch {
	case third == 4 && fifth == 8:
		q = Augmented
	case third == 4:
		q = Major
	case fifth == 6:
		q = Diminished
	default:
		q = Minor
	}

	s := Spec{Tonic: tonic, Quality: q, Extension: ext, Degree: degree}
	if ext != None {
		s.Seventh = k.Offset(degree+6) - root
	}
	return s, nil
}

// Intervals returns the semitone offsets of the chord tones above the root.
func (s Spec) Intervals() []int {
	t := s.Quality.triad()
	res := []int{t[0], t[1], t[2]}
	if s.Extension == None {
		return res
	}
	seventh := s.Seventh
	if seventh == 0 {
		seventh = MinorSeventh
	}
	res = append(res, seventh)
	// upper tensions are approximated as major ninth, perfect eleventh, major thirteenth
	if s.Extension >= Ninth {
		res = append(res, 14)
	}
	if s.Extension >= Eleventh {
		res = append(res, 17)
	}
	if s.Extension >= Thirteenth {
		res = append(res, 21)
	}
	return res
}

func (s Spec) Classes() []pitch.PitchClass {
	root := int(s.Tonic.Class())
	var res []pitch.PitchClass
	for _, i := range s.Intervals() {
		res = append(res, pitch.NewPitchClass(root+i))
	}
	return res
}

func (s Spec) HasClass(pc pitch.PitchClass) bool {
	for _, c := range s.Classes() {
		if c == pc {
			return true
		}
	}
	return false
}

// BassClass is the pitch class sounding in the bass for the spec's
// inversion.
func (s Spec) BassClass() pitch.PitchClass {
	classes := s.Classes()
	return classes[s.Inversion%len(classes)]
}

// ID identifies the chord for graph purposes: two specs with the same ID
// sound the same pitch classes, whatever their spelling or inversion.
func (s Spec) ID() string {
	id := fmt.Sprintf("%d:%s", s.Tonic.Class(), s.Quality)
	if s.Extension != None {
		id += fmt.Sprintf(":%d:%d", s.Extension, s.Seventh)
	}
	return id
}

func (s Spec) Name() string {
	name := s.Tonic.String()
	switch s.Quality {
	case Minor:
		name += "m"
	case Augmented:
		name += "aug"
	case Diminished:
		name += "dim"
	}
	switch s.Extension {
	case None:
	case Seventh:
		if s.Seventh == MajorSeventh {
			name += "maj7"
		} else {
			name += "7"
		}
	case Ninth:
		name += "9"
	case Eleventh:
		name += "11"
	case Thirteenth:
		name += "13"
	}
	return name
}

func (s Spec) String() string {
	return s.Name()
}
