package chord

import (
	"fmt"
	"sort"

	"github.com/jsphweid/harmonia/pitch"
)

// Chord is a realized, unordered set of unique absolute pitches.
type Chord struct {
	pitches []pitch.AbsolutePitch
}

func New(pitches ...pitch.AbsolutePitch) Chord {
	seen := make(map[pitch.AbsolutePitch]bool, len(pitches))
	var res []pitch.AbsolutePitch
	for _, p := range pitches {
		if !seen[p] {
			seen[p] = true
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i] < res[j]
	})
	return Chord{pitches: res}
}

// Build realizes spec starting from the lowest pitch at or above register
// whose class is the spec's bass, then stacks the remaining tones upward.
func Build(spec Spec, register pitch.AbsolutePitch) Chord {
	bass := register.Transpose(register.Class().Interval(spec.BassClass()))
	classes := spec.Classes()
	start := spec.Inversion % len(classes)

	res := []pitch.AbsolutePitch{bass}
	last := bass
	for i := 1; i < len(classes); i++ {
		pc := classes[(start+i)%len(classes)]
		next := last.Transpose(last.Class().Interval(pc))
		if next == last {
			next = next.Transpose(12)
		}
		res = append(res, next)
		last = next
	}
	return New(res...)
}

// Pitches returns the pitches in ascending order.
func (c Chord) Pitches() []pitch.AbsolutePitch {
	res := make([]pitch.AbsolutePitch, len(c.pitches))
	copy(res, c.pitches)
	return res
}

func (c Chord) Len() int {
	return len(c.pitches)
}

func (c Chord) Bass() pitch.AbsolutePitch {
	if len(c.pitches) == 0 {
		return 0
	}
	return c.pitches[0]
}

func (c Chord) Contains(p pitch.AbsolutePitch) bool {
	i := sort.Search(len(c.pitches), func(i int) bool {
		return c.pitches[i] >= p
	})
	return i < len(c.pitches) && c.pitches[i] == p
}

// Classes returns the distinct pitch classes of the chord.
func (c Chord) Classes() []pitch.PitchClass {
	seen := make(map[pitch.PitchClass]bool)
	var res []pitch.PitchClass
	for _, p := range c.pitches {
		if pc := p.Class(); !seen[pc] {
			seen[pc] = true
			res = append(res, pc)
		}
	}
	return res
}

// InKey reports whether every pitch lies in the key's scale.
func (c Chord) InKey(k pitch.Key) bool {
	for _, p := range c.pitches {
		if !k.Contains(p.Class()) {
			return false
		}
	}
	return true
}

// Key is a stable textual form like "48-55-64-67".
func (c Chord) Key() string {
	var res string
	for i, p := range c.pitches {
		res += fmt.Sprintf("%v", int(p))
		if i < len(c.pitches)-1 {
			res += "-"
		}
	}
	return res
}

func (c Chord) String() string {
	return c.Key()
}
