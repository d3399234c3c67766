// Package voicelead turns an abstract next chord into concrete pitches that
// move smoothly from the previous concrete chord.
package voicelead

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/pitch"
)

var (
	// ErrNoVoicing means no legal pitch existed inside the search window,
	// which only happens when an upstream invariant is already broken.
	ErrNoVoicing = errors.New("voicelead: no voicing within search window")
	ErrBassRange = errors.New("voicelead: bass range cannot hold the target bass")
)

const (
	choraleWindow   = 16
	choraleLookback = 4
	polyphonyReach  = 12
)

// DownFiveOrUpFour moves prev to the nearest pitch of class target. When the
// move is exactly a tritone, the direction is a coin flip.
func DownFiveOrUpFour(rng *rand.Rand, prev pitch.AbsolutePitch, target pitch.PitchClass) pitch.AbsolutePitch {
	interval := prev.Class().Interval(target)
	if interval > 6 {
		interval -= 12
	}
	if interval == 6 && rng.Intn(2) == 0 {
		interval = -6
	}
	return prev.Transpose(interval)
}

// VoiceLead realizes next in chorale style: the bass moves by the smallest
// root motion into [bassMin, bassMax], the upper voices keep their order
// and never cross.
func VoiceLead(rng *rand.Rand, prev chord.Chord, next chord.Spec, bassMin, bassMax pitch.AbsolutePitch) (chord.Chord, error) {
	if prev.Len() == 0 {
		return chord.Chord{}, fmt.Errorf("%w: empty previous chord", ErrNoVoicing)
	}
	bass, err := intoRange(DownFiveOrUpFour(rng, prev.Bass(), next.BassClass()), bassMin, bassMax)
	if err != nil {
		return chord.Chord{}, err
	}

	res := []pitch.AbsolutePitch{bass}
	last := bass
	for _, p := range prev.Pitches()[1:] {
		start := p.Transpose(-choraleLookback)
		found := false
		for i := 0; i < choraleWindow; i++ {
			c := start.Transpose(i)
			if c > last && next.HasClass(c.Class()) {
				res = append(res, c)
				last = c
				found = true
				break
			}
		}
		if !found {
			return chord.Chord{}, fmt.Errorf("%w: voice %d above %d for %s", ErrNoVoicing, p, last, next.Name())
		}
	}
	return chord.New(res...), nil
}

func intoRange(p, lo, hi pitch.AbsolutePitch) (pitch.AbsolutePitch, error) {
	for p < lo {
		p = p.Transpose(12)
	}
	for p > hi {
		p = p.Transpose(-12)
	}
	if p < lo {
		return 0, fmt.Errorf("%w: [%d,%d] has no pitch of class %d", ErrBassRange, lo, hi, p.Class())
	}
	return p, nil
}

// VoiceLeadPolyphony keeps every common tone where it is and moves each
// other voice to the nearest free chord tone, looking toward the chord's
// centre first.
func VoiceLeadPolyphony(prev chord.Chord, next chord.Spec) (chord.Chord, error) {
	pitches := prev.Pitches()
	if len(pitches) == 0 {
		return chord.Chord{}, fmt.Errorf("%w: empty previous chord", ErrNoVoicing)
	}

	used := make(map[pitch.AbsolutePitch]bool)
	var moving []pitch.AbsolutePitch
	var centroid float64
	for _, p := range pitches {
		centroid += float64(p)
		if next.HasClass(p.Class()) {
			used[p] = true
		} else {
			moving = append(moving, p)
		}
	}
	centroid /= float64(len(pitches))

	for _, p := range moving {
		toward := 1
		if float64(p) > centroid {
			toward = -1
		}
		found := false
		for off := 1; off <= polyphonyReach && !found; off++ {
			for _, c := range []pitch.AbsolutePitch{p.Transpose(toward * off), p.Transpose(-toward * off)} {
				if next.HasClass(c.Class()) && !used[c] {
					used[c] = true
					found = true
					break
				}
			}
		}
		if !found {
			return chord.Chord{}, fmt.Errorf("%w: voice %d toward %s", ErrNoVoicing, p, next.Name())
		}
	}

	res := make([]pitch.AbsolutePitch, 0, len(used))
	for p := range used {
		res = append(res, p)
	}
	return chord.New(res...), nil
}

// Initial voices spec for a fresh start: the bass is the first bass-class
// pitch at or above bassMin, and upper voices stack chord tones upward,
// doubling as needed, starting no lower than a fifth above the bass.
func Initial(spec chord.Spec, bassMin pitch.AbsolutePitch, voices int) (chord.Chord, error) {
	if voices < 1 {
		return chord.Chord{}, fmt.Errorf("%w: %d voices", ErrNoVoicing, voices)
	}
	bass := bassMin.Transpose(bassMin.Class().Interval(spec.BassClass()))
	res := []pitch.AbsolutePitch{bass}
	last := bass.Transpose(6)
	for len(res) < voices {
		c := last.Transpose(1)
		for !spec.HasClass(c.Class()) {
			c = c.Transpose(1)
		}
		res = append(res, c)
		last = c
	}
	return chord.New(res...), nil
}
