package voicelead

import (
	"math/rand"
	"testing"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/jsphweid/harmonia/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bassMin pitch.AbsolutePitch = 40
	bassMax pitch.AbsolutePitch = 55
)

func spec(t *testing.T, key string, degree int, ext chord.Extension) chord.Spec {
	k, err := pitch.ParseKey(key)
	require.NoError(t, err)
	s, err := chord.InKey(k, degree, ext)
	require.NoError(t, err)
	return s
}

func TestDownFiveOrUpFour(t *testing.T) {
	assert := assert.New(t)
	rng := rand.New(rand.NewSource(1))

	// G up a fourth to C is the short way round
	assert.Equal(pitch.AbsolutePitch(48), DownFiveOrUpFour(rng, 43, 0))
	// C down a fourth to G
	assert.Equal(pitch.AbsolutePitch(43), DownFiveOrUpFour(rng, 48, 7))

	seen := map[pitch.AbsolutePitch]bool{}
	for i := 0; i < 64; i++ {
		seen[DownFiveOrUpFour(rng, 48, 6)] = true
	}
	assert.Equal(map[pitch.AbsolutePitch]bool{42: true, 54: true}, seen)
}

func TestInitial(t *testing.T) {
	c, err := Initial(spec(t, "C major", 1, chord.None), bassMin, 4)
	require.NoError(t, err)
	assert.Equal(t, []pitch.AbsolutePitch{48, 55, 60, 64}, c.Pitches())
}

func TestVoiceLeadProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := progression.StandardMajor(pitch.MustParseNote("C"))
	cur, _ := p.Degree(1)
	prev, err := Initial(cur, bassMin, 4)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		next, err := p.Next(rng, cur)
		require.NoError(t, err)
		got, err := VoiceLead(rng, prev, next, bassMin, bassMax)
		require.NoError(t, err, "%s -> %s from %v", cur.Name(), next.Name(), prev)

		assert.Equal(t, prev.Len(), got.Len())
		assert.GreaterOrEqual(t, got.Bass(), bassMin)
		assert.LessOrEqual(t, got.Bass(), bassMax)
		assert.Equal(t, next.BassClass(), got.Bass().Class())
		for _, pp := range got.Pitches() {
			assert.True(t, next.HasClass(pp.Class()), "%d not in %s", pp, next.Name())
		}
		prev, cur = got, next
	}
}

func TestVoiceLeadBassRangeTooNarrow(t *testing.T) {
	prev, _ := Initial(spec(t, "C major", 1, chord.None), bassMin, 4)
	_, err := VoiceLead(rand.New(rand.NewSource(1)), prev, spec(t, "C major", 4, chord.None), 46, 52)
	assert.ErrorIs(t, err, ErrBassRange)
}

func TestVoiceLeadEmptyChord(t *testing.T) {
	_, err := VoiceLead(rand.New(rand.NewSource(1)), chord.New(), spec(t, "C major", 4, chord.None), bassMin, bassMax)
	assert.ErrorIs(t, err, ErrNoVoicing)
	_, err = VoiceLeadPolyphony(chord.New(), spec(t, "C major", 4, chord.None))
	assert.ErrorIs(t, err, ErrNoVoicing)
}

func TestVoiceLeadPolyphonyKeepsCommonTones(t *testing.T) {
	assert := assert.New(t)
	prev := chord.New(48, 55, 64, 72) // C G E C
	next := spec(t, "C major", 6, chord.None)

	got, err := VoiceLeadPolyphony(prev, next)
	assert.NoError(err)
	assert.True(got.Contains(48))
	assert.True(got.Contains(64))
	assert.True(got.Contains(72))
	// G moves to the nearest free A, toward the centre
	assert.True(got.Contains(57))
	assert.Equal(4, got.Len())
}

func TestVoiceLeadPolyphonyWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := progression.StandardMajor(pitch.MustParseNote("A"))
	cur, _ := p.Degree(1)
	prev, err := Initial(cur, bassMin, 4)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		next, err := p.Next(rng, cur)
		require.NoError(t, err)
		got, err := VoiceLeadPolyphony(prev, next)
		require.NoError(t, err)

		for _, pp := range prev.Pitches() {
			if next.HasClass(pp.Class()) {
				assert.True(t, got.Contains(pp), "common tone %d moved going to %s", pp, next.Name())
			}
		}
		for _, pp := range got.Pitches() {
			assert.True(t, next.HasClass(pp.Class()))
		}
		prev, cur = got, next
	}
}
