package chord

import (
	"testing"

	"github.com/jsphweid/harmonia/pitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cMajor = pitch.MajorKey(pitch.MustParseNote("C"))

func TestDiatonicQualitiesInMajor(t *testing.T) {
	want := []Quality{Major, Minor, Minor, Major, Major, Minor, Diminished}
	for d := 1; d <= 7; d++ {
		s, err := InKey(cMajor, d, None)
		require.NoError(t, err)
		assert.Equal(t, want[d-1], s.Quality, "degree %d", d)
		assert.Equal(t, d, s.Degree)
	}
}

func TestDominantSeventh(t *testing.T) {
	assert := assert.New(t)
	g := pitch.MajorKey(pitch.MustParseNote("G"))
	s, err := InKey(g, 5, Seventh)
	assert.NoError(err)
	assert.Equal("D7", s.Name())
	assert.Equal(MinorSeventh, s.Seventh)
	assert.Equal([]pitch.PitchClass{2, 6, 9, 0}, s.Classes())

	tonic, err := InKey(cMajor, 1, Seventh)
	assert.NoError(err)
	assert.Equal("Cmaj7", tonic.Name())
}

func TestAugmentedInHarmonicMinor(t *testing.T) {
	s, err := InKey(pitch.MinorKey(pitch.MustParseNote("A")), 3, None)
	require.NoError(t, err)
	assert.Equal(t, Augmented, s.Quality)
	assert.Equal(t, "Caug", s.Name())
}

func TestInvalidDegree(t *testing.T) {
	_, err := InKey(cMajor, 8, None)
	assert.ErrorIs(t, err, pitch.ErrInvalidDegree)
}

func TestIDIgnoresSpellingAndInversion(t *testing.T) {
	assert := assert.New(t)
	a := Spec{Tonic: pitch.MustParseNote("F#"), Quality: Major}
	b := Spec{Tonic: pitch.MustParseNote("Gb"), Quality: Major, Inversion: 1}
	assert.Equal(a.ID(), b.ID())

	triad := Spec{Tonic: pitch.MustParseNote("G"), Quality: Major}
	seventh := Spec{Tonic: pitch.MustParseNote("G"), Quality: Major, Extension: Seventh, Seventh: MinorSeventh}
	assert.NotEqual(triad.ID(), seventh.ID())
}

func TestBuildRootPosition(t *testing.T) {
	s, _ := InKey(cMajor, 5, Seventh)
	c := Build(s, 50)
	assert.Equal(t, []pitch.AbsolutePitch{55, 59, 62, 65}, c.Pitches())
}

func TestBuildInversion(t *testing.T) {
	s, _ := InKey(cMajor, 1, None)
	s.Inversion = 1
	c := Build(s, 60)
	assert.Equal(t, []pitch.AbsolutePitch{64, 67, 72}, c.Pitches())
	assert.Equal(t, pitch.AbsolutePitch(64), c.Bass())
}

func TestNewDeduplicatesAndSorts(t *testing.T) {
	assert := assert.New(t)
	c := New(67, 60, 64, 60)
	assert.Equal(3, c.Len())
	assert.Equal("60-64-67", c.Key())
	assert.True(c.Contains(64))
	assert.False(c.Contains(65))
	assert.True(c.InKey(cMajor))
	assert.False(New(62, 66, 69).InKey(cMajor))
}
