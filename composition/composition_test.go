package composition

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/pitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cMajor = pitch.MajorKey(pitch.MustParseNote("C"))
	gMajor = pitch.MajorKey(pitch.MustParseNote("G"))
)

func measure(t *testing.T, note string) *model.Measure {
	m, err := model.NewMeasure(4, model.NewFraction(1, 4))
	require.NoError(t, err)
	m.Annotate("%s", note)
	return m
}

func TestFIFOOrder(t *testing.T) {
	assert := assert.New(t)
	c := NewIncomplete("chorale")
	for _, n := range []string{"a", "b", "c"} {
		m := measure(t, n)
		assert.NoError(c.Apply(func(c *Incomplete) error {
			c.Enqueue(m)
			return nil
		}))
	}
	assert.Equal(3, c.Pending())

	for _, want := range []string{"a", "b", "c"} {
		m, ok := c.Dequeue()
		assert.True(ok)
		assert.Equal(want, m.Annotation)
	}
	_, ok := c.Dequeue()
	assert.False(ok)
	assert.Equal(3, c.Written())
}

func TestConcurrentProduceConsume(t *testing.T) {
	c := NewIncomplete("chorale")
	const n = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			m := measure(t, "x")
			_ = c.Apply(func(c *Incomplete) error {
				c.Enqueue(m)
				return nil
			})
		}
	}()

	got := 0
	deadline := time.Now().Add(5 * time.Second)
	for got < n && time.Now().Before(deadline) {
		if _, ok := c.Dequeue(); ok {
			got++
		}
	}
	wg.Wait()
	assert.Equal(t, n, got)
}

func TestSectionAssignments(t *testing.T) {
	assert := assert.New(t)
	s := NewSection(9, 8)
	assert.Equal(16, s.End())

	one, _ := chord.InKey(cMajor, 1, chord.None)
	d7, _ := chord.InKey(gMajor, 5, chord.Seventh)
	assert.NoError(s.Set(9, one, cMajor, gMajor))
	assert.NoError(s.Set(10, d7, gMajor))
	assert.Error(s.Set(10, one, cMajor))
	assert.Error(s.Set(17, one, cMajor))

	last, ok := s.Last()
	assert.True(ok)
	assert.Equal("D7", last.Name())
	key, ok := s.LastKey()
	assert.True(ok)
	assert.True(key.Equal(gMajor))
	assert.Len(s.KeysAt(9), 2)
	assert.False(s.Full())
}

func TestAnalysisFind(t *testing.T) {
	var a Analysis
	a.Append(NewSection(1, 8))
	a.Append(NewSection(9, 8))
	assert.Equal(t, 9, a.Find(12).Start)
	assert.Equal(t, 1, a.Find(8).Start)
	assert.Nil(t, a.Find(20))
	assert.Equal(t, 9, a.Last().Start)
}

func TestSnapshotRoundTrip(t *testing.T) {
	assert := assert.New(t)
	c := NewIncomplete("modulating")
	one, _ := chord.InKey(cMajor, 1, chord.None)
	d7, _ := chord.InKey(gMajor, 5, chord.Seventh)
	g, _ := chord.InKey(gMajor, 1, chord.None)

	require.NoError(t, c.Do(func(c *Incomplete) error {
		s := NewSection(1, 3)
		_ = s.Set(1, one, cMajor, gMajor)
		_ = s.Set(2, d7, gMajor)
		_ = s.Set(3, g, gMajor)
		c.Analysis().Append(s)
		c.Played(measure(t, "first"))
		c.Enqueue(measure(t, "second"))
		return nil
	}))

	snap := c.Snapshot()
	assert.Equal(1, snap.Played)
	assert.Len(snap.Measures, 2)
	assert.Equal([]string{"C", "D7", "G"}, snap.Sections[0].Chords)
	assert.Equal(1, snap.Modulations())
	assert.Equal(map[string]int{"C": 1, "D7": 1, "G": 1}, snap.ChordCounts())

	path := filepath.Join(t.TempDir(), "snap.msgpack")
	require.NoError(t, snap.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(snap.ID, loaded.ID)
	assert.Equal(snap.Sections, loaded.Sections)
	assert.Equal(snap.Measures[1].Annotation, loaded.Measures[1].Annotation)
	assert.WithinDuration(snap.Started, loaded.Started, time.Millisecond)
}
