package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	hmidi "github.com/jsphweid/harmonia/midi"
	"github.com/jsphweid/harmonia/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectMidiListsNotes(t *testing.T) {
	assert := assert.New(t)
	m, err := model.NewMeasure(4, model.NewFraction(1, 4))
	require.NoError(t, err)
	require.NoError(t, m.Add(model.Piano,
		model.TimedNote{Pitch: 48, Offset: model.NewFraction(0, 1), Duration: model.NewFraction(1, 1)},
		model.TimedNote{Pitch: 64, Offset: model.NewFraction(0, 1), Duration: model.NewFraction(1, 1)},
	))
	path := filepath.Join(t.TempDir(), "out.mid")
	require.NoError(t, hmidi.WriteFile(path, []model.Measure{*m}, 90))

	var out bytes.Buffer
	require.NoError(t, inspectMidi(&out, path))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal("tracks: 2", lines[0])
	assert.Equal("notes: 2", lines[1])
	assert.Equal("  ch0 C3   vel  80  0-3840", lines[2])
	assert.Equal("  ch0 E4   vel  80  0-3840", lines[3])
}

func TestInspectMidiMissingFile(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, inspectMidi(&out, filepath.Join(t.TempDir(), "nope.mid")))
	assert.Empty(t, out.String())
}
