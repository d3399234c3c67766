package midi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/util"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	ticksPerQuarter = 960
	baseVelocity    = 80
	velocityStep    = 12
)

type voice struct {
	channel uint8
	program uint8
}

var voices = map[model.Instrument]voice{
	model.Piano:   {channel: 0, program: 0},
	model.Strings: {channel: 1, program: 48},
	model.Melody:  {channel: 2, program: 73},
}

// ReadFile parses a Standard MIDI File. smf can panic on malformed
// input (https://github.com/gomidi/midi/issues/20), which is reported as an
// error instead.
func ReadFile(path string) (s *smf.SMF, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("error parsing midi file %s: %v", path, r)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading midi file: %w", err)
	}
	s, err = smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing midi file %s: %w", path, err)
	}
	return s, nil
}

// Velocity maps a dynamic step to a MIDI velocity.
func Velocity(dynamic int) uint8 {
	return uint8(util.Clamp(baseVelocity+dynamic*velocityStep, 1, 127))
}

// Span is one sounding note in absolute ticks, after ties are merged.
type Span struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
	Start    uint64
	End      uint64
}

func ticks(f model.Fraction) uint64 {
	return uint64(f.Num) * 4 * ticksPerQuarter / uint64(f.Den)
}

// Spans lays the measures end to end and merges notes tied across bar
// lines into a single span.
func Spans(measures []model.Measure, inst model.Instrument) []Span {
	v := voices[inst]
	var res []Span
	// open ties by pitch, pointing into res
	open := make(map[uint8]int)
	var start uint64
	for _, m := range measures {
		next := make(map[uint8]int)
		for _, n := range m.Notes[inst] {
			key := uint8(util.Clamp(int(n.Pitch), 0, 127))
			from := start + ticks(n.Offset)
			to := from + ticks(n.Duration)
			idx, ok := open[key]
			if ok && n.TieIn && res[idx].End == from {
				res[idx].End = to
			} else {
				idx = len(res)
				res = append(res, Span{
					Channel:  v.channel,
					Key:      key,
					Velocity: Velocity(n.Dynamic),
					Start:    from,
					End:      to,
				})
			}
			if n.TieOut {
				next[key] = idx
			}
		}
		open = next
		start += ticks(m.Length())
	}
	return res
}

type event struct {
	tick uint64
	off  bool
	msg  midi.Message
}

func trackFor(inst model.Instrument, spans []Span) smf.Track {
	v := voices[inst]
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(string(inst)))
	tr.Add(0, midi.ProgramChange(v.channel, v.program))

	events := make([]event, 0, 2*len(spans))
	for _, s := range spans {
		events = append(events,
			event{tick: s.Start, msg: midi.NoteOn(s.Channel, s.Key, s.Velocity)},
			event{tick: s.End, off: true, msg: midi.NoteOff(s.Channel, s.Key)},
		)
	}
	// note offs go first so a repeated pitch restarts cleanly
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var last uint64
	for _, e := range events {
		tr.Add(uint32(e.tick-last), e.msg)
		last = e.tick
	}
	tr.Close(0)
	return tr
}

// WriteMeasures renders measures as a Standard MIDI File: a conductor
// track with tempo and meter, then one track per instrument.
func WriteMeasures(w io.Writer, measures []model.Measure, tempo float64) error {
	if len(measures) == 0 {
		return errors.New("midi: no measures to write")
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var conductor smf.Track
	first := measures[0]
	conductor.Add(0, smf.MetaMeter(uint8(first.Beats), uint8(first.BeatUnit.Den)))
	conductor.Add(0, smf.MetaTempo(tempo))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return err
	}

	used := make(map[model.Instrument]bool)
	for _, m := range measures {
		for inst := range m.Notes {
			used[inst] = true
		}
	}
	for _, inst := range util.SortedKeys(used) {
		if err := s.Add(trackFor(inst, Spans(measures, inst))); err != nil {
			return err
		}
	}

	_, err := s.WriteTo(w)
	return err
}

func WriteFile(path string, measures []model.Measure, tempo float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteMeasures(f, measures, tempo)
}

// ReadSpans collects the note spans of every track in s.
func ReadSpans(s *smf.SMF) []Span {
	var res []Span
	for _, track := range s.Tracks {
		var abs uint64
		sounding := make(map[[2]uint8]int)
		for _, evt := range track {
			abs += uint64(evt.Delta)
			var ch, key, vel uint8
			if evt.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
				sounding[[2]uint8{ch, key}] = len(res)
				res = append(res, Span{Channel: ch, Key: key, Velocity: vel, Start: abs})
				continue
			}
			// a note on with velocity 0 also ends a note
			if evt.Message.GetNoteOff(&ch, &key, &vel) || evt.Message.GetNoteOn(&ch, &key, &vel) {
				if i, ok := sounding[[2]uint8{ch, key}]; ok {
					res[i].End = abs
					delete(sounding, [2]uint8{ch, key})
				}
			}
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Start < res[j].Start
	})
	return res
}
