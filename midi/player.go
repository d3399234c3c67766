package midi

import (
	"context"
	"sort"
	"time"

	"github.com/jsphweid/harmonia/model"
	"gitlab.com/gomidi/midi/v2"
)

// Sender matches the function returned by midi.SendTo.
type Sender func(msg midi.Message) error

// Player sends measures to an output in real time. Notes tied into the next
// measure keep sounding between calls to Play.
type Player struct {
	send    Sender
	holding map[[2]uint8]bool
}

func NewPlayer(send Sender) *Player {
	return &Player{send: send, holding: make(map[[2]uint8]bool)}
}

const allNotesOff = 123

type cue struct {
	at  time.Duration
	off bool
	msg midi.Message
}

// Play sounds one measure lasting length and returns once it is over or ctx
// is done.
func (p *Player) Play(ctx context.Context, m *model.Measure, length time.Duration) error {
	whole := float64(length) / m.Length().Float()
	at := func(f model.Fraction) time.Duration {
		return time.Duration(whole * f.Float())
	}

	var cues []cue
	next := make(map[[2]uint8]bool)
	continued := make(map[[2]uint8]bool)
	for _, inst := range m.Instruments() {
		v := voices[inst]
		for _, n := range m.Notes[inst] {
			id := [2]uint8{v.channel, uint8(n.Pitch)}
			if n.TieIn && p.holding[id] {
				continued[id] = true
			} else {
				cues = append(cues, cue{at: at(n.Offset), msg: midi.NoteOn(v.channel, uint8(n.Pitch), Velocity(n.Dynamic))})
			}
			if n.TieOut {
				next[id] = true
				continue
			}
			cues = append(cues, cue{at: at(n.Offset.Add(n.Duration)), off: true, msg: midi.NoteOff(v.channel, uint8(n.Pitch))})
		}
	}
	// held notes not continued here end on the downbeat
	for id := range p.holding {
		if !continued[id] {
			cues = append(cues, cue{off: true, msg: midi.NoteOff(id[0], id[1])})
		}
	}
	sort.SliceStable(cues, func(i, j int) bool {
		if cues[i].at != cues[j].at {
			return cues[i].at < cues[j].at
		}
		return cues[i].off && !cues[j].off
	})
	p.holding = next

	start := time.Now()
	for _, c := range cues {
		if wait := c.at - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := p.send(c.msg); err != nil {
			return err
		}
	}
	if wait := length - time.Since(start); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

// Silence ends every held note and sends all-notes-off on the channels in
// use.
func (p *Player) Silence() error {
	for id := range p.holding {
		if err := p.send(midi.NoteOff(id[0], id[1])); err != nil {
			return err
		}
	}
	p.holding = make(map[[2]uint8]bool)
	for _, v := range voices {
		if err := p.send(midi.ControlChange(v.channel, allNotesOff, 0)); err != nil {
			return err
		}
	}
	return nil
}
