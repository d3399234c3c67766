package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jsphweid/harmonia/pitch"
	"github.com/jsphweid/harmonia/util"
)

var ErrTimeSignature = errors.New("model: invalid time signature")

// Fraction is a duration relative to a whole note, e.g. 1/4 is a quarter.
type Fraction struct {
	Num int `json:"num" msgpack:"num"`
	Den int `json:"den" msgpack:"den"`
}

func NewFraction(num, den int) Fraction {
	if den < 0 {
		num, den = -num, -den
	}
	g := util.GCD(num, den)
	if g == 0 {
		return Fraction{Num: num, Den: den}
	}
	return Fraction{Num: num / g, Den: den / g}
}

func (f Fraction) Add(o Fraction) Fraction {
	return NewFraction(f.Num*o.Den+o.Num*f.Den, f.Den*o.Den)
}

func (f Fraction) Mul(n int) Fraction {
	return NewFraction(f.Num*n, f.Den)
}

func (f Fraction) Less(o Fraction) bool {
	return f.Num*o.Den < o.Num*f.Den
}

func (f Fraction) Positive() bool {
	return f.Den > 0 && f.Num > 0
}

func (f Fraction) Float() float64 {
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

type Instrument string

const (
	Piano   Instrument = "piano"
	Strings Instrument = "strings"
	Melody  Instrument = "melody"
)

// TimedNote is one note inside a measure. Offset is measured from the start
// of the measure. Dynamic is a signed step relative to a reference loudness.
type TimedNote struct {
	Pitch    pitch.AbsolutePitch `json:"pitch" msgpack:"pitch"`
	Offset   Fraction            `json:"offset" msgpack:"offset"`
	Duration Fraction            `json:"duration" msgpack:"duration"`
	Dynamic  int                 `json:"dynamic" msgpack:"dynamic"`
	TieIn    bool                `json:"tie_in,omitempty" msgpack:"tie_in"`
	TieOut   bool                `json:"tie_out,omitempty" msgpack:"tie_out"`
}

type Measure struct {
	Beats      int                        `json:"beats" msgpack:"beats"`
	BeatUnit   Fraction                   `json:"beat_unit" msgpack:"beat_unit"`
	Annotation string                     `json:"annotation" msgpack:"annotation"`
	Notes      map[Instrument][]TimedNote `json:"notes" msgpack:"notes"`
}

func NewMeasure(beats int, unit Fraction) (*Measure, error) {
	if beats <= 0 || !unit.Positive() || unit.Num != 1 {
		return nil, fmt.Errorf("%w: %d beats of %s", ErrTimeSignature, beats, unit)
	}
	return &Measure{
		Beats:    beats,
		BeatUnit: unit,
		Notes:    make(map[Instrument][]TimedNote),
	}, nil
}

// Length is the measure's total duration as a fraction of a whole note.
func (m *Measure) Length() Fraction {
	return m.BeatUnit.Mul(m.Beats)
}

// Annotate appends a line to the free-text annotation.
func (m *Measure) Annotate(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if m.Annotation == "" {
		m.Annotation = line
		return
	}
	m.Annotation += "; " + line
}

func (m *Measure) Add(inst Instrument, notes ...TimedNote) error {
	for _, n := range notes {
		if !n.Duration.Positive() {
			return fmt.Errorf("model: note %d has non-positive duration %s", n.Pitch, n.Duration)
		}
		if n.Offset.Den <= 0 || n.Offset.Num < 0 {
			return fmt.Errorf("model: note %d has invalid offset %s", n.Pitch, n.Offset)
		}
		if m.Length().Less(n.Offset.Add(n.Duration)) {
			return fmt.Errorf("model: note %d at %s for %s ends after the measure", n.Pitch, n.Offset, n.Duration)
		}
	}
	m.Notes[inst] = append(m.Notes[inst], notes...)
	return nil
}

func (m *Measure) Has(inst Instrument) bool {
	return len(m.Notes[inst]) > 0
}

// PitchesAt returns the ascending pitches of inst's notes starting at offset.
func (m *Measure) PitchesAt(inst Instrument, offset Fraction) []pitch.AbsolutePitch {
	var res []pitch.AbsolutePitch
	for _, n := range m.Notes[inst] {
		if n.Offset == offset {
			res = append(res, n.Pitch)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i] < res[j]
	})
	return res
}

func (m *Measure) Instruments() []Instrument {
	return util.SortedKeys(m.Notes)
}

func (m *Measure) Clone() *Measure {
	c := *m
	c.Notes = make(map[Instrument][]TimedNote, len(m.Notes))
	for inst, notes := range m.Notes {
		c.Notes[inst] = append([]TimedNote(nil), notes...)
	}
	return &c
}

func (m *Measure) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d", m.Beats, m.BeatUnit.Den)
	for _, inst := range m.Instruments() {
		fmt.Fprintf(&sb, " %s%v", inst, m.PitchesAt(inst, Fraction{0, 1}))
	}
	if m.Annotation != "" {
		fmt.Fprintf(&sb, " (%s)", m.Annotation)
	}
	return sb.String()
}
