package composition

import (
	"time"

	"github.com/jsphweid/harmonia/model"
	"github.com/jsphweid/harmonia/util"
)

// Composition is a finished, read-only snapshot: every measure written
// (played ones first) plus the harmonic plan behind them.
type Composition struct {
	ID       string           `json:"id" msgpack:"id"`
	Strategy string           `json:"strategy" msgpack:"strategy"`
	Started  time.Time        `json:"started" msgpack:"started"`
	Finished time.Time        `json:"finished" msgpack:"finished"`
	Played   int              `json:"played" msgpack:"played"`
	Measures []model.Measure  `json:"measures" msgpack:"measures"`
	Sections []SectionSummary `json:"sections" msgpack:"sections"`
}

// SectionSummary is a Section flattened to names, indexed from Start.
type SectionSummary struct {
	Start  int        `json:"start" msgpack:"start"`
	Size   int        `json:"size" msgpack:"size"`
	Remark string     `json:"remark,omitempty" msgpack:"remark"`
	Chords []string   `json:"chords" msgpack:"chords"`
	Keys   [][]string `json:"keys" msgpack:"keys"`
}

func summarize(s *Section) SectionSummary {
	res := SectionSummary{Start: s.Start, Size: s.Size, Remark: s.Remark}
	for i := s.Start; i <= s.End(); i++ {
		var name string
		if c, ok := s.chords[i]; ok {
			name = c.Name()
		}
		res.Chords = append(res.Chords, name)

		var keys []string
		for _, k := range s.keys[i] {
			keys = append(keys, k.String())
		}
		res.Keys = append(res.Keys, keys)
	}
	return res
}

// Modulations counts how often the governing key changes. A pivot measure
// listing two keys is governed by the last one.
func (c Composition) Modulations() int {
	var count int
	var prev string
	for _, s := range c.Sections {
		for _, keys := range s.Keys {
			if len(keys) == 0 {
				continue
			}
			if prev == "" {
				prev = keys[0]
			}
			cur := keys[len(keys)-1]
			if cur != prev {
				count++
			}
			prev = cur
		}
	}
	return count
}

// ChordCounts is a histogram of chord names over all planned measures.
func (c Composition) ChordCounts() map[string]int {
	res := make(map[string]int)
	for _, s := range c.Sections {
		for _, name := range s.Chords {
			if name != "" {
				res[name]++
			}
		}
	}
	return res
}

func (c Composition) Save(path string) error {
	return util.CreateBinary(path, c)
}

func Load(path string) (Composition, error) {
	return util.ReadBinary[Composition](path)
}
