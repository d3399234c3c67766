// Package progression holds weighted chord-transition graphs. Edge weight is
// encoded by repetition: a successor listed three times is three times as
// likely to be picked as one listed once.
package progression

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/pitch"
)

var (
	ErrUnknownChord = errors.New("progression: chord is not part of the graph")
	ErrNoPath       = errors.New("progression: no path within chord budget")
)

type Node struct {
	Spec chord.Spec
	next []*Node

	// set only on KeyChange graphs
	InFrom bool
	InTo   bool
}

func (n *Node) Successors() []*Node {
	return n.next
}

func (n *Node) addEdge(to *Node, weight int) {
	for i := 0; i < weight; i++ {
		n.next = append(n.next, to)
	}
}

func (n *Node) pick(rng *rand.Rand) (*Node, error) {
	if len(n.next) == 0 {
		return nil, fmt.Errorf("%w: %s has no successors", ErrUnknownChord, n.Spec.Name())
	}
	return n.next[rng.Intn(len(n.next))], nil
}

// Progression is a graph the section writer can walk.
type Progression interface {
	Node(spec chord.Spec) (*Node, bool)
	Nodes() []*Node
	Next(rng *rand.Rand, from chord.Spec) (chord.Spec, error)
}

// graph keeps nodes in insertion order so walks and searches are
// deterministic for a given rng.
type graph struct {
	order []*Node
	byID  map[string]*Node
}

func newGraph() *graph {
	return &graph{byID: make(map[string]*Node)}
}

func (g *graph) add(spec chord.Spec) *Node {
	if n, ok := g.byID[spec.ID()]; ok {
		return n
	}
	n := &Node{Spec: spec}
	g.byID[spec.ID()] = n
	g.order = append(g.order, n)
	return n
}

func (g *graph) Node(spec chord.Spec) (*Node, bool) {
	n, ok := g.byID[spec.ID()]
	return n, ok
}

func (g *graph) Nodes() []*Node {
	res := make([]*Node, len(g.order))
	copy(res, g.order)
	return res
}

func (g *graph) Next(rng *rand.Rand, from chord.Spec) (chord.Spec, error) {
	n, ok := g.Node(from)
	if !ok {
		return chord.Spec{}, fmt.Errorf("%w: %s", ErrUnknownChord, from.Name())
	}
	next, err := n.pick(rng)
	if err != nil {
		return chord.Spec{}, err
	}
	return next.Spec, nil
}

// KeyProgression is a graph built entirely inside one key.
type KeyProgression struct {
	*graph
	Key pitch.Key

	degrees  map[int]*Node
	sevenths map[int]*Node
}

func newKeyProgression(k pitch.Key) *KeyProgression {
	return &KeyProgression{
		graph:    newGraph(),
		Key:      k,
		degrees:  make(map[int]*Node),
		sevenths: make(map[int]*Node),
	}
}

func (p *KeyProgression) register(degree int, ext chord.Extension) *Node {
	spec, err := chord.InKey(p.Key, degree, ext)
	if err != nil {
		// degrees are fixed by the tables below
		panic(err)
	}
	n := p.add(spec)
	if ext == chord.None {
		p.degrees[degree] = n
	} else {
		p.sevenths[degree] = n
	}
	return n
}

// Degree returns the triad on scale degree d.
func (p *KeyProgression) Degree(d int) (chord.Spec, error) {
	n, ok := p.degrees[d]
	if !ok {
		return chord.Spec{}, fmt.Errorf("%w: degree %d in %s", pitch.ErrInvalidDegree, d, p.Key)
	}
	return n.Spec, nil
}

// DegreeOf reports the scale degree a chord of this graph was registered
// under, or 0.
func (p *KeyProgression) DegreeOf(spec chord.Spec) int {
	n, ok := p.Node(spec)
	if !ok {
		return 0
	}
	return n.Spec.Degree
}

type edge struct {
	from, to int
	weight   int
}

// degree 5 with a seventh is written as 57 in these tables
const dom7 = 57

var standardEdges = []edge{
	{1, 4, 2}, {1, 6, 1}, {1, 3, 1},
	{2, dom7, 2}, {2, 4, 1}, {2, 7, 1},
	{3, 1, 1}, {3, 6, 1},
	{4, dom7, 4}, {4, 6, 1}, {4, 3, 1}, {4, 2, 1},
	{dom7, 1, 3}, {dom7, 6, 1}, {dom7, 4, 1},
	// the plain dominant triad behaves like its seventh form
	{5, 1, 3}, {5, 6, 1}, {5, 4, 1},
	{6, 4, 2}, {6, 2, 2}, {6, 1, 1},
	{7, dom7, 1}, {7, 1, 1},
}

func buildStandard(k pitch.Key) *KeyProgression {
	p := newKeyProgression(k)
	for d := 1; d <= 7; d++ {
		p.register(d, chord.None)
	}
	p.register(5, chord.Seventh)

	node := func(d int) *Node {
		if d == dom7 {
			return p.sevenths[5]
		}
		return p.degrees[d]
	}
	for _, e := range standardEdges {
		node(e.from).addEdge(node(e.to), e.weight)
	}
	return p
}

// StandardMajor builds the fixed major-key table rooted at tonic.
func StandardMajor(tonic pitch.Note) *KeyProgression {
	return buildStandard(pitch.MajorKey(tonic))
}

// StandardMinor builds the same table over the harmonic minor, which
// gives a major dominant and a diminished leading-tone chord.
func StandardMinor(tonic pitch.Note) *KeyProgression {
	return buildStandard(pitch.MinorKey(tonic))
}

// Standard picks the table matching the key's scale. Every minor key is
// harmonized over the harmonic minor.
func Standard(k pitch.Key) *KeyProgression {
	if k.Scale.Minor() {
		return StandardMinor(k.Tonic)
	}
	return StandardMajor(k.Tonic)
}
