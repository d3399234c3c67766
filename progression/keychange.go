package progression

import (
	"fmt"

	"github.com/jsphweid/harmonia/chord"
	"github.com/jsphweid/harmonia/pitch"
)

// KeyChange joins two key progressions into one graph. Chords sounding the
// same pitch classes in both keys collapse into a single pivot node.
type KeyChange struct {
	*graph
	From *KeyProgression
	To   *KeyProgression
}

func NewKeyChange(from, to *KeyProgression) *KeyChange {
	kc := &KeyChange{graph: newGraph(), From: from, To: to}
	for _, src := range []*KeyProgression{from, to} {
		for _, n := range src.order {
			kc.add(n.Spec)
		}
	}
	for _, src := range []*KeyProgression{from, to} {
		for _, n := range src.order {
			combined := kc.byID[n.Spec.ID()]
			for _, s := range n.Successors() {
				combined.addEdge(kc.byID[s.Spec.ID()], 1)
			}
		}
	}
	for _, n := range kc.order {
		built := chord.Build(n.Spec, pitch.MiddleC)
		n.InFrom = built.InKey(from.Key)
		n.InTo = built.InKey(to.Key)
	}
	return kc
}

// Progress finds a cadential route from the from-key's fromDegree chord to
// the to-key's toDegree chord using at most maxChords chords, both ends
// included.
func (kc *KeyChange) Progress(fromDegree, toDegree, maxChords int) ([]chord.Spec, error) {
	start, err := kc.From.Degree(fromDegree)
	if err != nil {
		return nil, err
	}
	return kc.ProgressFrom(start, toDegree, maxChords)
}

type searchKey struct {
	node    *Node
	budget  int
	prevDom bool
}

type search struct {
	kc        *KeyChange
	dst       *Node
	max       int
	memo      map[searchKey]bool
	best      []*Node
	bestDups  int
	bestPivot int
}

// ProgressFrom is Progress starting from an arbitrary chord of the graph,
// such as a dominant seventh that has no plain degree of its own.
func (kc *KeyChange) ProgressFrom(start chord.Spec, toDegree, maxChords int) ([]chord.Spec, error) {
	src, ok := kc.Node(start)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChord, start.Name())
	}
	dstSpec, err := kc.To.Degree(toDegree)
	if err != nil {
		return nil, err
	}
	dst := kc.byID[dstSpec.ID()]

	s := &search{
		kc:   kc,
		dst:  dst,
		max:  maxChords,
		memo: make(map[searchKey]bool),
	}
	if maxChords >= 2 {
		s.walk([]*Node{src})
	}
	if s.best == nil {
		return nil, fmt.Errorf("%w: %s to %s in %s within %d chords",
			ErrNoPath, start.Name(), dstSpec.Name(), kc.To.Key, maxChords)
	}

	res := make([]chord.Spec, len(s.best))
	for i, n := range s.best {
		res[i] = n.Spec
	}
	return res, nil
}

func (s *search) isDominant(n *Node) bool {
	return s.kc.To.DegreeOf(n.Spec) == 5
}

// viable reports whether some walk starting at n, using at most budget
// nodes, ends on the destination right after a dominant.
func (s *search) viable(n *Node, budget int, prevDom bool) bool {
	if budget < 1 {
		return false
	}
	if n == s.dst {
		return prevDom
	}
	key := searchKey{n, budget, prevDom}
	if v, ok := s.memo[key]; ok {
		return v
	}
	dom := s.isDominant(n)
	var res bool
	for _, next := range distinct(n.Successors()) {
		if s.viable(next, budget-1, dom) {
			res = true
			break
		}
	}
	s.memo[key] = res
	return res
}

func (s *search) walk(path []*Node) {
	last := path[len(path)-1]
	if last == s.dst && len(path) > 1 {
		s.offer(path)
		return
	}
	if len(path) >= s.max {
		return
	}
	dom := s.isDominant(last)
	for _, next := range distinct(last.Successors()) {
		if !s.viable(next, s.max-len(path), dom) {
			continue
		}
		s.walk(append(path, next))
	}
}

func (s *search) offer(path []*Node) {
	if !s.isDominant(path[len(path)-2]) {
		return
	}
	seen := make(map[*Node]bool)
	var dups, pivots int
	for _, n := range path {
		if seen[n] {
			dups++
		}
		seen[n] = true
		if n.InFrom && n.InTo {
			pivots++
		}
	}
	if s.best != nil && (dups > s.bestDups || (dups == s.bestDups && pivots <= s.bestPivot)) {
		return
	}
	s.best = append([]*Node(nil), path...)
	s.bestDups = dups
	s.bestPivot = pivots
}

func distinct(nodes []*Node) []*Node {
	seen := make(map[*Node]bool, len(nodes))
	var res []*Node
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			res = append(res, n)
		}
	}
	return res
}
