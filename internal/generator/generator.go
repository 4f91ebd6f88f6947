// Package generator produces the random bipartite benchmark families HiLo,
// Rope and ZipF.
//
// Every generated instance has left nodes 1..n1, right nodes n1+1..n1+n2,
// source n1+n2+1 and sink n1+n2+2. Middle edges run from left to right;
// the source feeds every left node and every right node feeds the sink.
// Node ids inside each side are randomly permuted and the middle edges are
// shuffled, so solvers cannot profit from the construction order.
//
// Capacities are drawn uniformly from [0, 2^24]. Zero-capacity edges are
// written out like any other edge and dropped when the graph is built.
package generator

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/rand"

	"bipflow/internal/graph"
	"bipflow/internal/instance"
)

// MaxCapacity is the largest capacity a generated edge can get.
const MaxCapacity = 1 << 24

var (
	ErrInvalidSize = errors.New("invalid generator size")
	ErrUnknownKind = errors.New("unknown generator kind")
)

// Kind names a generator family.
type Kind string

const (
	KindHiLo Kind = "hilo"
	KindRope Kind = "rope"
	KindZipF Kind = "zipf"
)

// AllKinds in the order the benchmark suite emits them.
var AllKinds = []Kind{KindZipF, KindHiLo, KindRope}

// ParseKind converts a kind name, ignoring case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHiLo, KindRope, KindZipF:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Generator draws instances from a seeded random source. It is not safe for
// concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New creates a generator whose output depends only on seed.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate builds one instance of the given kind with n1 left nodes, n2 right
// nodes and degree parameter d.
func Generate(kind Kind, n1, n2, d int, seed uint64) (*instance.Instance, error) {
	gen := New(seed)
	switch kind {
	case KindHiLo:
		return gen.HiLo(n1, n2, d)
	case KindRope:
		return gen.Rope(n1, n2, d)
	case KindZipF:
		return gen.ZipF(n1, n2, d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// middleEdge is an edge between left index L and right index R, both 0-based.
type middleEdge struct {
	L, R     int
	Capacity graph.Flow
}

// builder accumulates middle edges and the source/sink capacities of every
// left and right node before the ids are permuted.
type builder struct {
	n1, n2   int
	edges    []middleEdge
	capLeft  []graph.Flow
	capRight []graph.Flow
}

func newBuilder(n1, n2 int) *builder {
	return &builder{
		n1:       n1,
		n2:       n2,
		capLeft:  make([]graph.Flow, n1),
		capRight: make([]graph.Flow, n2),
	}
}

func (g *Generator) capacity() graph.Flow {
	return g.rng.Int63n(MaxCapacity + 1)
}

// randUpTo returns a uniform value in [0, limit].
func (g *Generator) randUpTo(limit graph.Flow) graph.Flow {
	if limit <= 0 {
		return 0
	}
	return g.rng.Int63n(limit + 1)
}

func (g *Generator) perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i + 1
	}
	g.rng.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}

// finish permutes the node ids and lays the instance out as middle edges,
// then source edges, then sink edges.
func (g *Generator) finish(b *builder) *instance.Instance {
	n1, n2 := b.n1, b.n2
	source, sink := n1+n2+1, n1+n2+2

	perm1 := g.perm(n1)
	perm2 := g.perm(n2)
	g.rng.Shuffle(len(b.edges), func(i, j int) { b.edges[i], b.edges[j] = b.edges[j], b.edges[i] })

	inst := &instance.Instance{
		NumLeft:  n1,
		NumRight: n2,
		NumNodes: n1 + n2 + 2,
		NumEdges: len(b.edges) + n1 + n2,
		Source:   source,
		Sink:     sink,
		Edges:    make([]instance.Edge, 0, len(b.edges)+n1+n2),
	}
	for _, e := range b.edges {
		inst.Edges = append(inst.Edges, instance.Edge{From: perm1[e.L], To: n1 + perm2[e.R], Capacity: e.Capacity})
	}
	for i := 0; i < n1; i++ {
		inst.Edges = append(inst.Edges, instance.Edge{From: source, To: perm1[i], Capacity: b.capLeft[i]})
	}
	for i := 0; i < n2; i++ {
		inst.Edges = append(inst.Edges, instance.Edge{From: perm2[i] + n1, To: sink, Capacity: b.capRight[i]})
	}
	return inst
}

func checkSize(n1, n2, d int) error {
	if n1 <= 0 || n2 <= 0 || d <= 0 {
		return fmt.Errorf("%w: n1=%d n2=%d d=%d", ErrInvalidSize, n1, n2, d)
	}
	return nil
}

// =============================================================================
// HiLo
// =============================================================================

// HiLo connects right node i to left nodes i mod n1, i mod n1 - 1, ... (at
// most d of them, stopping at index 0). All edges of a right node share one
// capacity, which is also its sink capacity; a left node's source capacity is
// the sum of the capacities of the right nodes it heads.
func (g *Generator) HiLo(n1, n2, d int) (*instance.Instance, error) {
	if err := checkSize(n1, n2, d); err != nil {
		return nil, err
	}
	b := newBuilder(n1, n2)

	for i := 0; i < n2; i++ {
		j := i % n1
		c := g.capacity()
		b.capLeft[j] += c
		b.capRight[i] = c
		for k := 0; k < d; k++ {
			b.edges = append(b.edges, middleEdge{L: j, R: i, Capacity: c})
			j--
			if j < 0 {
				break
			}
		}
	}

	return g.finish(b), nil
}

// =============================================================================
// Rope
// =============================================================================

// Rope splits the left side into t = n1/d blocks of d nodes and the right side
// into t blocks of n2/t nodes, then links block k to block k+1 of the other
// side. Even steps use a round-robin matching, odd steps connect every right
// node to all but one node of the left block. n1 and n2 are rounded down to
// multiples of the block sizes.
func (g *Generator) Rope(n1, n2, d int) (*instance.Instance, error) {
	if err := checkSize(n1, n2, d); err != nil {
		return nil, err
	}
	t := n1 / d
	if t == 0 {
		return nil, fmt.Errorf("%w: rope needs n1 >= d (n1=%d d=%d)", ErrInvalidSize, n1, d)
	}
	d1 := n2 / t
	if d1 == 0 {
		return nil, fmt.Errorf("%w: rope needs n2 >= n1/d (n2=%d blocks=%d)", ErrInvalidSize, n2, t)
	}
	n1, n2 = d*t, d1*t
	b := newBuilder(n1, n2)

	for step := 0; step < t; step++ {
		v1, v2, v3, v4 := step*d, (step+1)*d-1, (step+1)*d, (step+2)*d-1
		u1, u2, u3, u4 := step*d1, (step+1)*d1-1, (step+1)*d1, (step+2)*d1-1

		link := g.linkMax
		if step%2 == 1 {
			link = g.linkRandom
		}
		if step+1 < t {
			link(b, v1, v2, u3, u4)
			link(b, v3, v4, u1, u2)
		} else {
			link(b, v1, v2, u1, u2)
		}
	}

	return g.finish(b), nil
}

// linkMax walks right nodes u1..u2 and pairs them round-robin with left nodes
// v1..v2. These edges feed the terminal capacities.
func (g *Generator) linkMax(b *builder, v1, v2, u1, u2 int) {
	j := v1
	for i := u1; i <= u2; i++ {
		c := g.capacity()
		b.edges = append(b.edges, middleEdge{L: j, R: i, Capacity: c})
		b.capLeft[j] += c
		b.capRight[i] += c
		j++
		if j > v2 {
			j = v1
		}
	}
}

// linkRandom connects every right node u1..u2 to a random subset of
// v2-v1 left nodes out of v1..v2.
func (g *Generator) linkRandom(b *builder, v1, v2, u1, u2 int) {
	span := v2 - v1 + 1
	for i := u1; i <= u2; i++ {
		for _, k := range g.rng.Perm(span)[:span-1] {
			b.edges = append(b.edges, middleEdge{L: v1 + k, R: i, Capacity: g.capacity()})
		}
	}
}

// =============================================================================
// ZipF
// =============================================================================

// ZipF draws d*(n1+n2)/2 distinct edges where edge (i, j) appears with
// probability proportional to 1/(i*j). Terminal capacities are uniform between
// zero and the summed capacity of the node's middle edges.
func (g *Generator) ZipF(n1, n2, d int) (*instance.Instance, error) {
	if err := checkSize(n1, n2, d); err != nil {
		return nil, err
	}

	harmonic := make([]float64, max(n1, n2)+1)
	for i := 1; i < len(harmonic); i++ {
		harmonic[i] = harmonic[i-1] + 1.0/float64(i)
	}

	total := d * (n1 + n2) / 2
	if limit := n1 * n2; total > limit {
		total = limit
	}

	b := newBuilder(n1, n2)
	seen := make(map[[2]int]struct{}, total)
	for len(b.edges) < total {
		v := g.zipf(harmonic, n1)
		u := g.zipf(harmonic, n2)
		key := [2]int{v, u}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c := g.capacity()
		b.capLeft[v-1] += c
		b.capRight[u-1] += c
		b.edges = append(b.edges, middleEdge{L: v - 1, R: u - 1, Capacity: c})
	}

	for i := range b.capLeft {
		b.capLeft[i] = g.randUpTo(b.capLeft[i])
	}
	for i := range b.capRight {
		b.capRight[i] = g.randUpTo(b.capRight[i])
	}

	return g.finish(b), nil
}

// zipf returns k in 1..n with probability proportional to 1/k.
func (g *Generator) zipf(harmonic []float64, n int) int {
	x := g.rng.Float64() * harmonic[n]
	lo, hi := 0, n
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if x > harmonic[mid] {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}
