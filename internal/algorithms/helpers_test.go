package algorithms

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bipflow/internal/graph"
)

type testEdge struct {
	from, to int
	capacity graph.Flow
}

// testNetwork is a network description that can be rebuilt for every solver.
type testNetwork struct {
	name     string
	edges    []testEdge
	source   int
	sink     int
	numLeft  int
	numRight int
}

func (tn testNetwork) build(t testing.TB) *graph.ResidualGraph {
	t.Helper()
	g := graph.New()
	for _, e := range tn.edges {
		g.AddEdge(e.from, e.to, e.capacity)
	}
	g.Finalize()
	return g
}

// scenarios are the hand-checked networks every solver must get right.
func scenarios() []struct {
	net  testNetwork
	want graph.Flow
} {
	return []struct {
		net  testNetwork
		want graph.Flow
	}{
		{
			net: testNetwork{
				name:   "single_edge",
				edges:  []testEdge{{0, 1, 5}},
				source: 0, sink: 1,
			},
			want: 5,
		},
		{
			// source=0, A=1, B=2, sink=3
			net: testNetwork{
				name:   "diamond",
				edges:  []testEdge{{0, 1, 3}, {1, 3, 3}, {0, 2, 4}, {2, 3, 4}},
				source: 0, sink: 3, numLeft: 1, numRight: 1,
			},
			want: 7,
		},
		{
			// source=0 -> A=1 -> B=2 -> sink=3
			net: testNetwork{
				name:   "bottleneck_chain",
				edges:  []testEdge{{0, 1, 10}, {1, 2, 2}, {2, 3, 10}},
				source: 0, sink: 3, numLeft: 1, numRight: 1,
			},
			want: 2,
		},
		{
			net: testNetwork{
				name:   "disconnected_sink",
				edges:  []testEdge{{0, 1, 5}, {2, 3, 5}},
				source: 0, sink: 3, numLeft: 1, numRight: 1,
			},
			want: 0,
		},
		{
			// two left nodes compete for one right node
			net: testNetwork{
				name: "assignment",
				edges: []testEdge{
					{0, 1, 4}, {0, 2, 6},
					{1, 3, 5}, {2, 3, 5}, {2, 4, 2},
					{3, 5, 7}, {4, 5, 9},
				},
				source: 0, sink: 5, numLeft: 2, numRight: 2,
			},
			want: 9,
		},
		{
			// flow has to be rerouted through a reverse arc
			net: testNetwork{
				name: "reroute",
				edges: []testEdge{
					{0, 1, 1}, {0, 2, 1},
					{1, 3, 1}, {1, 4, 1}, {2, 3, 1},
					{3, 5, 1}, {4, 5, 1},
				},
				source: 0, sink: 5, numLeft: 2, numRight: 2,
			},
			want: 2,
		},
	}
}

// randomBipartite builds source → left → right → sink networks in the shape
// of the benchmark instances, plus some right → left back edges and
// zero-capacity edges. Node 0 is the source, 1..left the left side, then the
// right side, and the sink last.
func randomBipartite(seed uint64, left, right, degree int, maxCap int64) testNetwork {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	source, sink := 0, left+right+1

	net := testNetwork{source: source, sink: sink, numLeft: left, numRight: right}
	for l := 1; l <= left; l++ {
		net.edges = append(net.edges, testEdge{source, l, 1 + rng.Int64N(maxCap)})
	}
	for l := 1; l <= left; l++ {
		for k := 0; k < degree; k++ {
			r := left + 1 + rng.IntN(right)
			net.edges = append(net.edges, testEdge{l, r, 1 + rng.Int64N(maxCap)})
		}
	}
	for r := left + 1; r <= left+right; r++ {
		net.edges = append(net.edges, testEdge{r, sink, 1 + rng.Int64N(maxCap)})
		if rng.IntN(3) == 0 {
			l := 1 + rng.IntN(left)
			net.edges = append(net.edges, testEdge{r, l, 1 + rng.Int64N(maxCap)})
		}
	}
	for l := 1; l <= left; l += 2 {
		net.edges = append(net.edges, testEdge{l, left + 1 + rng.IntN(right), 0})
	}
	return net
}

// solveWith runs algo on a fresh copy of net and checks the resulting flow.
func solveWith(t *testing.T, algo Algorithm, net testNetwork) graph.Flow {
	t.Helper()
	g := net.build(t)

	var flow graph.Flow
	switch algo {
	case AlgorithmFIFO:
		flow = NewFIFOPushRelabel(net.numLeft, net.numRight, g).Solve(net.source, net.sink)
	case AlgorithmHighestLabel:
		flow = NewHighestLabelPushRelabel(net.numLeft, net.numRight, g).Solve(net.source, net.sink)
	case AlgorithmDinic:
		flow = NewDinic(g).Solve(net.source, net.sink)
	default:
		t.Fatalf("unknown algorithm %q", algo)
	}

	assertValidMaxFlow(t, g, net.source, net.sink)
	assert.Equal(t, flow, g.Excess(net.sink))
	assert.False(t, g.IsBorrowed(), "solver must release the graph")
	return flow
}

func assertValidMaxFlow(t *testing.T, g *graph.ResidualGraph, source, sink int) {
	t.Helper()
	require.NoError(t, g.ValidateMaxFlow(source, sink))
	for u := 0; u < g.NumNodes(); u++ {
		if u != source && u != sink {
			assert.Zero(t, g.Excess(u), "node %d must be balanced", u)
		}
	}
}
