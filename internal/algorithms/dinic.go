package algorithms

import (
	"math"

	"bipflow/internal/graph"
	"bipflow/pkg/apperror"
)

// =============================================================================
// Dinic's Algorithm (Dinitz's Algorithm)
// =============================================================================
//
// Each phase labels every node with its residual distance to the sink and
// then finds a blocking flow over admissible arcs (dist[u] == dist[v] + 1)
// with repeated depth-first searches. A search augments as much as it can
// below the source before returning, and a node that runs out of admissible
// arcs is parked at the sentinel label n for the rest of the phase.
//
// Time Complexity: O(V² × E) general case, O(E × √V) for unit capacity graphs
// Space Complexity: O(V + E)
//
// Algorithm Phases:
//  1. Label nodes by BFS from the sink; stop when the source is unlabelled
//  2. Rewind current arcs
//  3. Search and augment until a search returns nothing; go to 1
// =============================================================================

// DinicStats counts the work done by one Dinic run.
type DinicStats struct {
	// Phases is the number of labelling passes, including the final one
	// that finds the sink unreachable.
	Phases int

	// Augmentations is the number of source-sink paths augmented.
	Augmentations int
}

// Dinic is the blocking-flow max-flow solver.
type Dinic struct {
	g       *graph.ResidualGraph
	current []int
	stack   []dinicFrame
	stats   DinicStats
}

// dinicFrame is one level of the explicit search stack.
type dinicFrame struct {
	node   int
	upper  graph.Flow // most flow the parent can take through this node
	pushed graph.Flow // flow already sent on from this node
}

// NewDinic creates a Dinic solver over g, finalizing it if needed.
func NewDinic(g *graph.ResidualGraph) *Dinic {
	if g == nil {
		apperror.Invariant(apperror.CodeNilInput, "dinic solver needs a graph")
	}
	g.Finalize()
	return &Dinic{g: g}
}

// Solve computes the maximum flow from source to sink. The graph must be in
// its initial (reset) state; it holds the resulting flow afterwards.
func (d *Dinic) Solve(source, sink int) graph.Flow {
	release := d.g.Borrow()
	defer release()
	return d.solve(source, sink)
}

// solve runs the phases on a graph the caller has already borrowed.
func (d *Dinic) solve(source, sink int) graph.Flow {
	g := d.g
	d.stats = DinicStats{}
	if source == sink || g.NumNodes() == 0 || g.NumEdges() == 0 {
		return 0
	}
	checkTerminals(g, source, sink)

	n := g.NumNodes()
	if len(d.current) != n {
		d.current = make([]int, n)
	}

	for {
		g.RecomputeDistances(source, sink)
		d.stats.Phases++
		if g.Distance(source) >= n {
			break
		}

		for u := 0; u < n; u++ {
			d.current[u] = g.Start(u)
		}
		for d.augment(source, sink) > 0 {
		}
	}

	return g.Excess(sink)
}

// Stats returns the counters of the last Solve.
func (d *Dinic) Stats() DinicStats {
	return d.stats
}

// augment runs one multi-path search from source and returns the flow it
// delivered to sink.
//
// A frame keeps scanning its node's arcs from the current arc. When a child
// frame returns, the parent pushes what the child delivered over its current
// arc and either returns (its quota is met) or advances past that arc, which
// the child has saturated or exhausted.
func (d *Dinic) augment(source, sink int) graph.Flow {
	g := d.g
	n := g.NumNodes()

	d.stack = append(d.stack[:0], dinicFrame{node: source, upper: math.MaxInt64})

	var delivered graph.Flow
	returning := false

	for len(d.stack) > 0 {
		top := len(d.stack) - 1
		f := &d.stack[top]
		u := f.node

		if returning {
			returning = false
			if delivered > 0 {
				g.Push(u, d.current[u], delivered)
				f.pushed += delivered
			}
			if f.pushed == f.upper {
				delivered = f.pushed
				d.stack = d.stack[:top]
				returning = true
				continue
			}
			d.current[u]++
		}

		if u == sink {
			d.stats.Augmentations++
			delivered = f.upper
			d.stack = d.stack[:top]
			returning = true
			continue
		}

		child := -1
		var childUpper graph.Flow
		for end := g.End(u); d.current[u] < end; d.current[u]++ {
			i := d.current[u]
			if g.IsAdmissible(u, i) {
				child = g.Head(i)
				childUpper = min(f.upper-f.pushed, g.Residual(i))
				break
			}
		}
		if child >= 0 {
			d.stack = append(d.stack, dinicFrame{node: child, upper: childUpper})
			continue
		}

		// No admissible arc left: u is useless for the rest of the phase.
		g.SetDistance(u, n)
		delivered = f.pushed
		d.stack = d.stack[:top]
		returning = true
	}

	return delivered
}
