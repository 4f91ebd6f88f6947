package algorithms

import (
	"bipflow/internal/graph"
	"bipflow/pkg/apperror"
)

// =============================================================================
// Excess Return
// =============================================================================
//
// When the active-node loop ends, nodes cut off from the sink may still hold
// excess. Every such unit arrived from the source, so a residual path back
// to the source exists. returnExcess pushes the excess along such paths until
// every interior node is balanced. The sink is never traversed, so the flow
// value is unchanged.
// =============================================================================

// returnExcess drains every interior node back to the source.
func (e *preflowEngine) returnExcess() {
	g := e.g
	e.resetCurrent()

	for u := 0; u < e.n; u++ {
		if u == e.source || u == e.sink {
			continue
		}
		for g.Excess(u) > 0 {
			delta := e.returnPath(u)
			if delta == 0 {
				// Current arcs persist between searches and may have moved
				// past arcs that are usable again; search once more from the
				// first arc of every node.
				e.resetCurrent()
				delta = e.returnPath(u)
			}
			if delta == 0 {
				apperror.Invariant(apperror.CodeExcessNotDrained,
					"node %d keeps excess %d with no residual path to source %d", u, g.Excess(u), e.source)
			}
			e.stats.ReturnedExcess += delta
		}
	}
}

// returnPath searches a residual path from u to the source with an explicit
// stack, starting every node at its current arc, and pushes as much of u's
// excess along it as the path allows. It returns the amount pushed, or 0 if
// no path was found.
func (e *preflowEngine) returnPath(u int) graph.Flow {
	g := e.g

	e.stamp++
	e.mark[u] = e.stamp
	e.stack = append(e.stack[:0], u)
	e.path = e.path[:0]

	for len(e.stack) > 0 {
		x := e.stack[len(e.stack)-1]

		if x == e.source {
			delta := g.Excess(u)
			for _, a := range e.path {
				delta = min(delta, g.Residual(a))
			}
			node := u
			for _, a := range e.path {
				g.Push(node, a, delta)
				node = g.Head(a)
			}
			return delta
		}

		descended := false
		for end := g.End(x); e.current[x] < end; e.current[x]++ {
			a := e.current[x]
			y := g.Head(a)
			if y == e.sink || e.mark[y] == e.stamp || g.Residual(a) == 0 {
				continue
			}
			e.mark[y] = e.stamp
			e.path = append(e.path, a)
			e.stack = append(e.stack, y)
			descended = true
			break
		}
		if descended {
			continue
		}

		// x is a dead end: drop it and move the parent past the arc to x.
		e.stack = e.stack[:len(e.stack)-1]
		if len(e.path) > 0 {
			e.path = e.path[:len(e.path)-1]
			e.current[e.stack[len(e.stack)-1]]++
		}
	}
	return 0
}
