package algorithms

import (
	"bipflow/internal/graph"
	"bipflow/pkg/apperror"
)

// =============================================================================
// Bipartite Preflow-Push Engine
// =============================================================================
//
// The engine specialises push-relabel to bipartite networks
// source → left → right → sink (with residual arcs back again):
//
//   - Discharge pushes two hops at a time, u → v → w, so excess only ever
//     rests on nodes of one partition.
//   - Labels are bounded by 2·L: a useful alternating path visits each left
//     node at most once. The source is pinned at 2·L and any label that
//     would exceed the bound is replaced by the sentinel n.
//   - Gap relabeling lifts every node at or above a vacated level to n.
//   - Global relabeling (optional) recomputes exact labels after α·n
//     relabels.
//
// Excess that cannot reach the sink is returned to the source by a
// post-pass (see excess.go), turning the final preflow into a flow.
//
// Time Complexity: O(L²·m) pushes for the FIFO schedule
// Space Complexity: O(n + m)
// =============================================================================

// PreflowStats counts the work done by one preflow-push run.
type PreflowStats struct {
	Pushes         int
	Relabels       int
	Gaps           int
	GlobalRelabels int
	// Discarded counts popped nodes whose label left the live range.
	Discarded int
	// ReturnedExcess is the total excess routed back to the source.
	ReturnedExcess graph.Flow
}

// preflowEngine holds the state shared by the FIFO and highest-label
// variants; only the Scheduler differs.
type preflowEngine struct {
	g        *graph.ResidualGraph
	numLeft  int
	numRight int
	sched    Scheduler

	// alpha triggers a global relabel after alpha·n relabels; 0 disables it.
	alpha int

	source int
	sink   int
	n      int
	bound  int

	current []int
	hist    []int // hist[d] = non-source nodes with label d, d in 0..n

	relabelsSinceGlobal int

	// excess return scratch
	mark  []int
	stamp int
	stack []int
	path  []int

	// onGap is called after every gap event with the vacated level.
	onGap func(level int)
	// onDischarge is called with every node right before it is discharged.
	onDischarge func(u int)

	stats PreflowStats
}

func newPreflowEngine(numLeft, numRight int, g *graph.ResidualGraph, sched Scheduler) *preflowEngine {
	if numLeft < 0 || numRight < 0 || numLeft > numRight {
		apperror.Invariant(apperror.CodeInvalidPartition,
			"bipartite solver needs 0 <= left <= right, got left=%d right=%d", numLeft, numRight)
	}
	if g == nil {
		apperror.Invariant(apperror.CodeNilInput, "bipartite solver needs a graph")
	}
	g.Finalize()
	return &preflowEngine{
		g:        g,
		numLeft:  numLeft,
		numRight: numRight,
		sched:    sched,
	}
}

// run computes a maximum flow from source to sink on a freshly reset graph.
func (e *preflowEngine) run(source, sink int) graph.Flow {
	release := e.g.Borrow()
	defer release()
	return e.solve(source, sink)
}

// solve runs the engine on a graph the caller has already borrowed.
func (e *preflowEngine) solve(source, sink int) graph.Flow {
	g := e.g
	e.stats = PreflowStats{}
	if source == sink || g.NumNodes() == 0 || g.NumEdges() == 0 {
		return 0
	}
	checkTerminals(g, source, sink)

	e.prepare(source, sink)

	for {
		u, ok := e.sched.PopNext()
		if !ok {
			break
		}
		if !e.live(u) {
			e.stats.Discarded++
			continue
		}
		if g.Excess(u) <= 0 {
			continue
		}

		if e.onDischarge != nil {
			e.onDischarge(u)
		}
		e.discharge(u)

		if e.alpha > 0 && e.relabelsSinceGlobal > e.alpha*e.n {
			e.globalRelabel()
		}
	}

	e.returnExcess()
	return g.Excess(sink)
}

// prepare builds the initial preflow and schedules its active nodes.
func (e *preflowEngine) prepare(source, sink int) {
	g := e.g
	e.source, e.sink = source, sink
	e.n = g.NumNodes()
	e.bound = 2 * e.numLeft
	e.relabelsSinceGlobal = 0

	if len(e.current) != e.n {
		e.current = make([]int, e.n)
		e.hist = make([]int, e.n+1)
		e.mark = make([]int, e.n)
		e.stamp = 0
	}
	e.sched.Reset(e.n)

	e.relabelFromSink()

	for i := g.Start(source); i < g.End(source); i++ {
		if r := g.Residual(i); r > 0 {
			g.Push(source, i, r)
			e.stats.Pushes++
		}
	}
	for u := 0; u < e.n; u++ {
		e.enqueue(u)
	}
}

// relabelFromSink replaces every label with its exact residual distance,
// clamped to the bipartite bound, pins the source, rebuilds the histogram
// and rewinds every current arc.
func (e *preflowEngine) relabelFromSink() {
	g := e.g
	g.RecomputeDistances(e.source, e.sink)

	clear(e.hist)
	for u := 0; u < e.n; u++ {
		if u == e.source {
			continue
		}
		d := g.Distance(u)
		if d > e.bound && d < e.n {
			d = e.n
			g.SetDistance(u, d)
		}
		e.hist[d]++
	}
	g.SetDistance(e.source, e.bound)
	e.resetCurrent()
}

func (e *preflowEngine) resetCurrent() {
	for u := 0; u < e.n; u++ {
		e.current[u] = e.g.Start(u)
	}
}

// live reports whether u may still route excess to the sink.
func (e *preflowEngine) live(u int) bool {
	d := e.g.Distance(u)
	return d <= e.bound && d < e.n
}

// enqueue schedules u when it is an interior node with positive excess and
// a live label.
func (e *preflowEngine) enqueue(u int) {
	if u == e.source || u == e.sink || e.sched.IsScheduled(u) {
		return
	}
	if e.g.Excess(u) <= 0 || !e.live(u) {
		return
	}
	e.sched.Enqueue(u, e.g.Distance(u))
}

// =============================================================================
// Discharge
// =============================================================================

// discharge makes one pass over the arcs of u starting at its current arc,
// pushing excess two hops at a time. If u still has excess when its arcs are
// exhausted it is relabeled (or a gap is opened) and rescheduled.
func (e *preflowEngine) discharge(u int) {
	g := e.g
	end := g.End(u)

	for i := e.current[u]; i < end; i++ {
		e.current[u] = i
		if !g.IsAdmissible(u, i) {
			continue
		}
		v := g.Head(i)

		if v == e.sink {
			g.Push(u, i, min(g.Excess(u), g.Residual(i)))
			e.stats.Pushes++
			if g.Excess(u) == 0 {
				e.current[u] = g.Start(u)
				return
			}
			continue
		}

		vEnd := g.End(v)
		exhausted := true
		for j := e.current[v]; j < vEnd; j++ {
			e.current[v] = j
			if !g.IsAdmissible(v, j) {
				continue
			}
			w := g.Head(j)

			delta := min(g.Excess(u), g.Residual(i), g.Residual(j))
			g.Push(u, i, delta)
			g.Push(v, j, delta)
			e.stats.Pushes += 2
			e.enqueue(w)

			if g.Excess(u) == 0 {
				e.current[u] = g.Start(u)
				return
			}
			if g.Residual(i) == 0 {
				exhausted = false
				break
			}
		}

		if exhausted {
			// v has no admissible arc left; its label must rise before u
			// can use arc i again.
			e.relabelOrGap(v)
			e.current[v] = g.Start(v)

			// A gap at v's level also cuts off u.
			if !e.live(u) {
				e.current[u] = g.Start(u)
				return
			}
		}
	}

	e.relabelOrGap(u)
	e.current[u] = g.Start(u)
	e.enqueue(u)
}

// =============================================================================
// Relabeling
// =============================================================================

// relabelOrGap lifts the label of u. If u is the only node on its level the
// whole level and everything above it is cut off instead.
func (e *preflowEngine) relabelOrGap(u int) {
	if d := e.g.Distance(u); e.hist[d] == 1 {
		e.gap(d)
		return
	}
	e.relabel(u)
}

// relabel sets u to one more than the lowest label reachable over a residual
// arc. The new label must be strictly higher than the old one.
func (e *preflowEngine) relabel(u int) {
	g := e.g
	old := g.Distance(u)

	next := e.n
	for i := g.Start(u); i < g.End(u); i++ {
		if g.Residual(i) > 0 {
			next = min(next, g.Distance(g.Head(i))+1)
		}
	}
	next = min(next, e.n)
	if next <= old {
		apperror.Invariant(apperror.CodeRelabelNotIncreasing,
			"relabel of node %d did not raise its label (%d -> %d)", u, old, next)
	}
	if next > e.bound {
		next = e.n
	}

	e.hist[old]--
	e.hist[next]++
	g.SetDistance(u, next)

	e.stats.Relabels++
	e.relabelsSinceGlobal++
}

// gap lifts every non-source node with label >= k to the sentinel n.
func (e *preflowEngine) gap(k int) {
	g := e.g
	for u := 0; u < e.n; u++ {
		if u == e.source {
			continue
		}
		if d := g.Distance(u); d >= k && d < e.n {
			e.hist[d]--
			e.hist[e.n]++
			g.SetDistance(u, e.n)
		}
	}
	e.stats.Gaps++
	if e.onGap != nil {
		e.onGap(k)
	}
}

// globalRelabel recomputes exact labels and reschedules every live node that
// still holds excess.
func (e *preflowEngine) globalRelabel() {
	e.relabelFromSink()
	e.relabelsSinceGlobal = 0
	e.stats.GlobalRelabels++
	for u := 0; u < e.n; u++ {
		e.enqueue(u)
	}
}

// checkTerminals panics when source or sink is not a node of g.
func checkTerminals(g *graph.ResidualGraph, source, sink int) {
	n := g.NumNodes()
	if source < 0 || source >= n {
		apperror.Invariant(apperror.CodeInvalidSource, "source %d out of range [0, %d)", source, n)
	}
	if sink < 0 || sink >= n {
		apperror.Invariant(apperror.CodeInvalidSink, "sink %d out of range [0, %d)", sink, n)
	}
}
