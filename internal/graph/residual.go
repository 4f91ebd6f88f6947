// Package graph provides the residual network used by the max-flow solvers.
//
// The network is stored in compressed sparse row (CSR) form: after Finalize,
// all arcs leaving node u occupy the contiguous index range [Start(u), End(u))
// of a single arc slice. Every accepted logical edge produces a pair of arcs
// that reference each other through Arc.Rev.
//
// # Reverse Arc Encoding
//
// A logical edge (u, v, c) becomes:
//   - forward arc u→v with Capacity c and Flow 0
//   - reverse arc v→u with Capacity c and Flow c
//
// so the reverse arc starts with zero residual capacity. Pushing f units over
// the forward arc raises its Flow by f and lowers the reverse Flow by f; the
// pair invariant forward.Flow + reverse.Flow == c holds at every observable
// point.
//
// # Ownership
//
// A ResidualGraph is not safe for concurrent use. Solvers take exclusive
// ownership for one solve through Borrow; a second concurrent Borrow panics.
// To run several solvers in parallel, Clone the graph first.
package graph

import (
	"sync/atomic"

	"bipflow/pkg/apperror"
)

// Flow is the integral flow and capacity type.
type Flow = int64

// =============================================================================
// Edges and Arcs
// =============================================================================

// Edge is the caller's view of a logical edge.
type Edge struct {
	From     int
	To       int
	Flow     Flow
	Capacity Flow
}

// Arc is one half of a residual arc pair.
type Arc struct {
	// To is the head node.
	To int

	// Flow is the flow currently assigned to this arc, 0 <= Flow <= Capacity.
	Flow Flow

	// Capacity is the capacity of the logical edge the arc belongs to.
	Capacity Flow

	// Rev is the index of the paired arc.
	Rev int
}

// Residual returns the remaining capacity on the arc.
func (a *Arc) Residual() Flow {
	return a.Capacity - a.Flow
}

// =============================================================================
// Residual Graph
// =============================================================================

// ResidualGraph holds topology plus per-arc and per-node flow state.
//
// # Lifecycle
//
//  1. AddEdge any number of times.
//  2. Finalize once (further calls are no-ops).
//  3. Run a solver; Reset; run another solver on the same topology.
//
// # Example
//
//	g := graph.New()
//	g.AddEdge(0, 1, 3)
//	g.AddEdge(1, 2, 2)
//	g.Finalize()
//	g.Push(0, g.Start(0), 2)
type ResidualGraph struct {
	numNodes  int
	finalized bool

	// pending holds accepted edges until Finalize builds the arc layout.
	pending []Edge

	// edgeArc maps a logical edge id to its forward arc index.
	edgeArc []int
	tails   []int

	start []int
	arcs  []Arc

	excess []Flow
	dist   []int

	queue    *Queue
	borrowed atomic.Bool
}

// New creates an empty residual graph.
func New() *ResidualGraph {
	return &ResidualGraph{}
}

// NumNodes returns the node count: one more than the largest node index
// referenced by an accepted edge.
func (g *ResidualGraph) NumNodes() int {
	return g.numNodes
}

// NumEdges returns the number of accepted logical edges.
func (g *ResidualGraph) NumEdges() int {
	if g.finalized {
		return len(g.edgeArc)
	}
	return len(g.pending)
}

// NumArcs returns the number of residual arcs (twice the edge count after Finalize).
func (g *ResidualGraph) NumArcs() int {
	return len(g.arcs)
}

// IsFinalized reports whether Finalize has run.
func (g *ResidualGraph) IsFinalized() bool {
	return g.finalized
}

// =============================================================================
// Construction
// =============================================================================

// AddEdge registers the logical edge from→to with the given capacity and
// returns its edge id. Edges with capacity <= 0 are dropped: ok is false and
// nothing else happens.
//
// Negative node indices and calls after Finalize are programming errors and
// panic.
func (g *ResidualGraph) AddEdge(from, to int, capacity Flow) (id int, ok bool) {
	if g.finalized {
		apperror.Invariant(apperror.CodeGraphFinalized, "AddEdge(%d, %d) after Finalize", from, to)
	}
	if from < 0 || to < 0 {
		apperror.Invariant(apperror.CodeInvalidNode, "negative node index in edge (%d, %d)", from, to)
	}
	if capacity <= 0 {
		return -1, false
	}

	g.pending = append(g.pending, Edge{From: from, To: to, Capacity: capacity})
	g.numNodes = max(g.numNodes, max(from, to)+1)
	return len(g.pending) - 1, true
}

// EnsureNodes raises the node count to at least n, so that nodes which only
// appear on dropped edges (or on none) still get an index.
func (g *ResidualGraph) EnsureNodes(n int) {
	if g.finalized {
		apperror.Invariant(apperror.CodeGraphFinalized, "EnsureNodes(%d) after Finalize", n)
	}
	g.numNodes = max(g.numNodes, n)
}

// Finalize builds the CSR arc-pair layout from the accumulated edges in
// O(n + m). Arcs of a node keep the order in which their edges were added.
// Calling Finalize again is a no-op.
func (g *ResidualGraph) Finalize() {
	if g.finalized {
		return
	}
	g.finalized = true

	n, m := g.numNodes, len(g.pending)
	g.edgeArc = make([]int, m)
	g.tails = make([]int, m)
	g.start = make([]int, n+1)
	g.arcs = make([]Arc, 2*m)
	g.excess = make([]Flow, n)
	g.dist = make([]int, n)
	g.queue = NewQueue(n)
	for u := range g.dist {
		g.dist[u] = n
	}

	degree := make([]int, n)
	for _, e := range g.pending {
		degree[e.From]++
		degree[e.To]++
	}
	for u := 1; u <= n; u++ {
		g.start[u] = g.start[u-1] + degree[u-1]
	}

	counter := make([]int, n)
	for id, e := range g.pending {
		u, v := e.From, e.To
		if u == v {
			apperror.Invariant(apperror.CodeSelfLoop, "edge %d is a self-loop on node %d", id, u)
		}
		fwd := g.start[u] + counter[u]
		rev := g.start[v] + counter[v]
		counter[u]++
		counter[v]++

		g.arcs[fwd] = Arc{To: v, Flow: 0, Capacity: e.Capacity, Rev: rev}
		g.arcs[rev] = Arc{To: u, Flow: e.Capacity, Capacity: e.Capacity, Rev: fwd}
		g.edgeArc[id] = fwd
		g.tails[id] = u
	}

	g.pending = nil
}

// =============================================================================
// Access
// =============================================================================

// Start returns the index of the first arc leaving u.
func (g *ResidualGraph) Start(u int) int {
	return g.start[u]
}

// End returns one past the index of the last arc leaving u.
func (g *ResidualGraph) End(u int) int {
	return g.start[u+1]
}

// Arc returns a pointer to the arc at index i. Callers must not change
// Flow directly; use Push.
func (g *ResidualGraph) Arc(i int) *Arc {
	return &g.arcs[i]
}

// Arcs returns the arcs leaving u.
func (g *ResidualGraph) Arcs(u int) []Arc {
	return g.arcs[g.start[u]:g.start[u+1]]
}

// Head returns the head node of arc i.
func (g *ResidualGraph) Head(i int) int {
	return g.arcs[i].To
}

// Residual returns the residual capacity of arc i.
func (g *ResidualGraph) Residual(i int) Flow {
	return g.arcs[i].Capacity - g.arcs[i].Flow
}

// Excess returns the net inflow of u.
func (g *ResidualGraph) Excess(u int) Flow {
	return g.excess[u]
}

// Distance returns the current distance label of u.
func (g *ResidualGraph) Distance(u int) int {
	return g.dist[u]
}

// SetDistance overwrites the distance label of u.
func (g *ResidualGraph) SetDistance(u, d int) {
	g.dist[u] = d
}

// Edge returns logical edge id with its current flow.
func (g *ResidualGraph) Edge(id int) Edge {
	if !g.finalized {
		return g.pending[id]
	}
	a := &g.arcs[g.edgeArc[id]]
	return Edge{From: g.tails[id], To: a.To, Flow: a.Flow, Capacity: a.Capacity}
}

// Edges returns every logical edge in id order.
func (g *ResidualGraph) Edges() []Edge {
	edges := make([]Edge, g.NumEdges())
	for id := range edges {
		edges[id] = g.Edge(id)
	}
	return edges
}

// =============================================================================
// Flow Operations
// =============================================================================

// Push moves amount units of flow over arc i, which must leave u. The excess
// of u drops by amount and the excess of the head grows by amount; the
// paired arc is updated so the pair invariant holds.
//
// A push that would leave either arc outside [0, Capacity] is an algorithm
// defect and panics without modifying the graph.
func (g *ResidualGraph) Push(u, i int, amount Flow) {
	if amount == 0 {
		return
	}
	if i < g.start[u] || i >= g.start[u+1] {
		apperror.Invariant(apperror.CodeFlowViolation, "arc %d does not leave node %d", i, u)
	}

	a := &g.arcs[i]
	r := &g.arcs[a.Rev]
	fwd, bwd := a.Flow+amount, r.Flow-amount
	switch {
	case fwd > a.Capacity || bwd > r.Capacity:
		apperror.Invariant(apperror.CodeCapacityOverflow,
			"push of %d over arc %d (%d->%d) exceeds capacity %d", amount, i, u, a.To, a.Capacity)
	case fwd < 0 || bwd < 0:
		apperror.Invariant(apperror.CodeNegativeFlow,
			"push of %d over arc %d (%d->%d) drives flow negative", amount, i, u, a.To)
	}

	a.Flow = fwd
	r.Flow = bwd
	g.excess[u] -= amount
	g.excess[a.To] += amount
}

// IsAdmissible reports whether arc i leaving u has positive residual
// capacity and distance[u] == distance[head] + 1.
func (g *ResidualGraph) IsAdmissible(u, i int) bool {
	a := &g.arcs[i]
	return a.Capacity-a.Flow > 0 && g.dist[u] == g.dist[a.To]+1
}

// Reset returns the flow state to its initial value: forward arcs empty,
// reverse arcs full, no excess and every distance at the sentinel n.
// Topology is untouched.
func (g *ResidualGraph) Reset() {
	if !g.finalized {
		return
	}
	for _, fwd := range g.edgeArc {
		a := &g.arcs[fwd]
		a.Flow = 0
		g.arcs[a.Rev].Flow = g.arcs[a.Rev].Capacity
	}
	clear(g.excess)
	for u := range g.dist {
		g.dist[u] = g.numNodes
	}
	g.queue.Reset()
}

// =============================================================================
// Ownership
// =============================================================================

// Borrow takes exclusive ownership of the graph for one solve and returns
// the function that gives it back. Borrowing a graph that is already
// borrowed panics.
//
//	release := g.Borrow()
//	defer release()
func (g *ResidualGraph) Borrow() (release func()) {
	if !g.borrowed.CompareAndSwap(false, true) {
		apperror.Invariant(apperror.CodeGraphBorrowed, "graph is already borrowed by another solver")
	}
	return func() {
		g.borrowed.Store(false)
	}
}

// IsBorrowed reports whether a solver currently owns the graph.
func (g *ResidualGraph) IsBorrowed() bool {
	return g.borrowed.Load()
}

// Clone returns a deep copy of topology and flow state. The copy is not
// borrowed.
func (g *ResidualGraph) Clone() *ResidualGraph {
	c := &ResidualGraph{
		numNodes:  g.numNodes,
		finalized: g.finalized,
		pending:   append([]Edge(nil), g.pending...),
		edgeArc:   append([]int(nil), g.edgeArc...),
		tails:     append([]int(nil), g.tails...),
		start:     append([]int(nil), g.start...),
		arcs:      append([]Arc(nil), g.arcs...),
		excess:    append([]Flow(nil), g.excess...),
		dist:      append([]int(nil), g.dist...),
	}
	if g.finalized {
		c.queue = NewQueue(g.numNodes)
	}
	return c
}
