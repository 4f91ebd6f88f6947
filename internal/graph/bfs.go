package graph

// =============================================================================
// Queue Implementation
// =============================================================================

// Queue is a FIFO of node indices backed by a slice with a head pointer.
// Storage is reused between traversals.
type Queue struct {
	data []int
	head int
}

// NewQueue creates a queue with room for capacity elements.
func NewQueue(capacity int) *Queue {
	return &Queue{data: make([]int, 0, capacity)}
}

// Push appends v.
func (q *Queue) Push(v int) {
	q.data = append(q.data, v)
}

// Pop removes and returns the front element. Check Empty first.
func (q *Queue) Pop() int {
	v := q.data[q.head]
	q.head++
	return v
}

// Empty reports whether the queue has no elements.
func (q *Queue) Empty() bool {
	return q.head >= len(q.data)
}

// Len returns the number of queued elements.
func (q *Queue) Len() int {
	return len(q.data) - q.head
}

// Reset clears the queue, keeping its capacity.
func (q *Queue) Reset() {
	q.data = q.data[:0]
	q.head = 0
}

// =============================================================================
// Distance Labelling
// =============================================================================

// RecomputeDistances sets every distance label to the exact number of
// residual hops to sink, in O(n + m).
//
// The search runs backwards from sink. Scanning the arcs of a reached node v,
// an arc v→x that carries positive flow means its pair x→v has positive
// residual capacity, so x reaches sink through v. Nodes that cannot reach
// sink keep the sentinel NumNodes(). The source receives a label when
// reached but is never expanded, so paths through the source are ignored.
func (g *ResidualGraph) RecomputeDistances(source, sink int) {
	n := g.numNodes
	for u := range g.dist {
		g.dist[u] = n
	}
	g.dist[sink] = 0

	q := g.queue
	q.Reset()
	q.Push(sink)

	for !q.Empty() {
		v := q.Pop()
		next := g.dist[v] + 1
		for i := g.start[v]; i < g.start[v+1]; i++ {
			a := &g.arcs[i]
			if a.Flow > 0 && g.dist[a.To] > next {
				g.dist[a.To] = next
				if a.To != source {
					q.Push(a.To)
				}
			}
		}
	}
}
