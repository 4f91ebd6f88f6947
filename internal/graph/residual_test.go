package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bipflow/pkg/apperror"
)

// diamond: 0 -> 1 -> 3 (3), 0 -> 2 -> 3 (4)
func buildDiamond(t *testing.T) *ResidualGraph {
	t.Helper()
	g := New()
	for _, e := range []Edge{
		{From: 0, To: 1, Capacity: 3},
		{From: 0, To: 2, Capacity: 4},
		{From: 1, To: 3, Capacity: 3},
		{From: 2, To: 3, Capacity: 4},
	} {
		_, ok := g.AddEdge(e.From, e.To, e.Capacity)
		require.True(t, ok)
	}
	g.Finalize()
	return g
}

func assertPairInvariant(t *testing.T, g *ResidualGraph) {
	t.Helper()
	for i := 0; i < g.NumArcs(); i++ {
		a := g.Arc(i)
		assert.GreaterOrEqual(t, a.Flow, Flow(0), "arc %d", i)
		assert.LessOrEqual(t, a.Flow, a.Capacity, "arc %d", i)
		assert.Equal(t, a.Capacity, a.Flow+g.Arc(a.Rev).Flow, "pair of arc %d", i)
	}
}

func TestResidualGraph_AddEdge(t *testing.T) {
	tests := []struct {
		name      string
		from, to  int
		capacity  Flow
		wantOK    bool
		wantNodes int
	}{
		{name: "positive capacity", from: 0, to: 1, capacity: 5, wantOK: true, wantNodes: 2},
		{name: "extends node count", from: 7, to: 2, capacity: 1, wantOK: true, wantNodes: 8},
		{name: "zero capacity dropped", from: 0, to: 9, capacity: 0, wantOK: false, wantNodes: 0},
		{name: "negative capacity dropped", from: 0, to: 9, capacity: -3, wantOK: false, wantNodes: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			id, ok := g.AddEdge(tt.from, tt.to, tt.capacity)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantNodes, g.NumNodes())
			if ok {
				assert.Equal(t, 0, id)
				assert.Equal(t, 1, g.NumEdges())
			} else {
				assert.Equal(t, -1, id)
				assert.Equal(t, 0, g.NumEdges())
			}
		})
	}
}

func TestResidualGraph_AddEdge_IDsAreDense(t *testing.T) {
	g := New()
	id0, _ := g.AddEdge(0, 1, 1)
	_, ok := g.AddEdge(1, 2, 0)
	id1, _ := g.AddEdge(1, 2, 2)

	assert.False(t, ok)
	assert.Equal(t, 0, id0)
	assert.Equal(t, 1, id1)
}

func TestResidualGraph_AddEdge_Panics(t *testing.T) {
	t.Run("negative node", func(t *testing.T) {
		assert.Panics(t, func() { New().AddEdge(-1, 2, 3) })
	})

	t.Run("after finalize", func(t *testing.T) {
		g := New()
		g.AddEdge(0, 1, 1)
		g.Finalize()

		defer func() {
			err, ok := recover().(*apperror.Error)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeGraphFinalized, err.Code)
		}()
		g.AddEdge(1, 2, 1)
	})
}

func TestResidualGraph_EnsureNodes(t *testing.T) {
	g := New()
	g.AddEdge(0, 1, 2)
	g.AddEdge(1, 5, 0) // dropped, node 5 unknown so far

	g.EnsureNodes(6)
	g.EnsureNodes(3)
	g.Finalize()

	assert.Equal(t, 6, g.NumNodes())
	assert.Equal(t, g.NumNodes(), g.Distance(5))
	assert.Empty(t, g.Arcs(5))
	assert.Panics(t, func() { g.EnsureNodes(10) })
}

func TestResidualGraph_Finalize(t *testing.T) {
	g := buildDiamond(t)

	assert.True(t, g.IsFinalized())
	assert.Equal(t, 4, g.NumNodes())
	assert.Equal(t, 4, g.NumEdges())
	assert.Equal(t, 8, g.NumArcs())

	// Each node's arcs are contiguous and their count is the node degree.
	degrees := []int{2, 2, 2, 2}
	for u, d := range degrees {
		assert.Equal(t, d, g.End(u)-g.Start(u), "node %d", u)
		assert.Len(t, g.Arcs(u), d)
	}

	// Forward arcs start empty, reverse arcs start full.
	for id := 0; id < g.NumEdges(); id++ {
		e := g.Edge(id)
		assert.Equal(t, Flow(0), e.Flow)
	}
	for u := 0; u < g.NumNodes(); u++ {
		for i := g.Start(u); i < g.End(u); i++ {
			a := g.Arc(i)
			assert.Equal(t, u, g.Arc(a.Rev).To)
			assert.Equal(t, i, g.Arc(a.Rev).Rev)
		}
	}
	assertPairInvariant(t, g)
}

func TestResidualGraph_Finalize_Idempotent(t *testing.T) {
	g := buildDiamond(t)
	arcs := append([]Arc(nil), g.arcs...)

	g.Finalize()

	assert.Equal(t, arcs, g.arcs)
}

func TestResidualGraph_Finalize_KeepsInsertionOrder(t *testing.T) {
	g := New()
	g.AddEdge(0, 3, 1)
	g.AddEdge(0, 1, 2)
	g.AddEdge(2, 0, 3)
	g.Finalize()

	heads := []int{}
	for _, a := range g.Arcs(0) {
		heads = append(heads, a.To)
	}
	assert.Equal(t, []int{3, 1, 2}, heads)
}

func TestResidualGraph_Finalize_SelfLoopPanics(t *testing.T) {
	g := New()
	g.AddEdge(1, 1, 4)

	assert.Panics(t, g.Finalize)
}

func TestResidualGraph_Push(t *testing.T) {
	g := buildDiamond(t)
	arc := g.Start(0) // 0 -> 1

	g.Push(0, arc, 2)

	assert.Equal(t, Flow(2), g.Arc(arc).Flow)
	assert.Equal(t, Flow(1), g.Residual(arc))
	assert.Equal(t, Flow(2), g.Residual(g.Arc(arc).Rev))
	assert.Equal(t, Flow(-2), g.Excess(0))
	assert.Equal(t, Flow(2), g.Excess(1))
	assertPairInvariant(t, g)

	// Cancel one unit through the reverse arc.
	g.Push(1, g.Arc(arc).Rev, 1)
	assert.Equal(t, Flow(1), g.Arc(arc).Flow)
	assert.Equal(t, Flow(-1), g.Excess(0))
	assert.Equal(t, Flow(1), g.Excess(1))
	assertPairInvariant(t, g)
}

func TestResidualGraph_Push_ZeroIsNoop(t *testing.T) {
	g := buildDiamond(t)
	g.Push(0, g.Start(0), 0)

	assert.Equal(t, Flow(0), g.Excess(1))
}

func TestResidualGraph_Push_Violations(t *testing.T) {
	tests := []struct {
		name string
		push func(g *ResidualGraph)
		code apperror.ErrorCode
	}{
		{
			name: "over capacity",
			push: func(g *ResidualGraph) { g.Push(0, g.Start(0), 4) },
			code: apperror.CodeCapacityOverflow,
		},
		{
			name: "reverse arc without flow",
			push: func(g *ResidualGraph) { g.Push(1, g.Arc(g.Start(0)).Rev, 1) },
			code: apperror.CodeCapacityOverflow,
		},
		{
			name: "negative amount",
			push: func(g *ResidualGraph) { g.Push(0, g.Start(0), -1) },
			code: apperror.CodeNegativeFlow,
		},
		{
			name: "arc of another node",
			push: func(g *ResidualGraph) { g.Push(3, g.Start(0), 1) },
			code: apperror.CodeFlowViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildDiamond(t)
			before := append([]Arc(nil), g.arcs...)

			func() {
				defer func() {
					err, ok := recover().(*apperror.Error)
					require.True(t, ok, "expected *apperror.Error panic")
					assert.Equal(t, tt.code, err.Code)
					assert.Equal(t, apperror.SeverityCritical, err.Severity)
				}()
				tt.push(g)
			}()

			assert.Equal(t, before, g.arcs, "failed push must not modify arcs")
		})
	}
}

func TestResidualGraph_IsAdmissible(t *testing.T) {
	g := buildDiamond(t)
	g.RecomputeDistances(0, 3)
	arc01 := g.Start(0)

	assert.False(t, g.IsAdmissible(0, arc01), "no flow yet: distances are sentinel")

	g.Push(0, arc01, 1)
	g.Push(1, g.Start(1)+1, 1) // 1 -> 3
	g.RecomputeDistances(0, 3)

	assert.Equal(t, 1, g.Distance(1))
	assert.Equal(t, 2, g.Distance(0))
	assert.True(t, g.IsAdmissible(0, arc01))

	g.SetDistance(1, 5)
	assert.False(t, g.IsAdmissible(0, arc01))
}

func TestResidualGraph_Reset(t *testing.T) {
	g := buildDiamond(t)
	g.Push(0, g.Start(0), 3)
	g.Push(1, g.Start(1)+1, 3)
	g.RecomputeDistances(0, 3)

	g.Reset()

	for id := 0; id < g.NumEdges(); id++ {
		assert.Equal(t, Flow(0), g.Edge(id).Flow)
	}
	for u := 0; u < g.NumNodes(); u++ {
		assert.Equal(t, Flow(0), g.Excess(u))
		assert.Equal(t, g.NumNodes(), g.Distance(u))
	}
	assertPairInvariant(t, g)
	assert.Equal(t, 8, g.NumArcs())
}

func TestResidualGraph_Edges(t *testing.T) {
	g := New()
	g.AddEdge(4, 2, 7)
	assert.Equal(t, []Edge{{From: 4, To: 2, Capacity: 7}}, g.Edges())

	g.Finalize()
	g.Push(4, g.Start(4), 5)
	assert.Equal(t, []Edge{{From: 4, To: 2, Flow: 5, Capacity: 7}}, g.Edges())
}

func TestResidualGraph_Clone(t *testing.T) {
	g := buildDiamond(t)
	g.Push(0, g.Start(0), 2)

	c := g.Clone()
	c.Push(1, g.Start(1)+1, 2)

	assert.Equal(t, Flow(2), g.Excess(1), "original must not see clone pushes")
	assert.Equal(t, Flow(0), c.Excess(1))
	assert.Equal(t, Flow(2), c.Excess(3))
	assert.Equal(t, g.NumArcs(), c.NumArcs())
}

func TestResidualGraph_Borrow(t *testing.T) {
	g := buildDiamond(t)

	release := g.Borrow()
	assert.True(t, g.IsBorrowed())
	assert.Panics(t, func() { g.Borrow() })

	release()
	assert.False(t, g.IsBorrowed())
	assert.NotPanics(t, func() { g.Borrow()() })
}

func TestResidualGraph_Borrow_Concurrent(t *testing.T) {
	g := buildDiamond(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = recover() }()
			<-start
			g.Borrow()
			mu.Lock()
			granted++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, granted, "exactly one goroutine may own the graph")
}
