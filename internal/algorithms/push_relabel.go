package algorithms

import (
	"bipflow/internal/graph"
)

// =============================================================================
// Push-Relabel FIFO Variant
// =============================================================================

// FIFOPushRelabel is the bipartite preflow-push solver that discharges
// active nodes in arrival order. It optionally runs global relabeling.
//
//	g := graph.New()
//	... AddEdge ...
//	solver := NewFIFOPushRelabel(numLeft, numRight, g)
//	solver.SetGlobalRelabelThreshold(4)
//	flow := solver.Solve(source, sink)
type FIFOPushRelabel struct {
	engine *preflowEngine
}

// NewFIFOPushRelabel creates a FIFO solver over g, finalizing it if needed.
// It panics unless 0 <= numLeft <= numRight.
func NewFIFOPushRelabel(numLeft, numRight int, g *graph.ResidualGraph) *FIFOPushRelabel {
	return &FIFOPushRelabel{
		engine: newPreflowEngine(numLeft, numRight, g, NewFIFOScheduler(0)),
	}
}

// SetGlobalRelabelThreshold makes the solver recompute exact labels after
// every alpha·n relabels. Zero disables global relabeling.
func (p *FIFOPushRelabel) SetGlobalRelabelThreshold(alpha int) {
	p.engine.alpha = max(alpha, 0)
}

// Solve computes the maximum flow from source to sink. The graph must be in
// its initial (reset) state; it holds the resulting flow afterwards.
func (p *FIFOPushRelabel) Solve(source, sink int) graph.Flow {
	return p.engine.run(source, sink)
}

// Stats returns the counters of the last Solve.
func (p *FIFOPushRelabel) Stats() PreflowStats {
	return p.engine.stats
}

// =============================================================================
// Push-Relabel Highest Label Variant
// =============================================================================

// HighestLabelPushRelabel is the bipartite preflow-push solver that always
// discharges an active node with the largest label.
type HighestLabelPushRelabel struct {
	engine *preflowEngine
}

// NewHighestLabelPushRelabel creates a highest-label solver over g,
// finalizing it if needed. It panics unless 0 <= numLeft <= numRight.
func NewHighestLabelPushRelabel(numLeft, numRight int, g *graph.ResidualGraph) *HighestLabelPushRelabel {
	return &HighestLabelPushRelabel{
		engine: newPreflowEngine(numLeft, numRight, g, NewHighestLabelScheduler(0)),
	}
}

// Solve computes the maximum flow from source to sink. The graph must be in
// its initial (reset) state.
func (p *HighestLabelPushRelabel) Solve(source, sink int) graph.Flow {
	return p.engine.run(source, sink)
}

// Stats returns the counters of the last Solve.
func (p *HighestLabelPushRelabel) Stats() PreflowStats {
	return p.engine.stats
}
