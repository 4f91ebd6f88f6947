package graph

import (
	"bipflow/pkg/apperror"
)

// ValidateFlow checks the state left behind by a solver:
//   - every arc satisfies 0 <= Flow <= Capacity
//   - every arc pair satisfies forward.Flow + reverse.Flow == Capacity
//   - the recorded excess of every node equals its net inflow
//   - every node other than source and sink has zero excess
//   - the flow leaving source equals the flow entering sink
//
// The first violation is returned as a critical *apperror.Error.
func (g *ResidualGraph) ValidateFlow(source, sink int) error {
	if !g.finalized {
		return apperror.New(apperror.CodeGraphNotFinal, "graph is not finalized")
	}

	v := apperror.NewValidationErrors()
	for i := range g.arcs {
		a := &g.arcs[i]
		if a.Flow < 0 {
			v.Add(apperror.NewCritical(apperror.CodeNegativeFlow, "negative flow on arc").
				WithDetails("arc", i).WithDetails("flow", a.Flow))
		}
		if a.Flow > a.Capacity {
			v.Add(apperror.NewCritical(apperror.CodeCapacityOverflow, "flow exceeds capacity").
				WithDetails("arc", i).WithDetails("flow", a.Flow).WithDetails("capacity", a.Capacity))
		}
		if a.Flow+g.arcs[a.Rev].Flow != a.Capacity {
			v.Add(apperror.NewCritical(apperror.CodePairViolation, "arc pair does not sum to capacity").
				WithDetails("arc", i).WithDetails("rev", a.Rev))
		}
	}

	net := make([]Flow, g.numNodes)
	for id, fwd := range g.edgeArc {
		f := g.arcs[fwd].Flow
		net[g.tails[id]] -= f
		net[g.arcs[fwd].To] += f
	}
	for u := 0; u < g.numNodes; u++ {
		if net[u] != g.excess[u] {
			v.Add(apperror.NewCritical(apperror.CodeFlowViolation, "excess bookkeeping differs from net inflow").
				WithDetails("node", u).WithDetails("excess", g.excess[u]).WithDetails("net", net[u]))
		}
		if u != source && u != sink && net[u] != 0 {
			v.Add(apperror.NewCritical(apperror.CodeConservationViolation, "node is not balanced").
				WithDetails("node", u).WithDetails("net", net[u]))
		}
	}
	if source != sink && -net[source] != net[sink] {
		v.Add(apperror.NewCritical(apperror.CodeConservationViolation, "source outflow differs from sink inflow").
			WithDetails("outflow", -net[source]).WithDetails("inflow", net[sink]))
	}

	return v.First()
}

// ValidateMaxFlow runs ValidateFlow and then checks maximality: sink must
// be unreachable from source in the residual network, and the capacity of
// the cut separating the reachable set equals the flow value.
func (g *ResidualGraph) ValidateMaxFlow(source, sink int) error {
	if err := g.ValidateFlow(source, sink); err != nil {
		return err
	}
	if source == sink || g.numNodes == 0 {
		return nil
	}

	side := g.SourceSide(source)
	if side[sink] {
		return apperror.NewCritical(apperror.CodeFlowViolation, "sink is still reachable from source").
			WithDetails("flow", g.excess[sink])
	}
	if c := g.CutCapacity(side); c != g.excess[sink] {
		return apperror.NewCritical(apperror.CodeFlowViolation, "cut capacity differs from flow value").
			WithDetails("cut", c).WithDetails("flow", g.excess[sink])
	}
	return nil
}

// SourceSide marks every node reachable from source over arcs with positive
// residual capacity. After a maximum flow this is the source side of a
// minimum cut.
func (g *ResidualGraph) SourceSide(source int) []bool {
	seen := make([]bool, g.numNodes)
	q := NewQueue(g.numNodes)
	seen[source] = true
	q.Push(source)
	for !q.Empty() {
		u := q.Pop()
		for i := g.start[u]; i < g.start[u+1]; i++ {
			a := &g.arcs[i]
			if !seen[a.To] && a.Capacity-a.Flow > 0 {
				seen[a.To] = true
				q.Push(a.To)
			}
		}
	}
	return seen
}

// CutCapacity sums the capacity of logical edges leaving the marked side.
func (g *ResidualGraph) CutCapacity(side []bool) Flow {
	var total Flow
	for id, fwd := range g.edgeArc {
		a := &g.arcs[fwd]
		if side[g.tails[id]] && !side[a.To] {
			total += a.Capacity
		}
	}
	return total
}
