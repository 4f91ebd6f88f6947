package graph

// TopologyStatistics summarizes the shape of a graph.
type TopologyStatistics struct {
	NodeCount     int
	EdgeCount     int
	TotalCapacity Flow // capacity leaving the source
	AverageDegree float64
	MaxDegree     int
	MinDegree     int
	Density       float64
}

// FlowStatistics summarizes the flow currently stored in a graph.
type FlowStatistics struct {
	TotalFlow          Flow // flow leaving the source
	ActiveEdges        int
	SaturatedEdges     int
	ZeroFlowEdges      int
	AverageUtilization float64
	// Bottlenecks lists the saturated edges between interior nodes.
	Bottlenecks []int
}

// Topology computes degree and capacity statistics. Degrees count logical
// edges in both directions and skip isolated nodes.
func (g *ResidualGraph) Topology(source int) TopologyStatistics {
	stats := TopologyStatistics{
		NodeCount: g.NumNodes(),
		EdgeCount: g.NumEdges(),
	}

	degree := make([]int, g.NumNodes())
	for id := 0; id < g.NumEdges(); id++ {
		e := g.Edge(id)
		degree[e.From]++
		degree[e.To]++
		if e.From == source {
			stats.TotalCapacity += e.Capacity
		}
	}

	connected, total := 0, 0
	for _, d := range degree {
		if d == 0 {
			continue
		}
		if connected == 0 || d < stats.MinDegree {
			stats.MinDegree = d
		}
		if d > stats.MaxDegree {
			stats.MaxDegree = d
		}
		connected++
		total += d
	}
	if connected > 0 {
		stats.AverageDegree = float64(total) / float64(connected)
	}

	if n := stats.NodeCount; n > 1 {
		stats.Density = float64(stats.EdgeCount) / float64(n*(n-1))
	}

	return stats
}

// FlowStats computes utilization statistics of the current flow.
func (g *ResidualGraph) FlowStats(source, sink int) FlowStatistics {
	stats := FlowStatistics{Bottlenecks: make([]int, 0)}

	var utilization float64
	for id := 0; id < g.NumEdges(); id++ {
		e := g.Edge(id)
		if e.From == source {
			stats.TotalFlow += e.Flow
		}
		if e.Flow == 0 {
			stats.ZeroFlowEdges++
			continue
		}

		stats.ActiveEdges++
		utilization += float64(e.Flow) / float64(e.Capacity)

		if e.Flow == e.Capacity {
			stats.SaturatedEdges++
			if e.From != source && e.To != sink {
				stats.Bottlenecks = append(stats.Bottlenecks, id)
			}
		}
	}

	if stats.ActiveEdges > 0 {
		stats.AverageUtilization = utilization / float64(stats.ActiveEdges)
	}

	return stats
}
