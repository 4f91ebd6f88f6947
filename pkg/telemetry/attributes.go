package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	AttrInstanceName  = "instance.name"
	AttrInstanceHash  = "instance.hash"
	AttrGraphNodes    = "graph.nodes"
	AttrGraphEdges    = "graph.edges"
	AttrGraphLeft     = "graph.left_nodes"
	AttrGraphRight    = "graph.right_nodes"
	AttrAlgorithm     = "solver.algorithm"
	AttrMaxFlow       = "solver.max_flow"
	AttrDurationMs    = "solver.duration_ms"
	AttrPushes        = "solver.pushes"
	AttrRelabels      = "solver.relabels"
	AttrGaps          = "solver.gaps"
	AttrPhases        = "solver.phases"
	AttrCacheHit      = "cache.hit"
	AttrRunID         = "benchmark.run_id"
	AttrInstanceCount = "benchmark.instances"
	AttrWorkers       = "benchmark.workers"
)

// InstanceAttributes describes a benchmark instance.
func InstanceAttributes(name, hash string, nodes, edges, left, right int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrInstanceName, name),
		attribute.String(AttrInstanceHash, hash),
		attribute.Int(AttrGraphNodes, nodes),
		attribute.Int(AttrGraphEdges, edges),
		attribute.Int(AttrGraphLeft, left),
		attribute.Int(AttrGraphRight, right),
	}
}

// SolveAttributes describes one solver run.
func SolveAttributes(algorithm string, maxFlow int64, elapsed time.Duration) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAlgorithm, algorithm),
		attribute.Int64(AttrMaxFlow, maxFlow),
		attribute.Float64(AttrDurationMs, float64(elapsed.Microseconds())/1000),
	}
}

// PreflowAttributes carries the operation counts of a preflow run.
func PreflowAttributes(pushes, relabels, gaps int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrPushes, pushes),
		attribute.Int(AttrRelabels, relabels),
		attribute.Int(AttrGaps, gaps),
	}
}

// DinicAttributes carries the phase count of a Dinic run.
func DinicAttributes(phases int) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int(AttrPhases, phases)}
}

// CacheAttribute marks a result cache lookup.
func CacheAttribute(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// RunAttribute tags a span with a benchmark run id.
func RunAttribute(runID string) attribute.KeyValue {
	return attribute.String(AttrRunID, runID)
}

// SuiteAttributes describes a suite run.
func SuiteAttributes(instances, workers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrInstanceCount, instances),
		attribute.Int(AttrWorkers, workers),
	}
}
