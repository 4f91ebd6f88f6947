// Package algorithms provides the maximum-flow solvers for bipartite
// networks: Dinic's blocking-flow algorithm and two bipartite preflow-push
// variants that differ only in how they schedule active nodes (FIFO and
// highest label).
//
// # Ownership
//
// A solver borrows its graph for the duration of Solve; two solvers must not
// run on the same graph at once. The graph must be reset between solves. Use
// ResidualGraph.Clone to solve copies concurrently.
//
// # Determinism
//
// All solvers scan arcs in insertion order and produce the same flow
// assignment for the same input.
//
// # Example Usage
//
//	g := graph.New()
//	g.AddEdge(0, 1, 10)
//	g.AddEdge(1, 2, 5)
//
//	opts := algorithms.DefaultSolverOptions().
//	    WithAlgorithm(algorithms.AlgorithmDinic)
//	result, err := algorithms.Solve(g, 0, 2, opts)
//	if err != nil {
//	    log.Printf("Error: %v", err)
//	} else {
//	    log.Printf("Max flow: %d", result.MaxFlow)
//	}
package algorithms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bipflow/internal/graph"
	"bipflow/pkg/apperror"
)

// =============================================================================
// Error Definitions
// =============================================================================

// Standard errors returned by solver operations.
// These errors can be checked using errors.Is() for robust error handling.
var (
	// ErrNilGraph indicates that a nil graph was passed to a solver function.
	ErrNilGraph = errors.New("graph is nil")

	// ErrSourceOutOfRange indicates that the source is not a node of the graph.
	ErrSourceOutOfRange = errors.New("source node out of range")

	// ErrSinkOutOfRange indicates that the sink is not a node of the graph.
	ErrSinkOutOfRange = errors.New("sink node out of range")

	// ErrInvalidPartitions indicates partition sizes with left > right or a
	// negative size.
	ErrInvalidPartitions = errors.New("invalid partition sizes")

	// ErrUnknownAlgorithm indicates an algorithm name that is not registered.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrFlowMismatch indicates that solvers disagree on the flow value.
	ErrFlowMismatch = apperror.New(apperror.CodeFlowMismatch, "solvers disagree on the maximum flow")
)

// =============================================================================
// Algorithms
// =============================================================================

// Algorithm names a solver.
type Algorithm string

const (
	AlgorithmFIFO         Algorithm = "fifo"
	AlgorithmHighestLabel Algorithm = "highest_label"
	AlgorithmDinic        Algorithm = "dinic"
)

// AllAlgorithms lists the solvers in the order the benchmark runs them.
var AllAlgorithms = []Algorithm{AlgorithmFIFO, AlgorithmHighestLabel, AlgorithmDinic}

// String returns the algorithm name.
func (a Algorithm) String() string {
	return string(a)
}

// IsPreflow reports whether a is one of the bipartite preflow-push variants.
func (a Algorithm) IsPreflow() bool {
	return a == AlgorithmFIFO || a == AlgorithmHighestLabel
}

// ParseAlgorithm converts a user supplied name. Matching is case-insensitive
// and accepts the short forms "hl" and "highest-label".
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo", "fifo_push_relabel", "push_relabel":
		return AlgorithmFIFO, nil
	case "highest_label", "highest-label", "hl":
		return AlgorithmHighestLabel, nil
	case "dinic":
		return AlgorithmDinic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// =============================================================================
// Solver Options
// =============================================================================

// SolverOptions configures Solve.
//
// Options can be chained using the builder pattern:
//
//	opts := DefaultSolverOptions().
//	    WithAlgorithm(AlgorithmHighestLabel).
//	    WithPartitions(100, 250)
type SolverOptions struct {
	// Algorithm selects the solver.
	// Default: AlgorithmFIFO
	Algorithm Algorithm

	// NumLeft and NumRight are the partition sizes used by the preflow-push
	// variants. When both are zero the partitions are unknown and the
	// bipartite bound is relaxed to the node count.
	NumLeft  int
	NumRight int

	// GlobalRelabelAlpha enables global relabeling for the FIFO variant
	// after alpha·n relabels. Zero disables it.
	// Default: 0
	GlobalRelabelAlpha int

	// Validate checks the resulting flow (capacity, conservation, minimum
	// cut) after solving.
	// Default: true
	Validate bool
}

// DefaultSolverOptions returns options for the FIFO variant with validation.
func DefaultSolverOptions() *SolverOptions {
	return &SolverOptions{
		Algorithm: AlgorithmFIFO,
		Validate:  true,
	}
}

// WithAlgorithm sets the solver and returns the options for chaining.
func (o *SolverOptions) WithAlgorithm(a Algorithm) *SolverOptions {
	o.Algorithm = a
	return o
}

// WithPartitions sets the partition sizes and returns the options for chaining.
func (o *SolverOptions) WithPartitions(numLeft, numRight int) *SolverOptions {
	o.NumLeft = numLeft
	o.NumRight = numRight
	return o
}

// WithGlobalRelabelAlpha sets the global relabel threshold and returns the
// options for chaining.
func (o *SolverOptions) WithGlobalRelabelAlpha(alpha int) *SolverOptions {
	o.GlobalRelabelAlpha = alpha
	return o
}

// WithValidation toggles flow validation and returns the options for chaining.
func (o *SolverOptions) WithValidation(validate bool) *SolverOptions {
	o.Validate = validate
	return o
}

// clone returns a copy so Solve never mutates caller options.
func (o *SolverOptions) clone() *SolverOptions {
	c := *o
	return &c
}

// =============================================================================
// Solver Result
// =============================================================================

// Stats merges the counters of all solvers; fields that do not apply to the
// solver that ran stay zero.
type Stats struct {
	Phases         int
	Augmentations  int
	Pushes         int
	Relabels       int
	Gaps           int
	GlobalRelabels int
	Discarded      int
	ReturnedExcess graph.Flow
}

func statsFromPreflow(s PreflowStats) Stats {
	return Stats{
		Pushes:         s.Pushes,
		Relabels:       s.Relabels,
		Gaps:           s.Gaps,
		GlobalRelabels: s.GlobalRelabels,
		Discarded:      s.Discarded,
		ReturnedExcess: s.ReturnedExcess,
	}
}

func statsFromDinic(s DinicStats) Stats {
	return Stats{Phases: s.Phases, Augmentations: s.Augmentations}
}

// SolverResult contains the result of one solve.
type SolverResult struct {
	// MaxFlow is the flow value delivered to the sink.
	MaxFlow graph.Flow

	// Algorithm is the solver that produced the result.
	Algorithm Algorithm

	// Duration is the wall-clock time spent inside the solver, excluding
	// reset and validation.
	Duration time.Duration

	// Stats holds the solver's work counters.
	Stats Stats
}

// =============================================================================
// Validation
// =============================================================================

// validateInput checks the graph, terminals and options.
//
// The error wraps one of the standard errors (ErrNilGraph,
// ErrSourceOutOfRange, ...) for easy checking with errors.Is().
func validateInput(g *graph.ResidualGraph, source, sink int, opts *SolverOptions) error {
	if g == nil {
		return ErrNilGraph
	}
	n := g.NumNodes()
	if source < 0 || source >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrSourceOutOfRange, source, n)
	}
	if sink < 0 || sink >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrSinkOutOfRange, sink, n)
	}
	if _, ok := registry[opts.Algorithm]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}
	if opts.Algorithm.IsPreflow() {
		if opts.NumLeft < 0 || opts.NumRight < 0 || opts.NumLeft > opts.NumRight {
			return fmt.Errorf("%w: left=%d right=%d", ErrInvalidPartitions, opts.NumLeft, opts.NumRight)
		}
	}
	return nil
}

// =============================================================================
// Main Solver Entry Point
// =============================================================================

// Solve resets g and computes the maximum flow from source to sink with the
// configured algorithm. g holds the resulting flow afterwards.
//
// Invariant violations inside a solver panic with a critical
// *apperror.Error; Solve recovers those and returns them as errors.
//
// # Example
//
//	result, err := Solve(g, 0, 5, DefaultSolverOptions().WithPartitions(2, 2))
//	if err != nil {
//	    return fmt.Errorf("solve failed: %w", err)
//	}
//	fmt.Printf("Max flow: %d\n", result.MaxFlow)
func Solve(g *graph.ResidualGraph, source, sink int, options *SolverOptions) (result *SolverResult, err error) {
	if options == nil {
		options = DefaultSolverOptions()
	}
	opts := options.clone()
	if g != nil {
		g.Finalize()
	}
	if err := validateInput(g, source, sink, opts); err != nil {
		return nil, err
	}

	defer apperror.Recover(&err)

	// Borrow before Reset; the solver runs on the borrowed graph.
	release := g.Borrow()
	defer release()

	g.Reset()
	start := time.Now()
	flow, stats := registry[opts.Algorithm].run(g, source, sink, opts)
	result = &SolverResult{
		MaxFlow:   flow,
		Algorithm: opts.Algorithm,
		Duration:  time.Since(start),
		Stats:     stats,
	}

	if opts.Validate {
		if err := g.ValidateMaxFlow(source, sink); err != nil {
			return nil, fmt.Errorf("%s produced an invalid flow: %w", opts.Algorithm, err)
		}
	}
	return result, nil
}

// partitions returns the partition sizes to hand to a preflow solver.
func partitions(g *graph.ResidualGraph, opts *SolverOptions) (int, int) {
	if opts.NumLeft == 0 && opts.NumRight == 0 {
		n := g.NumNodes()
		return n, n
	}
	return opts.NumLeft, opts.NumRight
}

// =============================================================================
// Cross Validation
// =============================================================================

// Comparison holds the results of running every algorithm on one graph.
type Comparison struct {
	Results []*SolverResult
	MaxFlow graph.Flow
	Agree   bool
}

// Result returns the entry for a, or nil.
func (c *Comparison) Result(a Algorithm) *SolverResult {
	for _, r := range c.Results {
		if r.Algorithm == a {
			return r
		}
	}
	return nil
}

// CrossValidateOption customizes CrossValidate.
type CrossValidateOption func(*crossValidation)

type crossValidation struct {
	algorithms []Algorithm
	before     func(Algorithm)
	after      func(Algorithm, *SolverResult, error)
}

// CompareAlgorithms runs algos, in order, instead of AllAlgorithms.
func CompareAlgorithms(algos ...Algorithm) CrossValidateOption {
	return func(cv *crossValidation) {
		cv.algorithms = algos
	}
}

// OnSolve registers callbacks around every solve. after receives a nil
// result when the solve failed. Either callback may be nil.
func OnSolve(before func(Algorithm), after func(Algorithm, *SolverResult, error)) CrossValidateOption {
	return func(cv *crossValidation) {
		cv.before = before
		cv.after = after
	}
}

// CrossValidate runs every algorithm in AllAlgorithms, or those chosen with
// CompareAlgorithms, on g, resetting it in between, and compares the flow values. ctx is checked before each
// solve. On disagreement the comparison is returned together with an error
// wrapping ErrFlowMismatch. The graph is left holding the flow of the last
// algorithm.
func CrossValidate(ctx context.Context, g *graph.ResidualGraph, source, sink int, options *SolverOptions, opts ...CrossValidateOption) (*Comparison, error) {
	if options == nil {
		options = DefaultSolverOptions()
	}
	cv := crossValidation{algorithms: AllAlgorithms}
	for _, o := range opts {
		o(&cv)
	}

	cmp := &Comparison{Agree: true}
	for _, algo := range cv.algorithms {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("before %s: %w", algo, err)
		}

		if cv.before != nil {
			cv.before(algo)
		}
		r, err := Solve(g, source, sink, options.clone().WithAlgorithm(algo))
		if cv.after != nil {
			cv.after(algo, r, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", algo, err)
		}

		if len(cmp.Results) == 0 {
			cmp.MaxFlow = r.MaxFlow
		} else if r.MaxFlow != cmp.MaxFlow {
			cmp.Agree = false
		}
		cmp.Results = append(cmp.Results, r)
	}

	if !cmp.Agree {
		parts := make([]string, len(cmp.Results))
		for i, r := range cmp.Results {
			parts[i] = fmt.Sprintf("%s=%d", r.Algorithm, r.MaxFlow)
		}
		return cmp, fmt.Errorf("%w: %s", ErrFlowMismatch, strings.Join(parts, " "))
	}
	return cmp, nil
}

// =============================================================================
// Algorithm Information
// =============================================================================

// AlgorithmInfo provides metadata about a solver.
type AlgorithmInfo struct {
	// Algorithm is the registry key.
	Algorithm Algorithm

	// Name is the human-readable name.
	Name string

	// Description is a brief description of the algorithm.
	Description string

	// TimeComplexity is the Big-O time complexity.
	TimeComplexity string

	// SpaceComplexity is the Big-O space complexity.
	SpaceComplexity string

	// RequiresBipartite indicates the solver relies on the bipartite bound.
	RequiresBipartite bool

	run func(g *graph.ResidualGraph, source, sink int, opts *SolverOptions) (graph.Flow, Stats)
}

var registry = map[Algorithm]*AlgorithmInfo{
	AlgorithmFIFO: {
		Algorithm:         AlgorithmFIFO,
		Name:              "Bipartite Push-Relabel (FIFO)",
		Description:       "Two-hop preflow-push with FIFO selection, gap and optional global relabeling",
		TimeComplexity:    "O(L² × E)",
		SpaceComplexity:   "O(V + E)",
		RequiresBipartite: true,
		run: func(g *graph.ResidualGraph, source, sink int, opts *SolverOptions) (graph.Flow, Stats) {
			left, right := partitions(g, opts)
			s := NewFIFOPushRelabel(left, right, g)
			s.SetGlobalRelabelThreshold(opts.GlobalRelabelAlpha)
			flow := s.engine.solve(source, sink)
			return flow, statsFromPreflow(s.Stats())
		},
	},
	AlgorithmHighestLabel: {
		Algorithm:         AlgorithmHighestLabel,
		Name:              "Bipartite Push-Relabel (Highest Label)",
		Description:       "Two-hop preflow-push with highest-label selection and gap relabeling",
		TimeComplexity:    "O(L² × √E)",
		SpaceComplexity:   "O(V + E)",
		RequiresBipartite: true,
		run: func(g *graph.ResidualGraph, source, sink int, opts *SolverOptions) (graph.Flow, Stats) {
			left, right := partitions(g, opts)
			s := NewHighestLabelPushRelabel(left, right, g)
			flow := s.engine.solve(source, sink)
			return flow, statsFromPreflow(s.Stats())
		},
	},
	AlgorithmDinic: {
		Algorithm:       AlgorithmDinic,
		Name:            "Dinic",
		Description:     "Level graphs with blocking flow and current arc optimization",
		TimeComplexity:  "O(V² × E)",
		SpaceComplexity: "O(V + E)",
		run: func(g *graph.ResidualGraph, source, sink int, _ *SolverOptions) (graph.Flow, Stats) {
			s := NewDinic(g)
			flow := s.solve(source, sink)
			return flow, statsFromDinic(s.Stats())
		},
	},
}

// GetAlgorithmInfo returns information about a, or nil for unknown
// algorithms.
func GetAlgorithmInfo(a Algorithm) *AlgorithmInfo {
	info, ok := registry[a]
	if !ok {
		return nil
	}
	c := *info
	return &c
}

// GetAllAlgorithms returns information about every registered solver in
// AllAlgorithms order.
func GetAllAlgorithms() []*AlgorithmInfo {
	out := make([]*AlgorithmInfo, 0, len(AllAlgorithms))
	for _, a := range AllAlgorithms {
		out = append(out, GetAlgorithmInfo(a))
	}
	return out
}
