// Package benchmark runs every configured solver on benchmark instances,
// checks that they agree and records timings.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"bipflow/internal/algorithms"
	"bipflow/internal/graph"
	"bipflow/internal/instance"
	"bipflow/internal/repository"
	"bipflow/pkg/apperror"
	"bipflow/pkg/cache"
	"bipflow/pkg/config"
	"bipflow/pkg/logger"
	"bipflow/pkg/metrics"
	"bipflow/pkg/telemetry"
)

// ErrNoAlgorithms is returned when a runner is configured without solvers.
var ErrNoAlgorithms = errors.New("no algorithms configured")

// Options selects what a Runner does for each instance.
type Options struct {
	Algorithms         []algorithms.Algorithm
	GlobalRelabelAlpha int
	Validate           bool
	// Timeout bounds one instance; it is checked between solver runs.
	Timeout time.Duration
	Tags    []string
}

// DefaultOptions runs FIFO, highest-label and Dinic, in that order.
func DefaultOptions() Options {
	return Options{
		Algorithms: append([]algorithms.Algorithm(nil), algorithms.AllAlgorithms...),
		Validate:   true,
	}
}

// OptionsFromConfig reads the solver and benchmark sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		GlobalRelabelAlpha: cfg.Solver.GlobalRelabelAlpha,
		Validate:           cfg.Solver.Validate,
		Timeout:            cfg.Benchmark.Timeout,
		Tags:               cfg.Benchmark.Tags,
	}
	for _, name := range cfg.Solver.Algorithms {
		a, err := algorithms.ParseAlgorithm(name)
		if err != nil {
			return Options{}, err
		}
		opts.Algorithms = append(opts.Algorithms, a)
	}
	if len(opts.Algorithms) == 0 {
		return Options{}, ErrNoAlgorithms
	}
	return opts, nil
}

func (o Options) algorithmNames() []string {
	names := make([]string, len(o.Algorithms))
	for i, a := range o.Algorithms {
		names[i] = a.String()
	}
	return names
}

// Timing is the outcome of one solver on one instance.
type Timing struct {
	Algorithm algorithms.Algorithm
	Duration  time.Duration
	MaxFlow   graph.Flow
	Stats     algorithms.Stats
}

// Millis returns the duration in fractional milliseconds.
func (t Timing) Millis() float64 {
	return float64(t.Duration.Nanoseconds()) / 1e6
}

// Result is the outcome of benchmarking one instance.
type Result struct {
	RunID    uuid.UUID
	Instance string
	Hash     string
	NumLeft  int
	NumRight int
	NumNodes int
	NumEdges int
	MaxFlow  graph.Flow
	Timings  []Timing
	// Cached reports that the timings come from the result cache.
	Cached bool

	// Topology and Flow describe the graph and the flow left by the last
	// solver; both are zero for cached results.
	Topology graph.TopologyStatistics
	Flow     graph.FlowStatistics
}

// Timing returns the entry of algorithm a.
func (r *Result) Timing(a algorithms.Algorithm) (Timing, bool) {
	for _, t := range r.Timings {
		if t.Algorithm == a {
			return t, true
		}
	}
	return Timing{}, false
}

// CSVLine renders "name,ms,ms,..." with whole milliseconds per solver in run
// order, e.g. name,fifo_ms,hl_ms,dinic_ms.
func (r *Result) CSVLine() string {
	var b strings.Builder
	b.WriteString(r.Instance)
	for _, t := range r.Timings {
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(t.Duration.Milliseconds(), 10))
	}
	return b.String()
}

// Runner benchmarks instances. It is safe for concurrent use; every call
// builds its own graph.
type Runner struct {
	opts    Options
	metrics *metrics.Metrics
	results *cache.ResultCache
	runs    repository.RunRepository
}

// Option customizes a Runner.
type Option func(*Runner)

// WithMetrics records to m instead of the process-wide metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithResultCache consults and fills rc.
func WithResultCache(rc *cache.ResultCache) Option {
	return func(r *Runner) { r.results = rc }
}

// WithRepository persists every result to repo.
func WithRepository(repo repository.RunRepository) Option {
	return func(r *Runner) { r.runs = repo }
}

// NewRunner creates a runner.
func NewRunner(opts Options, options ...Option) (*Runner, error) {
	if len(opts.Algorithms) == 0 {
		return nil, ErrNoAlgorithms
	}
	r := &Runner{opts: opts}
	for _, o := range options {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.Get()
	}
	return r, nil
}

// RunInstance solves inst with every configured algorithm and compares the
// flow values. On disagreement the result is returned together with an error
// wrapping algorithms.ErrFlowMismatch.
func (r *Runner) RunInstance(ctx context.Context, inst *instance.Instance) (res *Result, err error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	res = &Result{
		RunID:    uuid.New(),
		Instance: inst.Name,
		Hash:     inst.Hash(),
		NumLeft:  inst.NumLeft,
		NumRight: inst.NumRight,
		NumNodes: inst.NumNodes,
		NumEdges: len(inst.Edges),
	}
	log := logger.WithRun(res.RunID.String(), inst.Name)

	ctx, span := telemetry.StartSpan(ctx, "benchmark.instance",
		telemetry.WithAttributes(telemetry.InstanceAttributes(
			res.Instance, res.Hash, res.NumNodes, res.NumEdges, res.NumLeft, res.NumRight)...))
	span.SetAttributes(telemetry.RunAttribute(res.RunID.String()))
	defer span.End()

	r.metrics.InstancesInFlight.Inc()
	defer r.metrics.InstancesInFlight.Dec()

	timer := metrics.NewTimer(r.metrics.InstanceDuration)
	status := "error"
	defer func() {
		timer.ObserveDuration(status)
		r.metrics.RecordInstance(status)
		if err != nil {
			telemetry.SetError(ctx, err)
		}
	}()

	optionsHash := cache.OptionsHash(r.opts.GlobalRelabelAlpha, r.opts.Validate, r.opts.algorithmNames())
	if r.fromCache(ctx, log, res, optionsHash) {
		status = "cached"
		log.Debug("result cache hit", "max_flow", res.MaxFlow)
		r.persist(ctx, log, res)
		return res, nil
	}

	if err := r.solveAll(ctx, log, inst, res); err != nil {
		if errors.Is(err, algorithms.ErrFlowMismatch) {
			status = "mismatch"
			log.Error("solvers disagree", "error", err)
			return res, err
		}
		if apperror.IsCritical(err) {
			log.Error("solver invariant violated", "error", err)
		}
		return nil, err
	}

	status = "ok"
	log.Info("instance solved", "max_flow", res.MaxFlow, "line", res.CSVLine())
	r.storeInCache(ctx, log, res, optionsHash)
	r.persist(ctx, log, res)
	return res, nil
}

// solveAll cross-validates the configured algorithms on one graph and fills
// res with their timings. A flow mismatch still fills res.
func (r *Runner) solveAll(ctx context.Context, log *slog.Logger, inst *instance.Instance, res *Result) error {
	g := inst.Build()
	r.metrics.RecordGraphSize(g.NumNodes(), g.NumEdges())

	opts := algorithms.DefaultSolverOptions().
		WithPartitions(inst.NumLeft, inst.NumRight).
		WithGlobalRelabelAlpha(r.opts.GlobalRelabelAlpha).
		WithValidation(r.opts.Validate)

	var span trace.Span
	cmp, err := algorithms.CrossValidate(ctx, g, inst.Source, inst.Sink, opts,
		algorithms.CompareAlgorithms(r.opts.Algorithms...),
		algorithms.OnSolve(
			func(algo algorithms.Algorithm) {
				_, span = telemetry.StartSpan(ctx, "solver."+algo.String())
			},
			func(algo algorithms.Algorithm, out *algorithms.SolverResult, err error) {
				defer span.End()
				if err != nil {
					span.RecordError(err)
					r.metrics.RecordSolve(algo.String(), false, 0, 0)
					return
				}
				span.SetAttributes(telemetry.SolveAttributes(algo.String(), out.MaxFlow, out.Duration)...)
				if algo.IsPreflow() {
					span.SetAttributes(telemetry.PreflowAttributes(out.Stats.Pushes, out.Stats.Relabels, out.Stats.Gaps)...)
				} else {
					span.SetAttributes(telemetry.DinicAttributes(out.Stats.Phases)...)
				}
				r.record(algo, out)
				log.Debug("solver finished", "algorithm", algo.String(), "max_flow", out.MaxFlow, "duration", out.Duration)
			},
		))
	if cmp != nil {
		for _, out := range cmp.Results {
			res.Timings = append(res.Timings, Timing{
				Algorithm: out.Algorithm,
				Duration:  out.Duration,
				MaxFlow:   out.MaxFlow,
				Stats:     out.Stats,
			})
		}
		res.MaxFlow = cmp.MaxFlow
		res.Topology = g.Topology(inst.Source)
		res.Flow = g.FlowStats(inst.Source, inst.Sink)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Name, err)
	}
	return nil
}

func (r *Runner) record(algo algorithms.Algorithm, out *algorithms.SolverResult) {
	r.metrics.RecordSolve(algo.String(), true, out.Duration, out.MaxFlow)
	if algo.IsPreflow() {
		s := out.Stats
		r.metrics.RecordPreflow(algo.String(), s.Pushes, s.Relabels, s.Gaps, s.GlobalRelabels)
	} else {
		r.metrics.RecordDinicPhases(out.Stats.Phases)
	}
}

// fromCache fills res from the result cache. An entry that lacks one of the
// configured algorithms counts as a miss and leaves res untouched.
func (r *Runner) fromCache(ctx context.Context, log *slog.Logger, res *Result, optionsHash string) bool {
	if r.results == nil {
		return false
	}

	cached, ok, err := r.results.Get(ctx, res.Hash, optionsHash)
	if err != nil {
		log.Warn("result cache lookup failed", "error", err)
		return false
	}
	if ok {
		timings := make([]Timing, 0, len(r.opts.Algorithms))
		for _, algo := range r.opts.Algorithms {
			ms, found := cached.Timings[algo.String()]
			if !found {
				log.Debug("partial result cache entry ignored", "missing", algo.String())
				ok = false
				break
			}
			timings = append(timings, Timing{
				Algorithm: algo,
				Duration:  time.Duration(ms * float64(time.Millisecond)),
				MaxFlow:   cached.MaxFlow,
			})
		}
		if ok {
			res.Timings = timings
			res.MaxFlow = cached.MaxFlow
			res.Cached = true
		}
	}

	r.metrics.RecordCacheLookup(ok)
	telemetry.SetAttributes(ctx, telemetry.CacheAttribute(ok))
	return ok
}

func (r *Runner) storeInCache(ctx context.Context, log *slog.Logger, res *Result, optionsHash string) {
	if r.results == nil {
		return
	}
	entry := &cache.CachedResult{
		Instance: res.Instance,
		MaxFlow:  res.MaxFlow,
		Timings:  res.timingMap(),
	}
	if err := r.results.Put(ctx, res.Hash, optionsHash, entry); err != nil {
		log.Warn("result cache store failed", "error", err)
	}
}

func (r *Runner) persist(ctx context.Context, log *slog.Logger, res *Result) {
	if r.runs == nil {
		return
	}
	run := &repository.Run{
		ID:           res.RunID,
		Instance:     res.Instance,
		InstanceHash: res.Hash,
		LeftNodes:    res.NumLeft,
		RightNodes:   res.NumRight,
		Nodes:        res.NumNodes,
		Edges:        res.NumEdges,
		MaxFlow:      res.MaxFlow,
		Timings:      res.timingMap(),
		Cached:       res.Cached,
		Tags:         r.opts.Tags,
	}
	if err := r.runs.Create(ctx, run); err != nil {
		log.Warn("run not recorded", "error", err)
	}
}

func (r *Result) timingMap() map[string]float64 {
	m := make(map[string]float64, len(r.Timings))
	for _, t := range r.Timings {
		m[t.Algorithm.String()] = t.Millis()
	}
	return m
}
