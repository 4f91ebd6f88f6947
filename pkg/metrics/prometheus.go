// Package metrics exposes solver and benchmark metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the application records to.
type Metrics struct {
	// Solver metrics
	SolvesTotal       *prometheus.CounterVec
	SolveDuration     *prometheus.HistogramVec
	MaxFlowValue      *prometheus.GaugeVec
	PreflowOperations *prometheus.CounterVec
	DinicPhases       prometheus.Counter

	// Instance metrics
	GraphNodes        prometheus.Histogram
	GraphEdges        prometheus.Histogram
	InstancesTotal    *prometheus.CounterVec
	InstanceDuration  *prometheus.HistogramVec
	InstancesInFlight prometheus.Gauge
	FlowMismatches    prometheus.Counter

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	defaultMu      sync.Mutex
	// registered is set once defaultMetrics lives on the default registry.
	registered bool
)

// New creates the collectors and registers them with reg.
func New(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solves_total",
				Help:      "Total number of max-flow solves",
			},
			[]string{"algorithm", "status"},
		),

		SolveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Wall time of a single solver run",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"algorithm"},
		),

		MaxFlowValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "max_flow_value",
				Help:      "Last computed max flow value",
			},
			[]string{"algorithm"},
		),

		PreflowOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "preflow_operations_total",
				Help:      "Push, relabel and gap operations of the preflow solvers",
			},
			[]string{"algorithm", "operation"},
		),

		DinicPhases: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dinic_phases_total",
				Help:      "Blocking-flow phases run by Dinic",
			},
		),

		GraphNodes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_nodes",
				Help:      "Number of nodes in solved instances",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 10),
			},
		),

		GraphEdges: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_edges",
				Help:      "Number of edges in solved instances",
				Buckets:   prometheus.ExponentialBuckets(10, 4, 12),
			},
		),

		InstancesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "instances_total",
				Help:      "Benchmark instances processed",
			},
			[]string{"status"},
		),

		InstanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "instance_duration_seconds",
				Help:      "Wall time of one benchmark instance, all solvers included",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"status"},
		),

		InstancesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "instances_in_flight",
				Help:      "Benchmark instances currently being solved",
			},
		),

		FlowMismatches: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "flow_mismatches_total",
				Help:      "Instances on which the solvers disagreed",
			},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by outcome",
			},
			[]string{"result"},
		),

		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "environment"},
		),
	}
}

// InitMetrics creates the process-wide metrics on the default registry.
// Later calls return the metrics of the first one.
func InitMetrics(namespace, subsystem string) *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if !registered {
		defaultMetrics = New(namespace, subsystem, prometheus.DefaultRegisterer)
		registered = true
	}
	return defaultMetrics
}

// Get returns the process-wide metrics. Before InitMetrics it hands out
// collectors on a private registry, so recording is always safe.
func Get() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultMetrics == nil {
		defaultMetrics = New("bipflow", "", prometheus.NewRegistry())
	}
	return defaultMetrics
}

// RecordSolve records one solver run.
func (m *Metrics) RecordSolve(algorithm string, success bool, duration time.Duration, maxFlow int64) {
	status := "success"
	if !success {
		status = "error"
	}

	m.SolvesTotal.WithLabelValues(algorithm, status).Inc()
	m.SolveDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	if success {
		m.MaxFlowValue.WithLabelValues(algorithm).Set(float64(maxFlow))
	}
}

// RecordPreflow adds the operation counts of one preflow run.
func (m *Metrics) RecordPreflow(algorithm string, pushes, relabels, gaps, globalRelabels int) {
	m.PreflowOperations.WithLabelValues(algorithm, "push").Add(float64(pushes))
	m.PreflowOperations.WithLabelValues(algorithm, "relabel").Add(float64(relabels))
	m.PreflowOperations.WithLabelValues(algorithm, "gap").Add(float64(gaps))
	m.PreflowOperations.WithLabelValues(algorithm, "global_relabel").Add(float64(globalRelabels))
}

// RecordDinicPhases adds the phase count of one Dinic run.
func (m *Metrics) RecordDinicPhases(phases int) {
	m.DinicPhases.Add(float64(phases))
}

// RecordGraphSize records the size of a solved instance.
func (m *Metrics) RecordGraphSize(nodes, edges int) {
	m.GraphNodes.Observe(float64(nodes))
	m.GraphEdges.Observe(float64(edges))
}

// RecordInstance counts a finished benchmark instance. Status is one of
// ok, cached, mismatch, error.
func (m *Metrics) RecordInstance(status string) {
	m.InstancesTotal.WithLabelValues(status).Inc()
	if status == "mismatch" {
		m.FlowMismatches.Inc()
	}
}

// RecordCacheLookup counts a result cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetBuildInfo publishes version and environment.
func (m *Metrics) SetBuildInfo(version, environment string) {
	m.BuildInfo.WithLabelValues(version, environment).Set(1)
}

// Timer measures the duration of one operation whose labels are only known
// once it ends.
type Timer struct {
	start     time.Time
	histogram *prometheus.HistogramVec
}

// NewTimer starts a timer observed into histogram.
func NewTimer(histogram *prometheus.HistogramVec) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: histogram,
	}
}

// ObserveDuration records the elapsed time under labels and returns it.
func (t *Timer) ObserveDuration(labels ...string) time.Duration {
	duration := time.Since(t.start)
	t.histogram.WithLabelValues(labels...).Observe(duration.Seconds())
	return duration
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds the metrics HTTP server: path serves the metrics and
// /health answers OK.
func NewServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
