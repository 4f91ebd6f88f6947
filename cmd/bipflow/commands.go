package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"bipflow/internal/algorithms"
	"bipflow/internal/benchmark"
	"bipflow/internal/generator"
	"bipflow/internal/instance"
	"bipflow/internal/report"
	"bipflow/internal/repository"
	"bipflow/pkg/apperror"
	"bipflow/pkg/config"
	"bipflow/pkg/logger"
)

var errUsage = errors.New("invalid arguments")

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// runSolve mirrors the classic driver: every solver runs sequentially on each
// file, the flows must agree and one CSV line per file is printed.
func runSolve(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("solve")
	configPath := fs.String("config", "", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: expected at least one instance file", errUsage)
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.runner()
	if err != nil {
		return err
	}

	for _, path := range fs.Args() {
		inst, err := instance.ParseFile(path)
		if err != nil {
			return err
		}
		res, err := r.RunInstance(ctx, inst)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, res.CSVLine())
	}
	return nil
}

func runBench(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("bench")
	configPath := fs.String("config", "", "config file")
	workers := fs.Int("workers", 0, "concurrent instances (default from config, then GOMAXPROCS)")
	var reports stringList
	fs.Var(&reports, "report", "report file; format from extension (csv, xlsx, pdf); repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	patterns := fs.Args()
	if len(patterns) == 0 {
		patterns = a.cfg.Benchmark.Patterns
	}
	if len(patterns) == 0 {
		return fmt.Errorf("%w: expected instance files or glob patterns", errUsage)
	}
	if len(reports) == 0 && a.cfg.Benchmark.ReportOutput != "" {
		reports = stringList{a.cfg.Benchmark.ReportOutput}
	}
	if *workers <= 0 {
		*workers = a.cfg.Benchmark.Workers
	}

	paths, err := benchmark.ExpandPaths(patterns)
	if err != nil {
		return err
	}

	r, err := a.runner()
	if err != nil {
		return err
	}

	a.serveMetrics(ctx)

	start := time.Now()
	results, runErr := r.RunSuite(ctx, paths, *workers)
	logger.Info("Benchmark finished",
		"instances", len(paths),
		"succeeded", len(results),
		"elapsed", time.Since(start).String(),
	)

	for _, res := range results {
		fmt.Fprintln(stdout, res.CSVLine())
	}

	if len(reports) > 0 && len(results) > 0 {
		data := &report.Data{
			GeneratedAt: time.Now(),
			Results:     results,
		}
		if err := writeReports(ctx, data, reports, a.cfg.Benchmark.ReportFormat); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

// writeReports renders every requested report concurrently. The format comes
// from the file extension, or from fallback when the extension is unknown.
func writeReports(ctx context.Context, data *report.Data, paths []string, fallback string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			format, err := report.FormatFromPath(path)
			if err != nil && fallback != "" {
				format, err = report.ParseFormat(fallback)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			gen, err := report.ForFormat(format)
			if err != nil {
				return err
			}
			out, err := gen.Generate(ctx, data)
			if err != nil {
				return fmt.Errorf("generate %s report: %w", format, err)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			logger.Info("Report written", "path", path, "format", string(format), "bytes", len(out))
			return nil
		})
	}
	return g.Wait()
}

func runGenerate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("generate")
	kindName := fs.String("kind", "", "instance family: hilo, rope or zipf")
	left := fs.Int("left", 0, "left partition size")
	right := fs.Int("right", 0, "right partition size")
	degree := fs.Int("degree", 0, "degree parameter")
	seed := fs.Uint64("seed", 1, "random seed")
	out := fs.String("o", "", "output file (default stdout)")
	suiteDir := fs.String("suite", "", "write the full benchmark grid into this directory instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *suiteDir != "" {
		return generateSuite(ctx, *suiteDir)
	}

	kind, err := generator.ParseKind(*kindName)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	inst, err := generator.Generate(kind, *left, *right, *degree, *seed)
	if err != nil {
		return err
	}

	if *out == "" {
		return instance.Write(stdout, inst)
	}
	inst.Name = instance.NameFromPath(*out)
	return instance.WriteFile(*out, inst)
}

// generateSuite writes every grid instance as <dir>/<name>.in.
func generateSuite(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	specs := generator.SuiteSpecs(generator.DefaultSizes, generator.DefaultRatios, generator.DefaultDensities)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, spec := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			inst, err := spec.Generate()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, spec.Name+".in")
			if err := instance.WriteFile(path, inst); err != nil {
				return err
			}
			logger.Debug("Instance written", "path", path, "edges", inst.NumEdges)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Suite generated", "dir", dir, "instances", len(specs))
	return nil
}

func runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("history")
	configPath := fs.String("config", "", "config file")
	limit := fs.Int("limit", 20, "maximum number of runs")
	prune := fs.Duration("prune", 0, "delete runs older than this instead of listing")
	name := fs.String("instance", "", "only runs of this instance")
	var tags stringList
	fs.Var(&tags, "tag", "only runs carrying this tag; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireRuns(); err != nil {
		return err
	}

	if *prune > 0 {
		n, err := a.runs.Prune(ctx, time.Now().Add(-*prune))
		if err != nil {
			return err
		}
		logger.Info("Run history pruned", "older_than", prune.String(), "runs", n)
		fmt.Fprintf(stdout, "pruned %d runs\n", n)
		return nil
	}

	runs, err := a.runs.List(ctx, repository.ListParams{
		Limit:    *limit,
		Instance: *name,
		Tags:     tags,
	})
	if err != nil {
		return err
	}

	return printRuns(stdout, runs)
}

func runMigrate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("migrate")
	configPath := fs.String("config", "", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected one of up, down, version", errUsage)
	}
	action := fs.Arg(0)
	if action != "up" && action != "down" && action != "version" {
		return fmt.Errorf("%w: unknown migrate action %q", errUsage, action)
	}

	a, err := newApp(ctx, *configPath, func(cfg *config.Config) {
		cfg.Database.AutoMigrate = false
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.migrator == nil {
		return apperror.Newf(apperror.CodeNotConfigured, "migrate requires database.enabled")
	}

	switch action {
	case "up":
		err = a.migrator.Up(ctx)
	case "down":
		err = a.migrator.Down(ctx)
	}
	if err != nil {
		return err
	}

	version, err := a.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(stdout, "schema version %d\n", version)
	return nil
}

// runCache clears cached results: those of the given instance files, or all.
func runCache(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("cache")
	configPath := fs.String("config", "", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 || fs.Arg(0) != "clear" {
		return fmt.Errorf("%w: expected clear [instance...]", errUsage)
	}
	files := fs.Args()[1:]

	a, err := newApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireResults(); err != nil {
		return err
	}

	var removed int64
	if len(files) == 0 {
		if removed, err = a.results.InvalidateAll(ctx); err != nil {
			return err
		}
	}
	for _, path := range files {
		inst, err := instance.ParseFile(path)
		if err != nil {
			return err
		}
		n, err := a.results.Invalidate(ctx, inst.Hash())
		if err != nil {
			return err
		}
		removed += n
	}

	logger.Info("Result cache cleared", "instances", len(files), "entries", removed)
	fmt.Fprintf(stdout, "removed %d cached results\n", removed)
	return nil
}

func runAlgorithms(_ context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("algorithms")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tTIME\tSPACE\tBIPARTITE")
	for _, info := range algorithms.GetAllAlgorithms() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
			info.Algorithm, info.Name, info.TimeComplexity, info.SpaceComplexity, info.RequiresBipartite)
	}
	return tw.Flush()
}

func printRuns(w io.Writer, runs []*repository.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tINSTANCE\tNODES\tEDGES\tMAX FLOW\tTIMINGS (ms)\tCACHED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%t\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.Instance,
			run.Nodes,
			run.Edges,
			run.MaxFlow,
			formatTimings(run.Timings),
			run.Cached,
		)
	}
	return tw.Flush()
}

// formatTimings renders timings in the fixed solver order, then any others.
func formatTimings(timings map[string]float64) string {
	order := []string{"fifo", "highest_label", "dinic"}
	parts := make([]string, 0, len(timings))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if ms, ok := timings[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.1f", name, ms))
			seen[name] = true
		}
	}
	var rest []string
	for name := range timings {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	for _, name := range rest {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, timings[name]))
	}
	return strings.Join(parts, " ")
}
