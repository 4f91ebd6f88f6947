package benchmark

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"bipflow/internal/instance"
	"bipflow/pkg/logger"
	"bipflow/pkg/telemetry"
)

type suiteJob struct {
	ctx     context.Context
	idx     int
	path    string
	results []*Result
	errs    []error
	wg      *sync.WaitGroup
}

// RunSuite parses and benchmarks every path on a pool of workers goroutines
// (GOMAXPROCS when workers <= 0). The returned results keep the order of
// paths and omit instances that failed; failures are joined into the error.
// A flow mismatch keeps its result and still counts as a failure.
func (r *Runner) RunSuite(ctx context.Context, paths []string, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, max(len(paths), 1))

	ctx, span := telemetry.StartSpan(ctx, "benchmark.suite",
		telemetry.WithAttributes(telemetry.SuiteAttributes(len(paths), workers)...))
	defer span.End()

	pool, err := ants.NewPoolWithFunc(workers, func(arg any) {
		job := arg.(*suiteJob)
		defer job.wg.Done()
		job.results[job.idx], job.errs[job.idx] = r.runPath(job.ctx, job.path)
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]*Result, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		if ctx.Err() != nil {
			errs[i] = fmt.Errorf("%s: %w", path, ctx.Err())
			continue
		}
		wg.Add(1)
		job := &suiteJob{ctx: ctx, idx: i, path: path, results: results, errs: errs, wg: &wg}
		if err := pool.Invoke(job); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("%s: schedule: %w", path, err)
		}
	}
	wg.Wait()

	out := make([]*Result, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}

	if err := errors.Join(errs...); err != nil {
		telemetry.SetError(ctx, err)
		return out, err
	}
	return out, nil
}

func (r *Runner) runPath(ctx context.Context, path string) (*Result, error) {
	inst, err := instance.ParseFile(path)
	if err != nil {
		logger.WithInstance(instance.NameFromPath(path)).Warn("instance skipped", "path", path, "error", err)
		return nil, err
	}
	return r.RunInstance(ctx, inst)
}
