package algorithms

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bipflow/internal/graph"
	"bipflow/pkg/apperror"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"fifo", AlgorithmFIFO, false},
		{"FIFO", AlgorithmFIFO, false},
		{"hl", AlgorithmHighestLabel, false},
		{"highest-label", AlgorithmHighestLabel, false},
		{" dinic ", AlgorithmDinic, false},
		{"edmonds_karp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSolve_Scenarios(t *testing.T) {
	for _, algo := range AllAlgorithms {
		for _, sc := range scenarios() {
			t.Run(string(algo)+"/"+sc.net.name, func(t *testing.T) {
				g := sc.net.build(t)
				opts := DefaultSolverOptions().
					WithAlgorithm(algo).
					WithPartitions(sc.net.numLeft, sc.net.numRight)

				result, err := Solve(g, sc.net.source, sc.net.sink, opts)

				require.NoError(t, err)
				assert.Equal(t, sc.want, result.MaxFlow)
				assert.Equal(t, algo, result.Algorithm)
			})
		}
	}
}

func TestSolve_ValidationErrors(t *testing.T) {
	g := graph.New()
	g.AddEdge(0, 1, 3)
	g.AddEdge(1, 2, 3)

	tests := []struct {
		name   string
		g      *graph.ResidualGraph
		source int
		sink   int
		opts   *SolverOptions
		want   error
	}{
		{"nil graph", nil, 0, 1, nil, ErrNilGraph},
		{"source out of range", g, 7, 2, nil, ErrSourceOutOfRange},
		{"negative sink", g, 0, -1, nil, ErrSinkOutOfRange},
		{"unknown algorithm", g, 0, 2, DefaultSolverOptions().WithAlgorithm("simplex"), ErrUnknownAlgorithm},
		{"left above right", g, 0, 2, DefaultSolverOptions().WithPartitions(3, 1), ErrInvalidPartitions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Solve(tt.g, tt.source, tt.sink, tt.opts)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSolve_DinicIgnoresPartitions(t *testing.T) {
	net := scenarios()[2].net
	g := net.build(t)

	result, err := Solve(g, net.source, net.sink,
		DefaultSolverOptions().WithAlgorithm(AlgorithmDinic).WithPartitions(5, 1))

	require.NoError(t, err)
	assert.Equal(t, graph.Flow(2), result.MaxFlow)
}

func TestSolve_UnknownPartitions(t *testing.T) {
	// Without partition sizes the preflow solvers fall back to the node count.
	for seed := uint64(1); seed <= 5; seed++ {
		net := randomBipartite(seed, 6, 10, 3, 40)
		want := solveWith(t, AlgorithmDinic, net)

		for _, algo := range []Algorithm{AlgorithmFIFO, AlgorithmHighestLabel} {
			g := net.build(t)
			result, err := Solve(g, net.source, net.sink, DefaultSolverOptions().WithAlgorithm(algo))

			require.NoError(t, err)
			assert.Equal(t, want, result.MaxFlow, "%s seed %d", algo, seed)
		}
	}
}

func TestSolve_ResetsGraphFirst(t *testing.T) {
	net := scenarios()[1].net
	g := net.build(t)
	opts := DefaultSolverOptions().WithPartitions(1, 1)

	for i := 0; i < 3; i++ {
		result, err := Solve(g, net.source, net.sink, opts)
		require.NoError(t, err)
		assert.Equal(t, graph.Flow(7), result.MaxFlow)
	}
}

func TestSolve_DoesNotMutateOptions(t *testing.T) {
	opts := DefaultSolverOptions().WithPartitions(1, 1)
	g := scenarios()[1].net.build(t)

	_, err := CrossValidate(context.Background(), g, 0, 3, opts)

	require.NoError(t, err)
	assert.Equal(t, AlgorithmFIFO, opts.Algorithm)
}

func TestSolve_BorrowedGraph(t *testing.T) {
	g := scenarios()[1].net.build(t)
	release := g.Borrow()
	defer release()

	_, err := Solve(g, 0, 3, DefaultSolverOptions().WithPartitions(1, 1))

	assert.True(t, apperror.Is(err, apperror.CodeGraphBorrowed))
}

func TestSolve_BorrowedGraphIsNotReset(t *testing.T) {
	g := scenarios()[1].net.build(t)
	_, err := Solve(g, 0, 3, DefaultSolverOptions().WithAlgorithm(AlgorithmDinic))
	require.NoError(t, err)
	require.Equal(t, graph.Flow(7), g.Excess(3))

	release := g.Borrow()
	_, err = Solve(g, 0, 3, DefaultSolverOptions().WithPartitions(1, 1))
	release()

	assert.True(t, apperror.Is(err, apperror.CodeGraphBorrowed))
	assert.Equal(t, graph.Flow(7), g.Excess(3), "flow of the owner must survive")
	assert.False(t, g.IsBorrowed())
}

func TestSolve_ReleasesGraph(t *testing.T) {
	for _, algo := range AllAlgorithms {
		g := scenarios()[1].net.build(t)
		_, err := Solve(g, 0, 3, DefaultSolverOptions().WithAlgorithm(algo).WithPartitions(1, 1))
		require.NoError(t, err, algo)
		assert.False(t, g.IsBorrowed(), algo)
	}
}

func TestSolve_InvariantBecomesError(t *testing.T) {
	run := func() (err error) {
		defer apperror.Recover(&err)
		NewFIFOPushRelabel(2, 1, graph.New())
		return nil
	}

	err := run()

	assert.True(t, apperror.IsCritical(err))
	assert.Equal(t, apperror.CodeInvalidPartition, apperror.Code(err))
}

func TestCrossValidate(t *testing.T) {
	net := randomBipartite(11, 10, 15, 4, 1000)
	g := net.build(t)

	cmp, err := CrossValidate(context.Background(), g, net.source, net.sink,
		DefaultSolverOptions().WithPartitions(net.numLeft, net.numRight).WithGlobalRelabelAlpha(2))

	require.NoError(t, err)
	assert.True(t, cmp.Agree)
	require.Len(t, cmp.Results, len(AllAlgorithms))
	for i, algo := range AllAlgorithms {
		assert.Equal(t, algo, cmp.Results[i].Algorithm)
		assert.Equal(t, cmp.MaxFlow, cmp.Results[i].MaxFlow)
	}
	assert.NotNil(t, cmp.Result(AlgorithmDinic))
	assert.Positive(t, cmp.Result(AlgorithmDinic).Stats.Phases)
	assert.Positive(t, cmp.Result(AlgorithmFIFO).Stats.Pushes)
}

func TestCrossValidate_PropagatesInputErrors(t *testing.T) {
	_, err := CrossValidate(context.Background(), nil, 0, 1, nil)
	assert.ErrorIs(t, err, ErrNilGraph)
}

func TestCrossValidate_SelectedAlgorithmsAndCallbacks(t *testing.T) {
	net := scenarios()[4].net
	g := net.build(t)

	var before []Algorithm
	var after []graph.Flow
	cmp, err := CrossValidate(context.Background(), g, net.source, net.sink,
		DefaultSolverOptions().WithPartitions(net.numLeft, net.numRight),
		CompareAlgorithms(AlgorithmDinic, AlgorithmHighestLabel),
		OnSolve(
			func(a Algorithm) { before = append(before, a) },
			func(a Algorithm, r *SolverResult, err error) {
				require.NoError(t, err)
				assert.Equal(t, a, r.Algorithm)
				after = append(after, r.MaxFlow)
			},
		))

	require.NoError(t, err)
	assert.Equal(t, []Algorithm{AlgorithmDinic, AlgorithmHighestLabel}, before)
	assert.Equal(t, []graph.Flow{9, 9}, after)
	assert.Len(t, cmp.Results, 2)
	assert.Nil(t, cmp.Result(AlgorithmFIFO))
}

func TestCrossValidate_FailedSolveReachesCallback(t *testing.T) {
	g := scenarios()[1].net.build(t)

	var failed error
	_, err := CrossValidate(context.Background(), g, 0, 9, nil,
		OnSolve(nil, func(_ Algorithm, r *SolverResult, err error) {
			assert.Nil(t, r)
			failed = err
		}))

	assert.ErrorIs(t, err, ErrSinkOutOfRange)
	assert.ErrorIs(t, failed, ErrSinkOutOfRange)
}

func TestCrossValidate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	solves := 0
	_, err := CrossValidate(ctx, scenarios()[1].net.build(t), 0, 3, nil,
		OnSolve(func(Algorithm) { solves++ }, nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, solves)
}

func TestCrossValidate_Mismatch(t *testing.T) {
	const overcounting Algorithm = "overcounting"
	registry[overcounting] = &AlgorithmInfo{
		Algorithm: overcounting,
		run: func(g *graph.ResidualGraph, source, sink int, _ *SolverOptions) (graph.Flow, Stats) {
			return NewDinic(g).solve(source, sink) + 1, Stats{}
		},
	}
	defer delete(registry, overcounting)

	net := scenarios()[1].net
	cmp, err := CrossValidate(context.Background(), net.build(t), net.source, net.sink, nil,
		CompareAlgorithms(AlgorithmDinic, overcounting))

	require.ErrorIs(t, err, ErrFlowMismatch)
	assert.Contains(t, err.Error(), "dinic=7 overcounting=8")
	require.NotNil(t, cmp)
	assert.False(t, cmp.Agree)
	assert.Len(t, cmp.Results, 2)
}

func TestFlowMismatchError(t *testing.T) {
	err := fmt.Errorf("%w: fifo=3 dinic=4", ErrFlowMismatch)

	assert.ErrorIs(t, err, ErrFlowMismatch)
	assert.True(t, apperror.Is(err, apperror.CodeFlowMismatch))
	assert.Equal(t, 3, apperror.ExitCode(err))
}

func TestSolve_ConcurrentClones(t *testing.T) {
	net := randomBipartite(5, 20, 30, 4, 1<<20)
	base := net.build(t)
	want := solveWith(t, AlgorithmDinic, net)

	var wg sync.WaitGroup
	results := make([]graph.Flow, 12)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			algo := AllAlgorithms[i%len(AllAlgorithms)]
			r, err := Solve(base.Clone(), net.source, net.sink,
				DefaultSolverOptions().WithAlgorithm(algo).WithPartitions(net.numLeft, net.numRight))
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = r.MaxFlow
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestGetAlgorithmInfo(t *testing.T) {
	info := GetAlgorithmInfo(AlgorithmHighestLabel)
	require.NotNil(t, info)
	assert.True(t, info.RequiresBipartite)
	assert.NotEmpty(t, info.TimeComplexity)

	assert.Nil(t, GetAlgorithmInfo("unknown"))

	all := GetAllAlgorithms()
	require.Len(t, all, 3)
	assert.Equal(t, AlgorithmDinic, all[2].Algorithm)
	assert.False(t, all[2].RequiresBipartite)
}
