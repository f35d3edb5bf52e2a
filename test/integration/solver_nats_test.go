package integration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/jacobi"
	"github.com/arloliu/jacobi/internal/kvutil"
	"github.com/arloliu/jacobi/internal/progress"
	jacobitest "github.com/arloliu/jacobi/testing"
	"github.com/arloliu/jacobi/transport/local"
	"github.com/arloliu/jacobi/transport/natscomm"
)

// natsRun holds the outcome of one worker joined over NATS.
type natsRun struct {
	result *jacobi.Result
	err    error
}

// runOverNATS starts WorkerCount workers that claim their ranks from the
// run bucket, each on its own connection, and runs the solver on all of them.
func runOverNATS(t *testing.T, ns *server.Server, runID string, cfg jacobi.Config,
	optsFor func(rank int) []jacobi.Option,
) map[int]natsRun {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	natsCfg := natscomm.Config{RunID: runID, StartupTimeout: 10 * time.Second}

	var mu sync.Mutex
	runs := make(map[int]natsRun)
	var openErrs []error

	var wg sync.WaitGroup
	for range cfg.WorkerCount {
		nc := jacobitest.Connect(t, ns)
		wg.Add(1)
		go func() {
			defer wg.Done()

			comm, err := natscomm.Open(ctx, nc, natsCfg, cfg.WorkerCount, natscomm.AnyRank,
				natscomm.WithLogger(jacobitest.NewTestLogger(t)))
			if err != nil {
				mu.Lock()
				openErrs = append(openErrs, err)
				mu.Unlock()

				return
			}
			defer comm.Close(context.Background())

			var opts []jacobi.Option
			if optsFor != nil {
				opts = optsFor(comm.Rank())
			}

			workerCfg := cfg
			solver, err := jacobi.NewSolver(&workerCfg, comm, opts...)
			var res *jacobi.Result
			if err == nil {
				res, err = solver.Run(ctx)
			}

			mu.Lock()
			runs[comm.Rank()] = natsRun{result: res, err: err}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.NoError(t, ctx.Err(), "watchdog expired")
	require.Empty(t, openErrs)
	require.Len(t, runs, cfg.WorkerCount, "every rank claimed exactly once")

	return runs
}

func runOverLocal(t *testing.T, cfg jacobi.Config) *jacobi.Result {
	t.Helper()

	group := local.NewGroup(cfg.WorkerCount)
	results := make([]*jacobi.Result, cfg.WorkerCount)

	var eg errgroup.Group
	for _, comm := range group.Comms() {
		workerCfg := cfg
		solver, err := jacobi.NewSolver(&workerCfg, comm)
		require.NoError(t, err)

		eg.Go(func() error {
			res, err := solver.Run(context.Background())
			results[comm.Rank()] = res

			return err
		})
	}
	require.NoError(t, eg.Wait())

	return results[cfg.CoordinatorRank]
}

func TestSolverOverNATS_MatchesLocalTransport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ns, _ := jacobitest.StartEmbeddedNATS(t)
	cfg := jacobi.Config{GridSize: 23, WorkerCount: 4, MaxIterations: 30, Threshold: 0, CoordinatorRank: 1}

	t.Log("Running over the in-process transport...")
	want := runOverLocal(t, cfg)

	t.Log("Running over NATS with claimed ranks...")
	runs := runOverNATS(t, ns, "match", cfg, nil)

	for rank, run := range runs {
		require.NoError(t, run.err, "rank %d", rank)
		require.Equal(t, 30, run.result.Iterations)
		require.Equal(t, want.GlobalNorm, run.result.GlobalNorm, "reduction is rank ordered on both transports")
	}

	coord := runs[cfg.CoordinatorRank].result
	require.True(t, coord.IsCoordinator())
	require.Equal(t, want.Grid, coord.Grid)
	require.Equal(t, want.Checksum, coord.Checksum)
}

func TestSolverOverNATS_FailureAbortsEveryWorker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ns, _ := jacobitest.StartEmbeddedNATS(t)
	cfg := jacobi.Config{GridSize: 16, WorkerCount: 3, MaxIterations: 50, Threshold: 0}
	boom := errors.New("worker crashed")

	runs := runOverNATS(t, ns, "abort", cfg, func(rank int) []jacobi.Option {
		if rank != 2 {
			return nil
		}

		return []jacobi.Option{jacobi.WithHooks(&jacobi.Hooks{
			OnIteration: func(_ context.Context, s jacobi.ConvergenceState) error {
				if s.Iteration == 5 {
					return boom
				}

				return nil
			},
		})}
	})

	require.ErrorIs(t, runs[2].err, boom)
	for _, rank := range []int{0, 1} {
		require.ErrorIs(t, runs[rank].err, jacobi.ErrAborted, "rank %d", rank)
		require.Nil(t, runs[rank].result)
	}
}

func TestSolverOverNATS_PublishesProgress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Parallel()

	ns, nc := jacobitest.StartEmbeddedNATS(t)
	cfg := jacobi.Config{GridSize: 12, WorkerCount: 2, MaxIterations: 8, Threshold: 0}
	natsCfg := natscomm.Config{RunID: "progress", StartupTimeout: 10 * time.Second, ProgressInterval: 20 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var eg errgroup.Group
	for rank := range cfg.WorkerCount {
		conn := jacobitest.Connect(t, ns)
		eg.Go(func() error {
			comm, err := natscomm.Open(ctx, conn, natsCfg, cfg.WorkerCount, rank)
			if err != nil {
				return err
			}
			defer comm.Close(context.Background())

			pub := progress.New(comm.KV(), rank, comm.Config().ProgressInterval, jacobitest.NewTestLogger(t))
			if err := pub.Start(ctx); err != nil {
				return err
			}

			workerCfg := cfg
			solver, err := jacobi.NewSolver(&workerCfg, comm,
				jacobi.WithHooks(&jacobi.Hooks{OnIteration: pub.OnIteration}))
			if err != nil {
				return err
			}
			if _, err := solver.Run(ctx); err != nil {
				return err
			}

			return pub.Stop(ctx)
		})
	}
	require.NoError(t, eg.Wait())

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	kv, err := js.KeyValue(ctx, kvutil.BucketName("jacobi", "progress"))
	require.NoError(t, err)

	for rank := range cfg.WorkerCount {
		entry, err := kv.Get(ctx, kvutil.RankKey(kvutil.ProgressKeyPrefix, rank))
		require.NoError(t, err, "progress key of rank %d", rank)

		snap, err := progress.ParseSnapshot(entry.Value())
		require.NoError(t, err)
		require.Equal(t, 8, snap.Iteration)
		require.True(t, snap.Done)
	}
}
