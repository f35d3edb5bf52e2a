package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/jacobi"
	"github.com/arloliu/jacobi/internal/natsutil"
	"github.com/arloliu/jacobi/internal/progress"
	"github.com/arloliu/jacobi/transport/local"
	"github.com/arloliu/jacobi/transport/natscomm"
)

// environment carries the ambient dependencies shared by every worker of
// this process.
type environment struct {
	logger  jacobi.Logger
	metrics jacobi.MetricsCollector
}

func (env *environment) solverOptions() []jacobi.Option {
	return []jacobi.Option{
		jacobi.WithLogger(env.logger),
		jacobi.WithMetrics(env.metrics),
	}
}

// runLocal runs every worker as a goroutine over an in-process group.
func runLocal(ctx context.Context, cfg *appConfig, env *environment) (*jacobi.Result, error) {
	group := local.NewGroup(cfg.Solver.WorkerCount,
		local.WithLogger(env.logger),
		local.WithMetrics(env.metrics),
	)

	results := make([]*jacobi.Result, cfg.Solver.WorkerCount)

	var eg errgroup.Group
	for _, comm := range group.Comms() {
		solverCfg := cfg.Solver
		solver, err := jacobi.NewSolver(&solverCfg, comm, env.solverOptions()...)
		if err != nil {
			return nil, err
		}

		eg.Go(func() error {
			res, err := solver.Run(ctx)
			results[comm.Rank()] = res

			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results[cfg.Solver.CoordinatorRank], nil
}

// runAllInOne starts an embedded NATS server and runs every worker as a
// goroutine with its own connection.
func runAllInOne(ctx context.Context, cfg *appConfig, env *environment) (*jacobi.Result, error) {
	storeDir, err := os.MkdirTemp("", "jacobi-nats-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream store: %w", err)
	}
	defer os.RemoveAll(storeDir)

	ns, err := natsutil.StartEmbedded(natsutil.EmbeddedOptions{StoreDir: storeDir})
	if err != nil {
		return nil, err
	}
	defer ns.Shutdown()

	env.logger.Info("embedded NATS started", "url", ns.ClientURL())

	natsCfg := cfg.NATS
	natsCfg.URL = ns.ClientURL()

	results := make([]*jacobi.Result, cfg.Solver.WorkerCount)

	var eg errgroup.Group
	for rank := range cfg.Solver.WorkerCount {
		eg.Go(func() error {
			res, err := runNATSWorker(ctx, cfg, natsCfg, rank, env)
			results[rank] = res

			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results[cfg.Solver.CoordinatorRank], nil
}

// runNATS runs this process as one worker of a multi-process run.
func runNATS(ctx context.Context, cfg *appConfig, env *environment) (*jacobi.Result, error) {
	return runNATSWorker(ctx, cfg, cfg.NATS, cfg.Rank, env)
}

// runNATSWorker connects, joins the run, solves and leaves. Progress is
// published to the run bucket while the solver iterates.
func runNATSWorker(ctx context.Context, cfg *appConfig, natsCfg natscomm.Config, rank int, env *environment) (*jacobi.Result, error) {
	nc, err := nats.Connect(natsCfg.URL, nats.Name(fmt.Sprintf("jacobi-%s-%d", natsCfg.RunID, rank)))
	if err != nil {
		return nil, natsutil.Classify("connect "+natsCfg.URL, err)
	}
	defer nc.Close()

	comm, err := natscomm.Open(ctx, nc, natsCfg, cfg.Solver.WorkerCount, rank,
		natscomm.WithLogger(env.logger),
		natscomm.WithMetrics(env.metrics),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := comm.Close(context.WithoutCancel(ctx)); err != nil {
			env.logger.Warn("communicator close failed", "rank", comm.Rank(), "error", err)
		}
	}()

	publisher := progress.New(comm.KV(), comm.Rank(), comm.Config().ProgressInterval, env.logger)
	if err := publisher.Start(ctx); err != nil {
		env.logger.Warn("progress publishing disabled", "rank", comm.Rank(), "error", err)
		publisher = nil
	}

	opts := env.solverOptions()
	if publisher != nil {
		opts = append(opts, jacobi.WithHooks(&jacobi.Hooks{OnIteration: publisher.OnIteration}))
		defer func() {
			if err := publisher.Stop(context.WithoutCancel(ctx)); err != nil {
				env.logger.Warn("final progress publish failed", "rank", comm.Rank(), "error", err)
			}
		}()
	}

	solverCfg := cfg.Solver
	solver, err := jacobi.NewSolver(&solverCfg, comm, opts...)
	if err != nil {
		return nil, err
	}

	return solver.Run(ctx)
}
