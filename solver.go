package jacobi

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/jacobi/internal/gather"
	"github.com/arloliu/jacobi/internal/grid"
	"github.com/arloliu/jacobi/internal/halo"
	"github.com/arloliu/jacobi/internal/hooks"
	"github.com/arloliu/jacobi/internal/logging"
	"github.com/arloliu/jacobi/internal/metrics"
	"github.com/arloliu/jacobi/internal/reduce"
	"github.com/arloliu/jacobi/types"
)

// Solver runs the relaxation for one worker.
//
// Each worker of a run creates its own Solver over its own Communicator,
// with an identical Config, and calls Run once.
type Solver struct {
	cfg  Config
	comm Communicator
	part Partition
	plan GatherPlan

	init    Initializer
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger

	started atomic.Bool
}

// NewSolver validates the configuration and prepares a worker.
//
// Nothing is sent or received here; a configuration error is reported
// before the worker talks to any peer.
//
// Parameters:
//   - cfg: Run configuration (defaults applied in place)
//   - comm: This worker's communicator; its Size must equal WorkerCount
//   - opts: Optional logger, metrics, hooks and initializer
//
// Returns:
//   - *Solver: Ready solver
//   - error: ErrInvalidConfig or ErrCommunicatorRequired
func NewSolver(cfg *Config, comm Communicator, opts ...Option) (*Solver, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if comm == nil {
		return nil, ErrCommunicatorRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if comm.Size() != cfg.WorkerCount {
		return nil, fmt.Errorf("%w: communicator has %d workers, config says %d",
			ErrInvalidConfig, comm.Size(), cfg.WorkerCount)
	}

	part, err := types.NewPartition(cfg.GridSize, cfg.WorkerCount, comm.Rank())
	if err != nil {
		return nil, err
	}
	plan, err := types.NewGatherPlan(cfg.GridSize, cfg.WorkerCount)
	if err != nil {
		return nil, err
	}

	options := &solverOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	initializer := options.initializer
	if initializer == nil {
		initializer = grid.ReferenceInit
	}

	return &Solver{
		cfg:     *cfg,
		comm:    comm,
		part:    part,
		plan:    plan,
		init:    initializer,
		hooks:   hooks.Fill(options.hooks),
		metrics: metricsCollector,
		logger:  loggerInstance,
	}, nil
}

// Partition returns this worker's row band.
func (s *Solver) Partition() Partition {
	return s.part
}

// GatherPlan returns the row counts and offsets used by the final gather.
func (s *Solver) GatherPlan() GatherPlan {
	return s.plan
}

// Run executes the whole relaxation on this worker.
//
// Phases: allocate and fill the band, barrier, then iterate
// {halo exchange, stencil, reduction} until the global norm reaches the
// threshold or MaxIterations is hit, barrier, and gather onto the
// coordinator. Elapsed covers the section between the two barriers.
//
// Any failure aborts the whole group through the communicator, so peers
// fail with ErrAborted instead of waiting forever.
//
// Returns:
//   - *Result: This worker's outcome; Grid and Checksum only on the coordinator
//   - error: ErrAllocation, ErrCommunication, ErrAborted, a hook error, or ErrAlreadyStarted
func (s *Solver) Run(ctx context.Context) (*Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	res, err := s.run(ctx)
	if err == nil {
		return res, nil
	}

	s.logger.Error("run failed", "worker_index", s.part.WorkerIndex, "error", err)
	if !errors.Is(err, ErrAborted) {
		if abortErr := s.comm.Abort(context.WithoutCancel(ctx), err); abortErr != nil {
			s.logger.Warn("abort broadcast failed", "worker_index", s.part.WorkerIndex, "error", abortErr)
		}
	}
	if hookErr := s.hooks.OnError(ctx, err); hookErr != nil {
		s.logger.Warn("error hook failed", "error", hookErr)
	}

	return nil, err
}

func (s *Solver) run(ctx context.Context) (*Result, error) {
	rank := s.part.WorkerIndex
	coordinator := rank == s.cfg.CoordinatorRank

	g, err := grid.New(s.part)
	if err != nil {
		return nil, err
	}
	if coordinator && s.plan.TotalElements() > grid.MaxCells {
		return nil, fmt.Errorf("%w: assembled grid of %d cells exceeds limit of %d",
			ErrAllocation, s.plan.TotalElements(), grid.MaxCells)
	}
	g.Fill(s.init)

	exchanger, err := halo.New(s.comm, g)
	if err != nil {
		return nil, err
	}
	reducer, err := reduce.New(s.comm, s.cfg.Threshold, s.cfg.MaxIterations)
	if err != nil {
		return nil, err
	}
	gatherer, err := gather.New(s.comm, s.plan, s.cfg.CoordinatorRank)
	if err != nil {
		return nil, err
	}

	s.logger.Info("worker starting",
		"worker_index", rank,
		"first_row", s.part.FirstOwnedRow,
		"last_row", s.part.LastOwnedRow,
		"grid_size", s.cfg.GridSize,
	)

	if err := s.comm.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("initial barrier: %w", err)
	}
	start := time.Now()

	var state ConvergenceState
	for {
		phase := time.Now()
		if err := exchanger.Exchange(ctx); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", reducer.Iteration()+1, err)
		}
		s.metrics.RecordPhaseDuration(types.PhaseHalo, time.Since(phase).Seconds())

		phase = time.Now()
		localSum := g.Step()
		s.metrics.RecordPhaseDuration(types.PhaseStencil, time.Since(phase).Seconds())

		phase = time.Now()
		state, err = reducer.Reduce(ctx, localSum)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordPhaseDuration(types.PhaseReduce, time.Since(phase).Seconds())
		s.metrics.RecordIteration(rank, state.Iteration, state.GlobalNorm)

		s.logger.Debug("iteration complete",
			"worker_index", rank,
			"iteration", state.Iteration,
			"global_norm", state.GlobalNorm,
		)

		if err := s.hooks.OnIteration(ctx, state); err != nil {
			return nil, fmt.Errorf("iteration hook: %w", err)
		}

		if state.Done() {
			break
		}
	}

	if err := s.comm.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("final barrier: %w", err)
	}
	elapsed := time.Since(start)

	phase := time.Now()
	cells, err := gatherer.Gather(ctx, g)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPhaseDuration(types.PhaseGather, time.Since(phase).Seconds())

	res := &Result{
		Partition:  s.part,
		Iterations: state.Iteration,
		GlobalNorm: state.GlobalNorm,
		Converged:  state.Converged(),
		Elapsed:    elapsed,
		Grid:       cells,
	}
	if cells != nil {
		res.Checksum = grid.Checksum(cells)
	}

	s.metrics.RecordRun(rank, res.Iterations, elapsed.Seconds(), res.Converged)
	s.logger.Info("worker finished",
		"worker_index", rank,
		"iterations", res.Iterations,
		"global_norm", res.GlobalNorm,
		"converged", res.Converged,
		"elapsed", elapsed,
	)

	if err := s.hooks.OnComplete(ctx, res); err != nil {
		return nil, fmt.Errorf("complete hook: %w", err)
	}

	return res, nil
}

// ReferenceInit is the classic per-worker fill:
//
//	((localRow*GridSize + col + 1) mod (WorkerCount + 1)) + WorkerIndex
//
// It is the default Initializer.
func ReferenceInit(p Partition, row, col int) float32 {
	return grid.ReferenceInit(p, row, col)
}

// GlobalInit builds an Initializer from a function of global coordinates.
func GlobalInit(fn func(row, col int) float32) Initializer {
	return grid.GlobalInit(fn)
}

// HotTop holds the top border at value and every other cell at zero.
func HotTop(value float32) Initializer {
	return grid.HotTopInit(value)
}
