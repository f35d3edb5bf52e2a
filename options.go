package jacobi

// Option configures a Solver with optional dependencies.
type Option func(*solverOptions)

// solverOptions holds optional Solver configuration.
type solverOptions struct {
	hooks       *Hooks
	metrics     MetricsCollector
	logger      Logger
	initializer Initializer
}

// WithHooks sets run event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions; nil callbacks are no-ops
//
// Returns:
//   - Option: Functional option for NewSolver
//
// Example:
//
//	hooks := &jacobi.Hooks{
//	    OnIteration: func(ctx context.Context, s jacobi.ConvergenceState) error {
//	        log.Printf("iteration %d norm %g", s.Iteration, s.GlobalNorm)
//	        return nil
//	    },
//	}
//	solver, err := jacobi.NewSolver(&cfg, comm, jacobi.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *solverOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewSolver
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *solverOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewSolver
func WithLogger(logger Logger) Option {
	return func(o *solverOptions) {
		o.logger = logger
	}
}

// WithInitializer sets the initial grid values.
//
// The default reproduces the classic per-worker fill, which depends on the
// worker count. Use a function of global coordinates when runs with
// different worker counts must start from the same grid.
//
// Parameters:
//   - init: Initializer called once per owned cell
//
// Returns:
//   - Option: Functional option for NewSolver
//
// Example:
//
//	solver, err := jacobi.NewSolver(&cfg, comm, jacobi.WithInitializer(jacobi.HotTop(100)))
func WithInitializer(init Initializer) Option {
	return func(o *solverOptions) {
		o.initializer = init
	}
}
