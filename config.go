package jacobi

import (
	"fmt"
	"math"
)

// Config is the run configuration shared by every worker.
//
// Every worker must load an identical Config. Validation is local and runs
// before any message is exchanged, so a bad configuration fails the same way
// on every worker and no worker is left waiting on a peer that never started.
type Config struct {
	// GridSize is the number of rows and columns of the square grid.
	GridSize int `yaml:"gridSize"`

	// WorkerCount is the number of cooperating workers. Must not exceed GridSize.
	WorkerCount int `yaml:"workerCount"`

	// MaxIterations is the hard iteration limit.
	// Default: 100
	MaxIterations int `yaml:"maxIterations"`

	// Threshold stops the loop once the global diffnorm is at or below it.
	// 0 is valid and runs until MaxIterations (or an exact fixed point).
	// Default: 1e-4
	Threshold float64 `yaml:"threshold"`

	// CoordinatorRank receives the assembled grid.
	// Default: 0
	CoordinatorRank int `yaml:"coordinatorRank"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// GridSize and WorkerCount have no defaults; callers must set them.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		MaxIterations:   100,
		Threshold:       1e-4,
		CoordinatorRank: 0,
	}
}

// SetDefaults fills in missing configuration values.
//
// Threshold and CoordinatorRank are left alone because 0 is meaningful for both.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
}

// Validate checks configuration constraints and returns an error wrapping
// ErrInvalidConfig for invalid values.
//
// Hard Validation Rules:
//   - GridSize >= 1
//   - 1 <= WorkerCount <= GridSize (every worker owns at least one row)
//   - MaxIterations >= 1
//   - Threshold >= 0 and not NaN
//   - 0 <= CoordinatorRank < WorkerCount
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.GridSize < 1 {
		return fmt.Errorf("%w: GridSize must be >= 1, got %d", ErrInvalidConfig, cfg.GridSize)
	}

	if cfg.WorkerCount < 1 {
		return fmt.Errorf("%w: WorkerCount must be >= 1, got %d", ErrInvalidConfig, cfg.WorkerCount)
	}

	if cfg.WorkerCount > cfg.GridSize {
		return fmt.Errorf("%w: WorkerCount (%d) must not exceed GridSize (%d)",
			ErrInvalidConfig, cfg.WorkerCount, cfg.GridSize)
	}

	if cfg.MaxIterations < 1 {
		return fmt.Errorf("%w: MaxIterations must be >= 1, got %d", ErrInvalidConfig, cfg.MaxIterations)
	}

	if cfg.Threshold < 0 || math.IsNaN(cfg.Threshold) {
		return fmt.Errorf("%w: Threshold must be >= 0, got %g", ErrInvalidConfig, cfg.Threshold)
	}

	if cfg.CoordinatorRank < 0 || cfg.CoordinatorRank >= cfg.WorkerCount {
		return fmt.Errorf("%w: CoordinatorRank (%d) must be in [0, %d)",
			ErrInvalidConfig, cfg.CoordinatorRank, cfg.WorkerCount)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but unhelpful values.
//
// This is called after Validate() in NewSolver() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.GridSize < 3 {
		logger.Warn("GridSize has no interior cells; the grid never changes",
			"grid_size", cfg.GridSize)
	}

	if cfg.GridSize >= 3 && cfg.WorkerCount > cfg.GridSize-2 {
		logger.Warn("some workers own only border rows and will idle",
			"worker_count", cfg.WorkerCount,
			"interior_rows", cfg.GridSize-2,
		)
	}

	if cfg.Threshold == 0 {
		logger.Warn("Threshold is 0; the loop stops only at MaxIterations",
			"max_iterations", cfg.MaxIterations)
	}
}

// TestConfig returns a small configuration for fast tests.
//
// Returns:
//   - Config: 16x16 grid, 2 workers, 50 iterations
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.GridSize = 16
	cfg.WorkerCount = 2
	cfg.MaxIterations = 50

	return cfg
}
