// Package reduce turns per-worker squared deltas into the global convergence state.
package reduce

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/jacobi/types"
)

// Reducer performs the once-per-iteration global reduction.
//
// The stop decision is taken only from the reduced value, which every rank
// receives bit-identically, so all ranks leave the loop after the same
// iteration.
type Reducer struct {
	comm          types.Communicator
	threshold     float64
	maxIterations int
	iteration     int
}

// New creates a reducer.
//
// Parameters:
//   - comm: Group communicator
//   - threshold: Stop once the global norm is at or below this value
//   - maxIterations: Hard iteration limit (must be positive)
func New(comm types.Communicator, threshold float64, maxIterations int) (*Reducer, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("%w: max iterations must be positive, got %d", types.ErrInvalidConfig, maxIterations)
	}
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: threshold must be non-negative, got %g", types.ErrInvalidConfig, threshold)
	}

	return &Reducer{comm: comm, threshold: threshold, maxIterations: maxIterations}, nil
}

// Reduce all-reduces localSum and advances the iteration counter.
//
// Returns:
//   - types.ConvergenceState: Global norm and the loop decision for this iteration
//   - error: Communication failure from the collective
func (r *Reducer) Reduce(ctx context.Context, localSum float64) (types.ConvergenceState, error) {
	sum, err := r.comm.AllReduceSum(ctx, localSum)
	if err != nil {
		return types.ConvergenceState{}, fmt.Errorf("reduce iteration %d: %w", r.iteration+1, err)
	}

	r.iteration++

	return types.ConvergenceState{
		LocalSumSquares: localSum,
		GlobalNorm:      math.Sqrt(sum),
		Iteration:       r.iteration,
		Threshold:       r.threshold,
		MaxIterations:   r.maxIterations,
	}, nil
}

// Iteration returns the number of completed reductions.
func (r *Reducer) Iteration() int {
	return r.iteration
}
