package reduce

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/jacobi/transport/local"
	"github.com/arloliu/jacobi/types"
)

func TestNew_Validation(t *testing.T) {
	comm := local.NewGroup(1).Comm(0)

	_, err := New(comm, 1e-4, 0)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(comm, -1, 10)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(comm, math.NaN(), 10)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	r, err := New(comm, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, r.Iteration())
}

func TestReducer_ScenarioNorm(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Local sums from the two bands of the G=4, P=2 scenario.
	locals := []float64{4.0625, 5}
	group := local.NewGroup(2)
	states := make([]types.ConvergenceState, 2)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, comm := range group.Comms() {
		r, err := New(comm, 1e-4, 1)
		require.NoError(t, err)

		eg.Go(func() error {
			state, err := r.Reduce(egCtx, locals[comm.Rank()])
			states[comm.Rank()] = state

			return err
		})
	}
	require.NoError(t, eg.Wait())

	for rank, s := range states {
		assert.InDelta(t, 3.0103986446980004, s.GlobalNorm, 1e-12, "rank %d", rank)
		assert.Equal(t, locals[rank], s.LocalSumSquares)
		assert.Equal(t, 1, s.Iteration)
		assert.True(t, s.Done(), "max iterations reached")
		assert.False(t, s.Converged())
	}
	assert.Equal(t, states[0].GlobalNorm, states[1].GlobalNorm)
}

func TestReducer_StopsOnThreshold(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	group := local.NewGroup(3)
	sums := []float64{1, 0.25, 1e-10} // global norms 1, 0.5, 1e-5

	iterations := make([]int, 3)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, comm := range group.Comms() {
		r, err := New(comm, 1e-4, 100)
		require.NoError(t, err)

		eg.Go(func() error {
			for _, s := range sums {
				state, err := r.Reduce(egCtx, s/3)
				if err != nil {
					return err
				}
				if state.Done() {
					iterations[comm.Rank()] = state.Iteration
					return nil
				}
			}

			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, []int{3, 3, 3}, iterations)
}

func TestReducer_Aborted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	group := local.NewGroup(2)
	r, err := New(group.Comm(0), 0, 10)
	require.NoError(t, err)

	require.NoError(t, group.Comm(1).Abort(ctx, assert.AnError))

	_, err = r.Reduce(ctx, 1)
	require.ErrorIs(t, err, types.ErrAborted)
	assert.Zero(t, r.Iteration())
}
