package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvergenceState_Done(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		state     ConvergenceState
		done      bool
		converged bool
	}{
		{"before first iteration", ConvergenceState{Iteration: 0, MaxIterations: 10, Threshold: 1e-4}, false, false},
		{"norm above threshold", ConvergenceState{Iteration: 3, GlobalNorm: 0.5, MaxIterations: 10, Threshold: 1e-4}, false, false},
		{"norm at threshold", ConvergenceState{Iteration: 3, GlobalNorm: 1e-4, MaxIterations: 10, Threshold: 1e-4}, true, true},
		{"iteration cap", ConvergenceState{Iteration: 10, GlobalNorm: 2, MaxIterations: 10, Threshold: 1e-4}, true, false},
		{"zero threshold never converges on positive norm", ConvergenceState{Iteration: 4, GlobalNorm: 1e-12, MaxIterations: 10}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.done, tt.state.Done())
			require.Equal(t, tt.converged, tt.state.Converged())
		})
	}
}

func TestTag_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "halo-down", TagHaloDown.String())
	require.Equal(t, "halo-up", TagHaloUp.String())
	require.Equal(t, "gather", TagGather.String())
	require.Equal(t, "reduce", TagReduce.String())
	require.Equal(t, "barrier", TagBarrier.String())
	require.Equal(t, "tag-42", Tag(42).String())
}
