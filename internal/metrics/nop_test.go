package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/jacobi/types"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_SolverMetrics(t *testing.T) {
	metrics := NewNop()

	// Should not panic with various inputs
	require.NotPanics(t, func() {
		metrics.RecordIteration(0, 1, 3.01)
		metrics.RecordIteration(-1, -1, -1)
		metrics.RecordPhaseDuration(types.PhaseHalo, 0.001)
		metrics.RecordPhaseDuration("", 0)
		metrics.RecordRun(2, 100, 1.5, false)
		metrics.RecordRun(0, 0, 0, true)
	})
}

func TestNopMetrics_TransportMetrics(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordMessage("sent", types.TagHaloDown.String(), 4096)
		metrics.RecordMessage("received", "", 0)
		metrics.RecordAbort(3)
	})
}

func TestNopMetrics_ImplementsInterface(t *testing.T) {
	var _ types.MetricsCollector = NewNop()
}
