// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/jacobi/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	solver, err := jacobi.NewSolver(&cfg, comm, jacobi.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// SolverMetrics implementation

// RecordIteration discards the iteration metric.
func (n *NopMetrics) RecordIteration(_ /* workerIndex */, _ /* iteration */ int, _ /* globalNorm */ float64) {
	// No-op
}

// RecordPhaseDuration discards the phase duration metric.
func (n *NopMetrics) RecordPhaseDuration(_ /* phase */ string, _ /* duration */ float64) {
	// No-op
}

// RecordRun discards the run metric.
func (n *NopMetrics) RecordRun(_ /* workerIndex */, _ /* iterations */ int, _ /* duration */ float64, _ /* converged */ bool) {
	// No-op
}

// TransportMetrics implementation

// RecordMessage discards the message metric.
func (n *NopMetrics) RecordMessage(_ /* direction */, _ /* tag */ string, _ /* bytes */ int) {
	// No-op
}

// RecordAbort discards the abort metric.
func (n *NopMetrics) RecordAbort(_ /* workerIndex */ int) {
	// No-op
}
