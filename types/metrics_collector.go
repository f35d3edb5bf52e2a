package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Methods may be called from several worker goroutines at once when workers
// share a process, so they must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	SolverMetrics
	TransportMetrics
}

// Phase names used with RecordPhaseDuration.
const (
	PhaseHalo    = "halo"
	PhaseStencil = "stencil"
	PhaseReduce  = "reduce"
	PhaseGather  = "gather"
)

// SolverMetrics defines metrics for the relaxation loop.
type SolverMetrics interface {
	// RecordIteration records a completed iteration.
	//
	// Parameters:
	//   - workerIndex: Rank of the reporting worker
	//   - iteration: 1-based iteration number
	//   - globalNorm: Reduced norm after this iteration
	RecordIteration(workerIndex, iteration int, globalNorm float64)

	// RecordPhaseDuration records the time spent in one phase of an iteration.
	//
	// Parameters:
	//   - phase: One of PhaseHalo, PhaseStencil, PhaseReduce, PhaseGather
	//   - duration: Time taken in seconds
	RecordPhaseDuration(phase string, duration float64)

	// RecordRun records the end of a run on one worker.
	//
	// Parameters:
	//   - workerIndex: Rank of the reporting worker
	//   - iterations: Iterations executed
	//   - duration: Timed section in seconds
	//   - converged: true if the threshold stopped the loop
	RecordRun(workerIndex, iterations int, duration float64, converged bool)
}

// TransportMetrics defines metrics for message passing.
type TransportMetrics interface {
	// RecordMessage records one message.
	//
	// Parameters:
	//   - direction: "sent" or "received"
	//   - tag: Logical channel (Tag.String())
	//   - bytes: Encoded payload size
	RecordMessage(direction, tag string, bytes int)

	// RecordAbort records a group abort observed by this worker.
	RecordAbort(workerIndex int)
}
