// Package types provides core type definitions and interfaces for the jacobi module.
//
// This package contains shared types that are used across multiple packages.
// By keeping these types in a separate package, we avoid import cycles
// between the root jacobi package and its internal implementations.
//
// Key types:
//   - Partition: Row band owned by one worker
//   - GatherPlan: Per-worker row counts and offsets for the final gather
//   - ConvergenceState: Iteration counter and reduced global norm
//   - Communicator: Message-passing primitives between workers
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
