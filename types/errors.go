package types

import "errors"

// Sentinel errors for the jacobi module.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error classes:
//   - Configuration: detected before any message passing, on every worker
//   - Allocation: local buffers cannot be sized
//   - Communication: a send, receive, reduction or gather did not complete
//
// None of them is recoverable; every failure terminates the run.

// Configuration errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCommunicatorRequired is returned when the communicator is nil.
	ErrCommunicatorRequired = errors.New("communicator is required")
)

// Allocation errors.
var (
	// ErrAllocation is returned when the local grid buffers cannot be allocated.
	ErrAllocation = errors.New("grid allocation failed")
)

// Communication errors.
var (
	// ErrCommunication is returned when a transfer or collective does not complete.
	ErrCommunication = errors.New("communication failure")

	// ErrConnectivity marks communication failures caused by a lost or
	// unreachable message server. It is always wrapped with ErrCommunication.
	ErrConnectivity = errors.New("connectivity lost")

	// ErrAborted is returned on every worker once any worker aborted the group.
	ErrAborted = errors.New("run aborted")

	// ErrClosed is returned when a communicator is used after Close.
	ErrClosed = errors.New("communicator closed")

	// ErrInvalidRank is returned when a peer rank is outside [0, Size).
	ErrInvalidRank = errors.New("invalid rank")
)

// Lifecycle errors.
var (
	// ErrAlreadyStarted is returned when Run is called twice on the same solver.
	ErrAlreadyStarted = errors.New("solver already started")
)
