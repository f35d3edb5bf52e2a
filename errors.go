package jacobi

import "github.com/arloliu/jacobi/types"

// Sentinel errors returned by the Solver and the transports.
//
// Every failure is fatal to the run; these classify it for the caller.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrCommunicatorRequired is returned when the communicator is nil.
	ErrCommunicatorRequired = types.ErrCommunicatorRequired

	// ErrAllocation is returned when grid buffers cannot be allocated.
	ErrAllocation = types.ErrAllocation

	// ErrCommunication is returned when a transfer or collective fails.
	ErrCommunication = types.ErrCommunication

	// ErrConnectivity marks communication failures caused by the message server
	// being unreachable; it always comes wrapped with ErrCommunication.
	ErrConnectivity = types.ErrConnectivity

	// ErrAborted is returned on every worker after any worker aborted the run.
	ErrAborted = types.ErrAborted

	// ErrClosed is returned when a communicator is used after Close.
	ErrClosed = types.ErrClosed

	// ErrInvalidRank is returned for a peer rank outside the group.
	ErrInvalidRank = types.ErrInvalidRank

	// ErrAlreadyStarted is returned when Run is called twice on the same solver.
	ErrAlreadyStarted = types.ErrAlreadyStarted
)
