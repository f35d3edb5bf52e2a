package types

import (
	"context"
	"fmt"
)

// Tag distinguishes logical channels between the same pair of workers.
//
// A row travelling downward (to the next worker) and a row travelling upward
// (to the previous worker) on the same link must never be confused, so each
// direction has its own tag.
type Tag uint8

const (
	// TagHaloDown carries a worker's last owned row to the worker below.
	TagHaloDown Tag = iota
	// TagHaloUp carries a worker's first owned row to the worker above.
	TagHaloUp
	// TagGather carries owned rows to the coordinator after the loop.
	TagGather
	// TagReduce carries a reduction contribution. Reserved for transports.
	TagReduce
	// TagBarrier carries a barrier token. Reserved for transports.
	TagBarrier
)

// String implements fmt.Stringer.
func (t Tag) String() string {
	switch t {
	case TagHaloDown:
		return "halo-down"
	case TagHaloUp:
		return "halo-up"
	case TagGather:
		return "gather"
	case TagReduce:
		return "reduce"
	case TagBarrier:
		return "barrier"
	default:
		return fmt.Sprintf("tag-%d", uint8(t))
	}
}

// Communicator is the message-passing surface a worker uses to talk to its peers.
//
// Semantics:
//   - Send and Recv are point-to-point and ordered per (src, dst, tag).
//   - Send may block until the matching Recv starts (rendezvous transports).
//   - AllReduceSum is collective: every rank must call it the same number of
//     times, and every rank receives the bit-identical sum.
//   - Barrier is collective and returns once every rank has entered it.
//   - Abort is group-wide: blocked and future operations on every rank fail
//     with ErrAborted.
//
// There are no timeouts on the data path. Cancellation comes only from ctx
// or from Abort.
type Communicator interface {
	// Rank returns this worker's 0-based index.
	Rank() int

	// Size returns the number of workers in the group.
	Size() int

	// Send delivers data to dst on the given tag.
	//
	// The slice may be reused by the caller once Send returns.
	Send(ctx context.Context, dst int, tag Tag, data []float32) error

	// Recv fills buf with the next message from src on the given tag.
	//
	// Returns ErrCommunication if the message length differs from len(buf).
	Recv(ctx context.Context, src int, tag Tag, buf []float32) error

	// AllReduceSum combines value from every rank and returns the sum.
	AllReduceSum(ctx context.Context, value float64) (float64, error)

	// Barrier blocks until every rank has entered the barrier.
	Barrier(ctx context.Context) error

	// Abort stops the whole group because of cause.
	Abort(ctx context.Context, cause error) error
}
