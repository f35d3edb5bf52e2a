package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/jacobi/types"
)

// Comm is one member of a Group. It implements types.Communicator.
type Comm struct {
	group *Group
	rank  int
}

// Compile-time assertion that Comm implements Communicator.
var _ types.Communicator = (*Comm)(nil)

// Rank returns this member's index.
func (c *Comm) Rank() int {
	return c.rank
}

// Size returns the group size.
func (c *Comm) Size() int {
	return c.group.size
}

// Send hands a copy of data to dst, blocking until dst receives it.
func (c *Comm) Send(ctx context.Context, dst int, tag types.Tag, data []float32) error {
	if err := c.checkPeer(dst); err != nil {
		return err
	}

	msg := make([]float32, len(data))
	copy(msg, data)

	select {
	case c.group.link(c.rank, dst, tag) <- msg:
		c.group.metrics.RecordMessage("sent", tag.String(), 4*len(msg))
		return nil
	case <-c.group.aborted:
		return c.group.abortErr()
	case <-ctx.Done():
		return fmt.Errorf("%w: send %s to %d: %w", types.ErrCommunication, tag, dst, ctx.Err())
	}
}

// Recv blocks until src sends on tag and copies the message into buf.
func (c *Comm) Recv(ctx context.Context, src int, tag types.Tag, buf []float32) error {
	if err := c.checkPeer(src); err != nil {
		return err
	}

	select {
	case msg := <-c.group.link(src, c.rank, tag):
		if len(msg) != len(buf) {
			return fmt.Errorf("%w: recv %s from %d: got %d values, want %d",
				types.ErrCommunication, tag, src, len(msg), len(buf))
		}
		copy(buf, msg)
		c.group.metrics.RecordMessage("received", tag.String(), 4*len(msg))

		return nil
	case <-c.group.aborted:
		return c.group.abortErr()
	case <-ctx.Done():
		return fmt.Errorf("%w: recv %s from %d: %w", types.ErrCommunication, tag, src, ctx.Err())
	}
}

// AllReduceSum returns the rank-ordered sum of every member's value.
func (c *Comm) AllReduceSum(ctx context.Context, value float64) (float64, error) {
	return c.collective(ctx, types.TagReduce, value)
}

// Barrier returns once every member has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	_, err := c.collective(ctx, types.TagBarrier, 0)

	return err
}

// Abort stops the whole group. Blocked and later operations on every member
// fail with ErrAborted wrapping cause.
func (c *Comm) Abort(_ context.Context, cause error) error {
	if cause == nil {
		cause = errors.New("no cause given")
	}
	if c.group.abort(c.rank, cause) {
		c.group.logger.Warn("group aborted", "rank", c.rank, "error", cause)
	}
	c.group.metrics.RecordAbort(c.rank)

	return nil
}

func (c *Comm) collective(ctx context.Context, tag types.Tag, value float64) (float64, error) {
	select {
	case <-c.group.aborted:
		return 0, c.group.abortErr()
	default:
	}

	r := c.group.join(c.rank, value)

	select {
	case <-r.done:
		return r.sum, nil
	case <-c.group.aborted:
		return 0, c.group.abortErr()
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %s: %w", types.ErrCommunication, tag, ctx.Err())
	}
}

func (c *Comm) checkPeer(rank int) error {
	if rank < 0 || rank >= c.group.size || rank == c.rank {
		return fmt.Errorf("%w: %d (self %d, size %d)", types.ErrInvalidRank, rank, c.rank, c.group.size)
	}

	return nil
}
