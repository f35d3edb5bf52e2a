// Package halo exchanges boundary rows between neighboring workers.
package halo

import (
	"context"
	"fmt"

	"github.com/arloliu/jacobi/internal/grid"
	"github.com/arloliu/jacobi/types"
)

// Exchanger refreshes a LocalGrid's ghost rows from its neighbors.
//
// Every worker performs the same four steps in the same order:
//
//  1. send last owned row down       (TagHaloDown)
//  2. receive upper ghost from above (TagHaloDown)
//  3. send first owned row up        (TagHaloUp)
//  4. receive lower ghost from below (TagHaloUp)
//
// Steps whose neighbor does not exist are skipped. The last worker has no
// lower neighbor, so it starts by receiving; the downward chain drains from
// the bottom and the upward chain from the top. The ordering completes even
// when every Send blocks until the matching Recv.
type Exchanger struct {
	comm types.Communicator
	grid *grid.LocalGrid
	up   int
	down int
}

// New creates an exchanger for grid over comm.
//
// Returns ErrInvalidRank if comm's rank does not match the grid's partition.
func New(comm types.Communicator, g *grid.LocalGrid) (*Exchanger, error) {
	part := g.Partition()
	if comm.Rank() != part.WorkerIndex || comm.Size() != part.WorkerCount {
		return nil, fmt.Errorf("%w: communicator %d/%d, partition %s",
			types.ErrInvalidRank, comm.Rank(), comm.Size(), part)
	}

	return &Exchanger{
		comm: comm,
		grid: g,
		up:   part.UpperNeighbor(),
		down: part.LowerNeighbor(),
	}, nil
}

// Exchange runs one halo exchange. Only the ghost rows are written.
func (e *Exchanger) Exchange(ctx context.Context) error {
	if e.down >= 0 {
		if err := e.comm.Send(ctx, e.down, types.TagHaloDown, e.grid.LastOwnedRow()); err != nil {
			return fmt.Errorf("send last row to %d: %w", e.down, err)
		}
	}

	if e.up >= 0 {
		if err := e.comm.Recv(ctx, e.up, types.TagHaloDown, e.grid.UpperGhost()); err != nil {
			return fmt.Errorf("receive upper ghost from %d: %w", e.up, err)
		}

		if err := e.comm.Send(ctx, e.up, types.TagHaloUp, e.grid.FirstOwnedRow()); err != nil {
			return fmt.Errorf("send first row to %d: %w", e.up, err)
		}
	}

	if e.down >= 0 {
		if err := e.comm.Recv(ctx, e.down, types.TagHaloUp, e.grid.LowerGhost()); err != nil {
			return fmt.Errorf("receive lower ghost from %d: %w", e.down, err)
		}
	}

	return nil
}
