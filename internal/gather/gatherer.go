// Package gather reassembles the distributed grid on the coordinating worker.
package gather

import (
	"context"
	"fmt"

	"github.com/arloliu/jacobi/internal/grid"
	"github.com/arloliu/jacobi/types"
)

// Gatherer collects every worker's owned rows into one row-major buffer.
//
// Contributions differ in size whenever GridSize is not a multiple of the
// worker count; the GatherPlan carries each worker's row count and offset.
// Rows travel one message each, so no message exceeds GridSize cells.
type Gatherer struct {
	comm types.Communicator
	plan types.GatherPlan
	root int
}

// New creates a gatherer that delivers the grid to root.
func New(comm types.Communicator, plan types.GatherPlan, root int) (*Gatherer, error) {
	if plan.WorkerCount() != comm.Size() {
		return nil, fmt.Errorf("%w: gather plan for %d workers, communicator has %d",
			types.ErrInvalidConfig, plan.WorkerCount(), comm.Size())
	}
	if root < 0 || root >= comm.Size() {
		return nil, fmt.Errorf("%w: coordinator %d", types.ErrInvalidRank, root)
	}

	return &Gatherer{comm: comm, plan: plan, root: root}, nil
}

// Gather sends the owned rows of g to the coordinator.
//
// Returns:
//   - []float32: The assembled GridSize x GridSize grid on the coordinator, nil elsewhere
//   - error: Communication failure
func (ga *Gatherer) Gather(ctx context.Context, g *grid.LocalGrid) ([]float32, error) {
	rank := ga.comm.Rank()
	if g.Partition().OwnedRows() != ga.plan.RowCount[rank] {
		return nil, fmt.Errorf("%w: band has %d rows, plan expects %d",
			types.ErrInvalidConfig, g.Partition().OwnedRows(), ga.plan.RowCount[rank])
	}

	if rank != ga.root {
		return nil, ga.send(ctx, g)
	}

	cols := ga.plan.GridSize
	dest := make([]float32, ga.plan.TotalElements())
	copy(dest[ga.plan.ElementOffset[rank]:], g.Owned())

	for w := range ga.plan.WorkerCount() {
		if w == rank {
			continue
		}
		base := ga.plan.ElementOffset[w]
		for r := range ga.plan.RowCount[w] {
			row := dest[base+r*cols : base+(r+1)*cols]
			if err := ga.comm.Recv(ctx, w, types.TagGather, row); err != nil {
				return nil, fmt.Errorf("gather row %d of worker %d: %w", r, w, err)
			}
		}
	}

	return dest, nil
}

func (ga *Gatherer) send(ctx context.Context, g *grid.LocalGrid) error {
	part := g.Partition()
	for row := part.FirstOwnedRow; row <= part.LastOwnedRow; row++ {
		if err := ga.comm.Send(ctx, ga.root, types.TagGather, g.Row(row)); err != nil {
			return fmt.Errorf("gather send row %d: %w", row, err)
		}
	}

	return nil
}
