package types

import "time"

// Result is the outcome of one worker's run.
//
// Grid and Checksum are only populated on the coordinating worker.
type Result struct {
	Partition  Partition     `json:"partition"`
	Iterations int           `json:"iterations"`
	GlobalNorm float64       `json:"globalNorm"`
	Converged  bool          `json:"converged"`
	Elapsed    time.Duration `json:"elapsed"`

	// Grid is the reassembled GridSize x GridSize buffer in row-major order.
	Grid []float32 `json:"grid,omitempty"`
	// Checksum is the xxh3 hash of Grid.
	Checksum uint64 `json:"checksum,omitempty"`
}

// IsCoordinator reports whether this result carries the assembled grid.
func (r *Result) IsCoordinator() bool {
	return r != nil && r.Grid != nil
}

// At returns the assembled cell at (row, col). Only valid on the coordinator.
func (r *Result) At(row, col int) float32 {
	return r.Grid[row*r.Partition.GridSize+col]
}

// Initializer returns the initial value of the cell at global (row, col) for
// the worker described by p. It is called only for owned cells.
type Initializer func(p Partition, row, col int) float32
