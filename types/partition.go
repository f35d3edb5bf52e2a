package types

import "fmt"

// Partition describes the band of grid rows owned by one worker.
//
// A Partition is computed once per run and never changes afterwards. Every
// other component consumes its fields instead of re-deriving neighbor or
// boundary logic.
//
// Row indices are global (0..GridSize-1). Rows 0 and GridSize-1 are fixed
// boundary values and never fall inside [FirstInteriorRow, LastInteriorRow].
type Partition struct {
	GridSize    int `json:"gridSize"`
	WorkerCount int `json:"workerCount"`
	WorkerIndex int `json:"workerIndex"`

	// FirstOwnedRow and LastOwnedRow are inclusive global row bounds.
	FirstOwnedRow int `json:"firstOwnedRow"`
	LastOwnedRow  int `json:"lastOwnedRow"`

	// HasUpperGhost is false only for the first worker.
	HasUpperGhost bool `json:"hasUpperGhost"`
	// HasLowerGhost is false only for the last worker.
	HasLowerGhost bool `json:"hasLowerGhost"`

	// FirstInteriorRow and LastInteriorRow bound the rows updated by the stencil.
	// The range is empty (First > Last) when the band holds only border rows.
	FirstInteriorRow int `json:"firstInteriorRow"`
	LastInteriorRow  int `json:"lastInteriorRow"`
}

// NewPartition computes the row band owned by workerIndex.
//
// Rows are split into gridSize/workerCount rows per worker; the remaining
// gridSize%workerCount rows go one each to the last workers, so band sizes
// differ by at most one row.
//
// Parameters:
//   - gridSize: Number of rows and columns of the square grid
//   - workerCount: Number of cooperating workers
//   - workerIndex: 0-based index of the worker
//
// Returns:
//   - Partition: The worker's band
//   - error: ErrInvalidConfig if any input is out of range or gridSize < workerCount
//
// Example:
//
//	p, err := types.NewPartition(10, 3, 2)
//	// p.FirstOwnedRow == 6, p.LastOwnedRow == 9
func NewPartition(gridSize, workerCount, workerIndex int) (Partition, error) {
	if gridSize <= 0 {
		return Partition{}, fmt.Errorf("%w: grid size must be > 0, got %d", ErrInvalidConfig, gridSize)
	}
	if workerCount <= 0 {
		return Partition{}, fmt.Errorf("%w: worker count must be > 0, got %d", ErrInvalidConfig, workerCount)
	}
	if gridSize < workerCount {
		return Partition{}, fmt.Errorf("%w: grid size %d is smaller than worker count %d, some workers would own no rows",
			ErrInvalidConfig, gridSize, workerCount)
	}
	if workerIndex < 0 || workerIndex >= workerCount {
		return Partition{}, fmt.Errorf("%w: worker index %d outside [0, %d)", ErrInvalidConfig, workerIndex, workerCount)
	}

	base := gridSize / workerCount
	remainder := gridSize % workerCount
	firstExtra := workerCount - remainder

	// Workers below firstExtra own base rows, the rest own base+1.
	first := workerIndex * base
	if workerIndex > firstExtra {
		first += workerIndex - firstExtra
	}
	last := first + RowCount(gridSize, workerCount, workerIndex) - 1

	return Partition{
		GridSize:         gridSize,
		WorkerCount:      workerCount,
		WorkerIndex:      workerIndex,
		FirstOwnedRow:    first,
		LastOwnedRow:     last,
		HasUpperGhost:    workerIndex > 0,
		HasLowerGhost:    workerIndex < workerCount-1,
		FirstInteriorRow: max(first, 1),
		LastInteriorRow:  min(last, gridSize-2),
	}, nil
}

// RowCount returns how many rows workerIndex owns without building a Partition.
//
// Inputs are assumed valid; use NewPartition to validate.
func RowCount(gridSize, workerCount, workerIndex int) int {
	rows := gridSize / workerCount
	if workerIndex >= workerCount-gridSize%workerCount {
		rows++
	}

	return rows
}

// OwnedRows returns the number of rows in the band.
func (p Partition) OwnedRows() int {
	return p.LastOwnedRow - p.FirstOwnedRow + 1
}

// GhostRows returns the number of ghost rows (0, 1 or 2).
func (p Partition) GhostRows() int {
	n := 0
	if p.HasUpperGhost {
		n++
	}
	if p.HasLowerGhost {
		n++
	}

	return n
}

// LocalRows returns owned plus ghost rows, the row count of the local buffers.
func (p Partition) LocalRows() int {
	return p.OwnedRows() + p.GhostRows()
}

// HasInterior reports whether the band contains any row updated by the stencil.
func (p Partition) HasInterior() bool {
	return p.FirstInteriorRow <= p.LastInteriorRow
}

// UpperNeighbor returns the index of the worker owning the rows above, or -1.
func (p Partition) UpperNeighbor() int {
	if !p.HasUpperGhost {
		return -1
	}

	return p.WorkerIndex - 1
}

// LowerNeighbor returns the index of the worker owning the rows below, or -1.
func (p Partition) LowerNeighbor() int {
	if !p.HasLowerGhost {
		return -1
	}

	return p.WorkerIndex + 1
}

// Owns reports whether the global row belongs to the band.
func (p Partition) Owns(row int) bool {
	return row >= p.FirstOwnedRow && row <= p.LastOwnedRow
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return fmt.Sprintf("worker %d/%d rows [%d,%d] interior [%d,%d]",
		p.WorkerIndex, p.WorkerCount, p.FirstOwnedRow, p.LastOwnedRow, p.FirstInteriorRow, p.LastInteriorRow)
}
