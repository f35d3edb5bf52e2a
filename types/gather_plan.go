package types

import "fmt"

// GatherPlan lists how many rows each worker contributes to the final gather
// and where its rows start in the coordinator's destination buffer.
//
// Offsets are in elements (cells), not rows:
//
//	ElementOffset[0] = 0
//	ElementOffset[w] = ElementOffset[w-1] + RowCount[w-1]*GridSize
//
// The plan depends only on GridSize and WorkerCount, so it is computed once
// and consumed exactly once by the gatherer.
type GatherPlan struct {
	GridSize      int   `json:"gridSize"`
	RowCount      []int `json:"rowCount"`
	ElementOffset []int `json:"elementOffset"`
}

// NewGatherPlan derives the plan from the partitions of every worker.
//
// Parameters:
//   - gridSize: Number of rows and columns of the square grid
//   - workerCount: Number of cooperating workers
//
// Returns:
//   - GatherPlan: Row counts and element offsets per worker
//   - error: ErrInvalidConfig if any partition cannot be built
func NewGatherPlan(gridSize, workerCount int) (GatherPlan, error) {
	plan := GatherPlan{
		GridSize:      gridSize,
		RowCount:      make([]int, 0, max(workerCount, 0)),
		ElementOffset: make([]int, 0, max(workerCount, 0)),
	}

	offset := 0
	for w := range workerCount {
		p, err := NewPartition(gridSize, workerCount, w)
		if err != nil {
			return GatherPlan{}, err
		}
		plan.RowCount = append(plan.RowCount, p.OwnedRows())
		plan.ElementOffset = append(plan.ElementOffset, offset)
		offset += p.OwnedRows() * gridSize
	}

	if offset != gridSize*gridSize {
		return GatherPlan{}, fmt.Errorf("%w: gather plan covers %d cells, want %d",
			ErrInvalidConfig, offset, gridSize*gridSize)
	}

	return plan, nil
}

// WorkerCount returns the number of contributors.
func (g GatherPlan) WorkerCount() int {
	return len(g.RowCount)
}

// ElementCount returns the number of cells contributed by worker w.
func (g GatherPlan) ElementCount(w int) int {
	return g.RowCount[w] * g.GridSize
}

// TotalElements returns the size of the coordinator's destination buffer.
func (g GatherPlan) TotalElements() int {
	total := 0
	for w := range g.RowCount {
		total += g.ElementCount(w)
	}

	return total
}
