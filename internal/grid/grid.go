// Package grid holds a worker's local band of the global grid.
//
// A LocalGrid stores (owned + ghost) rows of GridSize float32 cells in two
// flat row-major buffers, current and next. Ghost rows sit immediately
// outside the owned range:
//
//	local row 0              upper ghost (absent on the first worker)
//	local rows 1..owned      owned rows FirstOwnedRow..LastOwnedRow
//	local row owned+1        lower ghost (absent on the last worker)
//
// All accessors take global row indices; the translation to local rows
// lives only here.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/arloliu/jacobi/types"
)

// MaxCells bounds the number of cells a single buffer may hold.
const MaxCells = math.MaxInt32

// ErrRowOutOfRange indicates a global row that is neither owned nor a ghost.
var ErrRowOutOfRange = errors.New("grid: row outside local band")

// LocalGrid is the double-buffered band owned by one worker.
//
// A LocalGrid is owned by exactly one worker goroutine and is not safe for
// concurrent use.
type LocalGrid struct {
	part   types.Partition
	cols   int
	rows   int // local rows, ghosts included
	offset int // local row of FirstOwnedRow

	cur  []float32
	next []float32
}

// New allocates both buffers for the band described by p.
//
// Returns:
//   - *LocalGrid: Zero-filled grid
//   - error: ErrInvalidConfig for an empty partition, ErrAllocation if the
//     buffers would exceed MaxCells
func New(p types.Partition) (*LocalGrid, error) {
	if p.GridSize <= 0 || p.OwnedRows() <= 0 {
		return nil, fmt.Errorf("%w: empty partition %s", types.ErrInvalidConfig, p)
	}

	rows := p.LocalRows()
	if rows > MaxCells/p.GridSize {
		return nil, fmt.Errorf("%w: %d x %d cells exceeds limit of %d",
			types.ErrAllocation, rows, p.GridSize, MaxCells)
	}

	offset := 0
	if p.HasUpperGhost {
		offset = 1
	}

	return &LocalGrid{
		part:   p,
		cols:   p.GridSize,
		rows:   rows,
		offset: offset,
		cur:    make([]float32, rows*p.GridSize),
		next:   make([]float32, rows*p.GridSize),
	}, nil
}

// Partition returns the band this grid was built for.
func (g *LocalGrid) Partition() types.Partition {
	return g.part
}

// Fill writes init(row, col) into every owned cell of both buffers.
//
// Both buffers must agree on border cells because they are swapped each
// iteration and border cells are never recomputed.
func (g *LocalGrid) Fill(init types.Initializer) {
	for row := g.part.FirstOwnedRow; row <= g.part.LastOwnedRow; row++ {
		base := g.localRow(row) * g.cols
		for col := range g.cols {
			v := init(g.part, row, col)
			g.cur[base+col] = v
			g.next[base+col] = v
		}
	}
}

// At returns the current value at global (row, col). Ghost rows are readable.
func (g *LocalGrid) At(row, col int) float32 {
	return g.Row(row)[col]
}

// Row returns the current buffer's slice for a global row (owned or ghost).
//
// The slice aliases the buffer and is invalidated by the next Step.
// Panics with ErrRowOutOfRange if the row is not local.
func (g *LocalGrid) Row(row int) []float32 {
	local := g.localRow(row)
	if local < 0 || local >= g.rows {
		panic(fmt.Errorf("%w: row %d, band %s", ErrRowOutOfRange, row, g.part))
	}

	return g.cur[local*g.cols : (local+1)*g.cols]
}

// FirstOwnedRow returns the band's first owned row, sent to the upper neighbor.
func (g *LocalGrid) FirstOwnedRow() []float32 {
	return g.Row(g.part.FirstOwnedRow)
}

// LastOwnedRow returns the band's last owned row, sent to the lower neighbor.
func (g *LocalGrid) LastOwnedRow() []float32 {
	return g.Row(g.part.LastOwnedRow)
}

// UpperGhost returns the ghost row above the band, or nil on the first worker.
func (g *LocalGrid) UpperGhost() []float32 {
	if !g.part.HasUpperGhost {
		return nil
	}

	return g.cur[:g.cols]
}

// LowerGhost returns the ghost row below the band, or nil on the last worker.
func (g *LocalGrid) LowerGhost() []float32 {
	if !g.part.HasLowerGhost {
		return nil
	}

	return g.cur[(g.rows-1)*g.cols:]
}

// Owned returns the owned rows of the current buffer as one contiguous slice.
func (g *LocalGrid) Owned() []float32 {
	start := g.offset * g.cols

	return g.cur[start : start+g.part.OwnedRows()*g.cols]
}

// localRow maps a global row to its index in the local buffers.
func (g *LocalGrid) localRow(row int) int {
	return row - g.part.FirstOwnedRow + g.offset
}
