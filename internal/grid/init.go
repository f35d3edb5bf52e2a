package grid

import "github.com/arloliu/jacobi/types"

// ReferenceInit fills each band independently of the others:
//
//	value = ((localRow*GridSize + col + 1) mod (WorkerCount + 1)) + WorkerIndex
//
// where localRow counts from the band's first owned row. The result depends
// on the worker count, so runs with different worker counts start from
// different grids.
func ReferenceInit(p types.Partition, row, col int) float32 {
	k := (row-p.FirstOwnedRow)*p.GridSize + col + 1

	return float32(k%(p.WorkerCount+1) + p.WorkerIndex)
}

// GlobalInit adapts a function of global coordinates into an Initializer.
//
// Grids filled this way are identical whatever the worker count, which is
// what comparisons between distributed and single-worker runs need.
func GlobalInit(fn func(row, col int) float32) types.Initializer {
	return func(_ types.Partition, row, col int) float32 {
		return fn(row, col)
	}
}

// HotTopInit holds the top border at value and everything else at zero.
func HotTopInit(value float32) types.Initializer {
	return GlobalInit(func(row, _ int) float32 {
		if row == 0 {
			return value
		}

		return 0
	})
}
