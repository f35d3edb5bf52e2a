package grid

// Step performs one Jacobi update over the band's interior cells.
//
// For every interior row i and column 1 <= j < GridSize-1:
//
//	next[i][j] = (cur[i][j+1] + cur[i][j-1] + cur[i+1][j] + cur[i-1][j]) / 4
//
// Ghost rows must hold the neighbors' boundary rows before calling Step.
// After next is complete the buffers are swapped, so Row and Owned expose the
// updated state. Border rows and columns are never written.
//
// Returns:
//   - float64: Local sum of squared deltas over the updated cells
func (g *LocalGrid) Step() float64 {
	if !g.part.HasInterior() || g.cols < 3 {
		// Nothing to update, but keep the swap so both paths behave the same.
		g.cur, g.next = g.next, g.cur
		return 0
	}

	cols := g.cols
	cur, next := g.cur, g.next
	sum := 0.0

	for row := g.part.FirstInteriorRow; row <= g.part.LastInteriorRow; row++ {
		i := g.localRow(row) * cols
		up := i - cols
		down := i + cols

		for j := 1; j < cols-1; j++ {
			v := (cur[i+j+1] + cur[i+j-1] + cur[down+j] + cur[up+j]) / 4
			next[i+j] = v

			d := float64(v - cur[i+j])
			sum += d * d
		}
	}

	g.cur, g.next = g.next, g.cur

	return sum
}
