package jacobi

import (
	"bufio"
	"fmt"
	"io"
)

// WriteReport prints the coordinator's summary:
//
//	Global Diffnorm: 3.0104.
//	Iterations: 1.
//	Time elapsed: 0.000123.
//	Checksum: 9f0c3a51d2e47b86.
//
// With printGrid the assembled grid follows, one "<row> |" line per row
// with fixed-width two-decimal cells.
// Results without a grid (non-coordinators) print nothing.
func WriteReport(w io.Writer, res *Result, printGrid bool) error {
	if !res.IsCoordinator() {
		return nil
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Global Diffnorm: %.4f.\n", res.GlobalNorm)
	fmt.Fprintf(bw, "Iterations: %d.\n", res.Iterations)
	fmt.Fprintf(bw, "Time elapsed: %f.\n", res.Elapsed.Seconds())
	fmt.Fprintf(bw, "Checksum: %016x.\n", res.Checksum)

	if printGrid {
		size := res.Partition.GridSize
		for row := range size {
			fmt.Fprintf(bw, "%d |", row)
			for col := range size {
				fmt.Fprintf(bw, "%6.2f ", res.At(row, col))
			}
			bw.WriteByte('\n')
		}
		bw.WriteString("----------- \n")
	}

	return bw.Flush()
}
