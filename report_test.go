package jacobi

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	res := &Result{
		Partition:  Partition{GridSize: 2, WorkerCount: 1},
		Iterations: 7,
		GlobalNorm: 3.0103986446980004,
		Elapsed:    1500 * time.Millisecond,
		Grid:       []float32{1, 2.5, 0.125, 4},
		Checksum:   0xabc,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, res, false))
	require.Equal(t, "Global Diffnorm: 3.0104.\n"+
		"Iterations: 7.\n"+
		"Time elapsed: 1.500000.\n"+
		"Checksum: 0000000000000abc.\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteReport(&buf, res, true))
	require.Contains(t, buf.String(), "0 |  1.00   2.50 \n1 |  0.12   4.00 \n----------- \n")
}

func TestWriteReport_NonCoordinator(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, &Result{Iterations: 3}, true))
	require.Empty(t, buf.String())
}

func TestWriteReport_FixedWidthCells(t *testing.T) {
	res := &Result{
		Partition: Partition{GridSize: 2, WorkerCount: 1},
		Grid:      []float32{100, 0.5, -3.25, 12},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, res, true))
	require.Contains(t, buf.String(), "0 |100.00   0.50 \n1 | -3.25  12.00 \n")
}
