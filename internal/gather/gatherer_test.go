package gather

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/jacobi/internal/grid"
	"github.com/arloliu/jacobi/transport/local"
	"github.com/arloliu/jacobi/types"
)

func cellValue(row, col int) float32 {
	return float32(row) + float32(col)/100
}

func runGather(t *testing.T, size, workers, root int) [][]float32 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	plan, err := types.NewGatherPlan(size, workers)
	require.NoError(t, err)

	group := local.NewGroup(workers)
	out := make([][]float32, workers)

	eg, egCtx := errgroup.WithContext(ctx)
	for w := range workers {
		part, err := types.NewPartition(size, workers, w)
		require.NoError(t, err)
		g, err := grid.New(part)
		require.NoError(t, err)
		g.Fill(grid.GlobalInit(cellValue))

		ga, err := New(group.Comm(w), plan, root)
		require.NoError(t, err)

		eg.Go(func() error {
			dest, err := ga.Gather(egCtx, g)
			out[w] = dest

			return err
		})
	}
	require.NoError(t, eg.Wait())

	return out
}

func TestGatherer_Gather(t *testing.T) {
	cases := []struct {
		size, workers, root int
	}{
		{4, 1, 0},
		{4, 2, 0},
		{10, 3, 0},
		{11, 5, 0},
		{7, 7, 0},
		{10, 3, 2},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("G=%d/P=%d/root=%d", tc.size, tc.workers, tc.root), func(t *testing.T) {
			out := runGather(t, tc.size, tc.workers, tc.root)

			for w, dest := range out {
				if w != tc.root {
					assert.Nil(t, dest, "worker %d", w)
					continue
				}
				require.Len(t, dest, tc.size*tc.size)
				for row := range tc.size {
					for col := range tc.size {
						assert.Equal(t, cellValue(row, col), dest[row*tc.size+col], "cell %d,%d", row, col)
					}
				}
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	plan, err := types.NewGatherPlan(6, 3)
	require.NoError(t, err)

	_, err = New(local.NewGroup(2).Comm(0), plan, 0)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(local.NewGroup(3).Comm(0), plan, 3)
	require.ErrorIs(t, err, types.ErrInvalidRank)
}
