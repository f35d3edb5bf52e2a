package natscomm

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/jacobi/internal/rankclaim"
	jacobitest "github.com/arloliu/jacobi/testing"
	"github.com/arloliu/jacobi/types"
)

func testConfig(runID string) Config {
	cfg := DefaultConfig()
	cfg.RunID = runID
	cfg.ClaimTTL = 3 * time.Second
	cfg.StartupTimeout = 5 * time.Second

	return cfg
}

// openGroup opens size communicators, each on its own connection, and closes
// them at cleanup. ranks[i] may be AnyRank.
func openGroup(t *testing.T, ns *server.Server, cfg Config, ranks []int) []*Comm {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	comms := make([]*Comm, len(ranks))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, rank := range ranks {
		nc := jacobitest.Connect(t, ns)
		eg.Go(func() error {
			c, err := Open(egCtx, nc, cfg, len(ranks), rank, WithLogger(jacobitest.NewTestLogger(t)))
			comms[i] = c

			return err
		})
	}
	require.NoError(t, eg.Wait())

	t.Cleanup(func() {
		for _, c := range comms {
			_ = c.Close(context.Background())
		}
	})

	sort.Slice(comms, func(a, b int) bool { return comms[a].Rank() < comms[b].Rank() })

	return comms
}

func explicitRanks(n int) []int {
	ranks := make([]int, n)
	for i := range ranks {
		ranks[i] = i
	}

	return ranks
}

func TestComm_SendRecv(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("sendrecv"), explicitRanks(2))
	ctx := t.Context()

	require.NoError(t, comms[0].Send(ctx, 1, types.TagHaloDown, []float32{1.5, -2, 3.25}))
	require.NoError(t, comms[0].Send(ctx, 1, types.TagHaloUp, []float32{9, 9, 9}))

	// Tags are independent queues: read them in the opposite order.
	up := make([]float32, 3)
	require.NoError(t, comms[1].Recv(ctx, 0, types.TagHaloUp, up))
	down := make([]float32, 3)
	require.NoError(t, comms[1].Recv(ctx, 0, types.TagHaloDown, down))

	assert.Equal(t, []float32{1.5, -2, 3.25}, down)
	assert.Equal(t, []float32{9, 9, 9}, up)
}

func TestComm_RecvLengthMismatch(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("mismatch"), explicitRanks(2))
	ctx := t.Context()

	require.NoError(t, comms[1].Send(ctx, 0, types.TagGather, []float32{1, 2}))
	err := comms[0].Recv(ctx, 1, types.TagGather, make([]float32, 3))
	require.ErrorIs(t, err, types.ErrCommunication)
}

func TestComm_GatherBurst(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("burst"), explicitRanks(4))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const rows, cols = 300, 64
	// Every sender finishes before the coordinator reads anything.
	for _, c := range comms[1:] {
		row := make([]float32, cols)
		for r := range rows {
			row[0] = float32(c.Rank()*1000 + r)
			require.NoError(t, c.Send(ctx, 0, types.TagGather, row))
		}
	}

	buf := make([]float32, cols)
	for src := 1; src < 4; src++ {
		for r := range rows {
			require.NoError(t, comms[0].Recv(ctx, src, types.TagGather, buf))
			require.Equal(t, float32(src*1000+r), buf[0], "rows arrive in order")
		}
	}
}

func TestComm_AllReduceSumAndBarrier(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	const size = 3
	comms := openGroup(t, ns, testConfig("reduce"), explicitRanks(size))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const rounds = 25
	results := make([][]float64, size)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range comms {
		eg.Go(func() error {
			if err := c.Barrier(egCtx); err != nil {
				return err
			}
			for round := range rounds {
				sum, err := c.AllReduceSum(egCtx, 0.1*float64(c.Rank()+1)*float64(round))
				if err != nil {
					return err
				}
				results[c.Rank()] = append(results[c.Rank()], sum)
			}

			return c.Barrier(egCtx)
		})
	}
	require.NoError(t, eg.Wait())

	for round := range rounds {
		want := 0.0
		for rank := range size {
			want += 0.1 * float64(rank+1) * float64(round)
		}
		for rank := range size {
			assert.Equal(t, want, results[rank][round], "rank %d round %d", rank, round)
		}
	}
}

func TestComm_Abort(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("abort"), explicitRanks(3))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	blocked := make(chan error, 1)
	go func() { blocked <- comms[0].Recv(ctx, 1, types.TagHaloUp, make([]float32, 4)) }()

	cause := errors.New("out of memory")
	require.NoError(t, comms[2].Abort(ctx, cause))

	err := <-blocked
	require.ErrorIs(t, err, types.ErrAborted)
	assert.Contains(t, err.Error(), "out of memory")

	// Blocks until the broadcast arrives, then fails.
	_, err = comms[1].AllReduceSum(ctx, 1)
	require.ErrorIs(t, err, types.ErrAborted)

	require.ErrorIs(t, comms[2].Barrier(ctx), types.ErrAborted)
}

func TestComm_AbortWithoutDeadline(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("abort-nodeadline"), explicitRanks(2))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The solver aborts with a context stripped of cancellation and deadline.
	require.NoError(t, comms[0].Abort(context.WithoutCancel(ctx), errors.New("boom")))

	err := comms[1].Recv(ctx, 0, types.TagHaloDown, make([]float32, 4))
	require.ErrorIs(t, err, types.ErrAborted)
	assert.Contains(t, err.Error(), "boom")
}

func TestOpen_ClaimsRanks(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("claim"), []int{AnyRank, AnyRank, AnyRank})

	for i, c := range comms {
		assert.Equal(t, i, c.Rank())
		assert.Equal(t, 3, c.Size())
	}
}

func TestOpen_DuplicateRank(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	cfg := testConfig("duplicate")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := make(chan *Comm, 1)
	firstConn := jacobitest.Connect(t, ns)
	go func() {
		c, err := Open(ctx, firstConn, cfg, 2, 0)
		if err == nil {
			first <- c
		}
		close(first)
	}()

	// Wait until rank 0 is held.
	kv := waitForBucket(t, ns, cfg)
	require.Eventually(t, func() bool {
		_, err := kv.Get(ctx, "rank.0")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	_, err := Open(ctx, jacobitest.Connect(t, ns), cfg, 2, 0)
	require.ErrorIs(t, err, rankclaim.ErrRankTaken)

	second, err := Open(ctx, jacobitest.Connect(t, ns), cfg, 2, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close(context.Background()) })

	c, ok := <-first
	require.True(t, ok, "rank 0 should finish startup once rank 1 joins")
	t.Cleanup(func() { _ = c.Close(context.Background()) })
}

func TestOpen_StartupTimeout(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	cfg := testConfig("lonely")
	cfg.StartupTimeout = 300 * time.Millisecond

	_, err := Open(context.Background(), jacobitest.Connect(t, ns), cfg, 2, 0)
	require.ErrorIs(t, err, types.ErrCommunication)

	// The failed start released its claim.
	kv := waitForBucket(t, ns, cfg)
	_, err = kv.Get(t.Context(), "rank.0")
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)
}

func TestOpen_Validation(t *testing.T) {
	_, nc := jacobitest.StartEmbeddedNATS(t)
	ctx := t.Context()

	_, err := Open(ctx, nil, testConfig("v"), 2, 0)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = Open(ctx, nc, testConfig("v"), 0, 0)
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = Open(ctx, nc, testConfig("v"), 2, 2)
	require.ErrorIs(t, err, types.ErrInvalidRank)

	_, err = Open(ctx, nc, testConfig("bad.run"), 2, 0)
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestComm_Close(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	cfg := testConfig("close")
	comms := openGroup(t, ns, cfg, explicitRanks(2))
	ctx := t.Context()

	require.NoError(t, comms[0].Close(ctx))
	require.NoError(t, comms[0].Close(ctx), "Close is idempotent")

	require.ErrorIs(t, comms[0].Send(ctx, 1, types.TagGather, []float32{1}), types.ErrClosed)
	require.ErrorIs(t, comms[0].Recv(ctx, 1, types.TagGather, make([]float32, 1)), types.ErrClosed)

	for _, key := range []string{"rank.0", "ready.0"} {
		_, err := comms[1].KV().Get(ctx, key)
		require.ErrorIs(t, err, jetstream.ErrKeyNotFound, key)
	}
}

func TestComm_InvalidPeer(t *testing.T) {
	ns, _ := jacobitest.StartEmbeddedNATS(t)
	comms := openGroup(t, ns, testConfig("peer"), explicitRanks(2))
	ctx := t.Context()

	require.ErrorIs(t, comms[0].Send(ctx, 0, types.TagGather, nil), types.ErrInvalidRank)
	require.ErrorIs(t, comms[0].Recv(ctx, 5, types.TagGather, nil), types.ErrInvalidRank)
}

func waitForBucket(t *testing.T, ns *server.Server, cfg Config) jetstream.KeyValue {
	t.Helper()

	SetDefaults(&cfg)
	js, err := jetstream.New(jacobitest.Connect(t, ns))
	require.NoError(t, err)

	var kv jetstream.KeyValue
	require.Eventually(t, func() bool {
		kv, err = js.KeyValue(t.Context(), cfg.Bucket)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	return kv
}
