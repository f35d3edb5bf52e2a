package rankclaim

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jacobitest "github.com/arloliu/jacobi/testing"
	"github.com/arloliu/jacobi/types"
)

func newKV(t *testing.T, bucket string, ttl time.Duration) jetstream.KeyValue {
	t.Helper()

	_, nc := jacobitest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     ttl,
		Storage: jetstream.MemoryStorage,
	})
	require.NoError(t, err)

	return kv
}

func TestClaimer_WithoutClaim(t *testing.T) {
	t.Parallel()

	c := NewClaimer(nil, 4, time.Second, "host", nil)
	assert.Equal(t, -1, c.Rank())
	require.ErrorIs(t, c.StartRenewal(), ErrNotClaimed)
	require.ErrorIs(t, c.Release(context.Background()), ErrNotClaimed)
}

func TestClaimer_ClaimRankOutOfRange(t *testing.T) {
	t.Parallel()

	c := NewClaimer(nil, 4, time.Second, "host", nil)
	require.ErrorIs(t, c.ClaimRank(context.Background(), 4), types.ErrInvalidRank)
}

func TestClaimer_ConcurrentClaimsAreUnique(t *testing.T) {
	ctx := t.Context()
	kv := newKV(t, "rankclaim-unique", 5*time.Second)

	const size = 6
	ranks := make([]int, size)
	var wg sync.WaitGroup
	for i := range size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClaimer(kv, size, 5*time.Second, "w", jacobitest.NewTestLogger(t))
			rank, err := c.Claim(ctx)
			assert.NoError(t, err)
			ranks[i] = rank
		}()
	}
	wg.Wait()

	sort.Ints(ranks)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ranks)

	_, err := NewClaimer(kv, size, 5*time.Second, "late", nil).Claim(ctx)
	require.ErrorIs(t, err, ErrNoAvailableRank)
}

func TestClaimer_ClaimRankTaken(t *testing.T) {
	ctx := t.Context()
	kv := newKV(t, "rankclaim-taken", 5*time.Second)

	first := NewClaimer(kv, 3, 5*time.Second, "a", nil)
	require.NoError(t, first.ClaimRank(ctx, 1))

	second := NewClaimer(kv, 3, 5*time.Second, "b", nil)
	require.ErrorIs(t, second.ClaimRank(ctx, 1), ErrRankTaken)

	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.ClaimRank(ctx, 1))
	assert.Equal(t, 1, second.Rank())
}

func TestClaimer_RenewalKeepsLease(t *testing.T) {
	ctx := t.Context()
	const ttl = 600 * time.Millisecond
	kv := newKV(t, "rankclaim-renewal", ttl)

	c := NewClaimer(kv, 2, ttl, "a", nil)
	rank, err := c.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, c.StartRenewal())

	time.Sleep(3 * ttl)

	entry, err := kv.Get(ctx, "rank.0")
	require.NoError(t, err, "renewed claim must survive past the TTL")
	assert.Equal(t, []byte("a"), entry.Value())
	assert.Equal(t, 0, rank)

	require.NoError(t, c.Release(ctx))
	require.ErrorIs(t, c.Release(ctx), ErrNotClaimed)

	_, err = kv.Get(ctx, "rank.0")
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)
}
