// Package rankclaim assigns worker ranks through a JetStream KV bucket.
//
// Each rank is a key "rank.<i>" created atomically with KV Create, so two
// processes can never hold the same rank. Claims are leases: the bucket TTL
// expires a claim whose owner stopped renewing it.
package rankclaim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/jacobi/internal/kvutil"
	"github.com/arloliu/jacobi/internal/logging"
	"github.com/arloliu/jacobi/types"
)

// Common errors returned by the claimer.
var (
	ErrNoAvailableRank = errors.New("no available rank")
	ErrRankTaken       = errors.New("rank already claimed")
	ErrNotClaimed      = errors.New("rank not claimed")
)

// Claimer claims and renews one rank of a run.
type Claimer struct {
	kv     jetstream.KeyValue
	size   int
	ttl    time.Duration
	owner  string
	logger types.Logger

	rank   int
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClaimer creates a claimer for a run of size workers.
//
// Parameters:
//   - kv: Run bucket
//   - size: Number of ranks in the run
//   - ttl: Lease TTL; renewal runs at ttl/3
//   - owner: Stored as the claim value for operators (host, pid)
//   - logger: Logger for debug output (nil for no-op)
func NewClaimer(kv jetstream.KeyValue, size int, ttl time.Duration, owner string, logger types.Logger) *Claimer {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Claimer{
		kv:     kv,
		size:   size,
		ttl:    ttl,
		owner:  owner,
		logger: logger,
		rank:   -1,
	}
}

// Claim takes the lowest free rank in [0, size).
//
// Returns:
//   - int: Claimed rank
//   - error: ErrNoAvailableRank if every rank is held, context or NATS error
func (c *Claimer) Claim(ctx context.Context) (int, error) {
	for rank := range c.size {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		err := c.ClaimRank(ctx, rank)
		if err == nil {
			return rank, nil
		}
		if !errors.Is(err, ErrRankTaken) {
			return -1, err
		}
	}

	c.logger.Error("no available rank", "size", c.size)

	return -1, fmt.Errorf("%w: all %d ranks held", ErrNoAvailableRank, c.size)
}

// ClaimRank takes a specific rank.
//
// Returns ErrRankTaken if another process holds it.
func (c *Claimer) ClaimRank(ctx context.Context, rank int) error {
	if rank < 0 || rank >= c.size {
		return fmt.Errorf("%w: %d not in [0, %d)", types.ErrInvalidRank, rank, c.size)
	}

	key := kvutil.RankKey(kvutil.RankKeyPrefix, rank)
	revision, err := c.kv.Create(ctx, key, []byte(c.owner))
	if errors.Is(err, jetstream.ErrKeyExists) {
		c.logger.Debug("rank already claimed", "rank", rank)
		return fmt.Errorf("%w: %d", ErrRankTaken, rank)
	}
	if err != nil {
		return fmt.Errorf("claim rank %d: %w", rank, err)
	}

	c.rank = rank
	c.logger.Info("rank claimed", "rank", rank, "revision", revision, "owner", c.owner)

	return nil
}

// Rank returns the claimed rank, or -1.
func (c *Claimer) Rank() int {
	return c.rank
}

// StartRenewal refreshes the claim every ttl/3 until Release.
func (c *Claimer) StartRenewal() error {
	if c.rank < 0 {
		return ErrNotClaimed
	}
	if c.stopCh != nil {
		return nil
	}

	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.renewalLoop()

	return nil
}

func (c *Claimer) renewalLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(max(c.ttl/3, 10*time.Millisecond))
	defer ticker.Stop()

	key := kvutil.RankKey(kvutil.RankKeyPrefix, c.rank)
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.ttl)
			_, err := c.kv.Put(ctx, key, []byte(c.owner))
			cancel()
			if err != nil {
				c.logger.Warn("rank renewal failed", "rank", c.rank, "error", err)
			}
		}
	}
}

// Release stops renewal and deletes the claim.
func (c *Claimer) Release(ctx context.Context) error {
	if c.rank < 0 {
		return ErrNotClaimed
	}

	if c.stopCh != nil {
		close(c.stopCh)
		select {
		case <-c.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.stopCh = nil
	}

	rank := c.rank
	c.rank = -1
	if err := kvutil.DeleteKeys(ctx, c.kv, kvutil.RankKey(kvutil.RankKeyPrefix, rank)); err != nil {
		return fmt.Errorf("release rank %d: %w", rank, err)
	}
	c.logger.Debug("rank released", "rank", rank)

	return nil
}
