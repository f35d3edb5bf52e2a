package natscomm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/jacobi/internal/kvutil"
	"github.com/arloliu/jacobi/internal/natsutil"
	"github.com/arloliu/jacobi/types"
)

// rendezvous publishes this rank's ready key and waits until every rank of
// the run has published one.
//
// The ready key is re-put every ClaimTTL/3 while waiting so a slow starter
// never sees an early starter's key expire.
func (c *Comm) rendezvous(ctx context.Context) error {
	watcher, err := c.kv.Watch(ctx, kvutil.ReadyKeyPrefix+".*")
	if err != nil {
		return natsutil.Classify("watch ready keys", err)
	}
	defer func() { _ = watcher.Stop() }()

	readyKey := kvutil.RankKey(kvutil.ReadyKeyPrefix, c.rank)
	if _, err := c.kv.Put(ctx, readyKey, []byte(c.owner)); err != nil {
		return natsutil.Classify("publish ready key", err)
	}

	refresh := time.NewTicker(max(c.cfg.ClaimTTL/3, 10*time.Millisecond))
	defer refresh.Stop()

	seen := make(map[int]struct{}, c.size)
	for len(seen) < c.size {
		select {
		case entry, ok := <-watcher.Updates():
			if !ok {
				return fmt.Errorf("%w: ready watcher closed", types.ErrCommunication)
			}
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}
			if rank, ok := c.readyRank(entry.Key()); ok {
				seen[rank] = struct{}{}
				c.logger.Debug("worker ready", "rank", c.rank, "peer", rank, "ready", len(seen), "size", c.size)
			}

		case <-refresh.C:
			if _, err := c.kv.Put(ctx, readyKey, []byte(c.owner)); err != nil {
				c.logger.Warn("ready key refresh failed", "rank", c.rank, "error", err)
			}

		case <-c.stop:
			return c.stoppedErr()

		case <-ctx.Done():
			return fmt.Errorf("%w: rendezvous: %d of %d workers ready: %w",
				types.ErrCommunication, len(seen), c.size, ctx.Err())
		}
	}

	return nil
}

func (c *Comm) readyRank(key string) (int, bool) {
	suffix, ok := strings.CutPrefix(key, kvutil.ReadyKeyPrefix+".")
	if !ok {
		return 0, false
	}
	rank, err := strconv.Atoi(suffix)
	if err != nil || rank < 0 || rank >= c.size {
		return 0, false
	}

	return rank, true
}
